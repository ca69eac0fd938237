package core

import (
	"context"
	"errors"
	"sync"
)

// ErrProposalApplied is returned when a proposal is applied twice.
var ErrProposalApplied = errors.New("proposal already applied")

// Proposal is a mutation held back by soft warnings. Nothing changes until
// ProceedAnyway is called.
type Proposal struct {
	Warnings []Warning

	mu      sync.Mutex
	apply   func(ctx context.Context) error
	applied bool
}

func newProposal(warnings []Warning, apply func(ctx context.Context) error) *Proposal {
	return &Proposal{Warnings: warnings, apply: apply}
}

// NeedsConfirmation reports whether the caller must confirm the warnings.
func (p *Proposal) NeedsConfirmation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Warnings) > 0 && !p.applied
}

// Applied reports whether the mutation has been carried out.
func (p *Proposal) Applied() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}

// ProceedAnyway applies the held mutation despite the warnings.
func (p *Proposal) ProceedAnyway(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applied {
		return ErrProposalApplied
	}
	if err := p.apply(ctx); err != nil {
		return err
	}
	p.applied = true
	return nil
}

// settle applies the mutation at once when there is nothing to confirm.
func settle(ctx context.Context, warnings []Warning, apply func(ctx context.Context) error) (*Proposal, error) {
	p := newProposal(warnings, apply)
	if len(warnings) > 0 {
		return p, nil
	}
	if err := p.ProceedAnyway(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
