// Package backup writes whole-store snapshots to a blob store and prunes them
// down to a retention count.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"tfdcore/internal/blob"
	"tfdcore/internal/core"
	"tfdcore/internal/infra/persistence/memory"
	"tfdcore/pkg/domain"
)

const (
	// DefaultRetention is the number of backups kept when none is configured.
	DefaultRetention = 5
	// DefaultPrefix is the key prefix backups are written under.
	DefaultPrefix = "backups/"

	formatVersion = 1
	keyLayout     = "20060102T150405.000000000Z"
)

// Document is the JSON envelope stored for each backup.
type Document struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Counts    map[string]int  `json:"counts"`
	State     memory.Snapshot `json:"state"`
}

// Backup describes one stored snapshot.
type Backup struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size_bytes"`
	Records   int       `json:"records"`
}

// Manager creates, lists and loads backups.
type Manager struct {
	store     blob.Store
	prefix    string
	retention int
	now       func() time.Time
	logger    core.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithRetention keeps at most n backups. Zero or less keeps everything.
func WithRetention(n int) Option { return func(m *Manager) { m.retention = n } }

// WithPrefix changes the key prefix.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.prefix = strings.TrimSuffix(prefix, "/") + "/"
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l core.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a manager writing to store.
func NewManager(store blob.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		prefix:    DefaultPrefix,
		retention: DefaultRetention,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create stores snap and prunes older backups beyond the retention count.
func (m *Manager) Create(ctx context.Context, snap memory.Snapshot) (Backup, error) {
	created := m.now().UTC()
	doc := Document{Version: formatVersion, CreatedAt: created, Counts: snap.Counts(), State: snap}
	payload, err := json.Marshal(doc)
	if err != nil {
		return Backup{}, fmt.Errorf("encode backup: %w", err)
	}
	records := lo.Sum(lo.Values(doc.Counts))
	key := m.prefix + "tfd-" + created.Format(keyLayout) + ".json"
	info, err := m.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"records":    strconv.Itoa(records),
			"created-at": created.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return Backup{}, fmt.Errorf("store backup %s: %w", key, err)
	}
	m.logger.Info("backup created", "key", key, "records", records, "bytes", info.Size)
	if _, err := m.Prune(ctx); err != nil {
		return Backup{}, err
	}
	return Backup{Key: key, CreatedAt: created, Size: info.Size, Records: records}, nil
}

// List returns stored backups, newest first.
func (m *Manager) List(ctx context.Context) ([]Backup, error) {
	infos, err := m.store.List(ctx, m.prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := lo.FilterMap(infos, func(info blob.Info, _ int) (Backup, bool) {
		created, ok := m.parseKey(info.Key)
		if !ok {
			return Backup{}, false
		}
		records, _ := strconv.Atoi(info.Metadata["records"])
		return Backup{Key: info.Key, CreatedAt: created, Size: info.Size, Records: records}, true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Prune deletes backups beyond the retention count and returns their keys.
func (m *Manager) Prune(ctx context.Context) ([]string, error) {
	if m.retention <= 0 {
		return nil, nil
	}
	backups, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(backups) <= m.retention {
		return nil, nil
	}
	var removed []string
	for _, b := range backups[m.retention:] {
		if _, err := m.store.Delete(ctx, b.Key); err != nil {
			return removed, fmt.Errorf("prune backup %s: %w", b.Key, err)
		}
		removed = append(removed, b.Key)
	}
	m.logger.Info("backups pruned", "removed", len(removed), "retention", m.retention)
	return removed, nil
}

// Load reads the snapshot stored under key.
func (m *Manager) Load(ctx context.Context, key string) (memory.Snapshot, error) {
	if !strings.HasPrefix(key, m.prefix) {
		key = m.prefix + key
	}
	_, rc, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return memory.Snapshot{}, domain.NotFound(domain.EntityType("backup"), key)
		}
		return memory.Snapshot{}, fmt.Errorf("read backup %s: %w", key, err)
	}
	defer rc.Close()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return memory.Snapshot{}, fmt.Errorf("decode backup %s: %w", key, err)
	}
	if doc.Version != formatVersion {
		return memory.Snapshot{}, fmt.Errorf("backup %s has unsupported version %d", key, doc.Version)
	}
	return doc.State, nil
}

// Restore loads key into store and writes every record through p when p is
// not nil.
func (m *Manager) Restore(ctx context.Context, key string, store *memory.Store, p domain.Persister) (memory.Snapshot, error) {
	snap, err := m.Load(ctx, key)
	if err != nil {
		return memory.Snapshot{}, err
	}
	store.ImportState(snap)
	if p != nil {
		if err := core.PushSnapshot(ctx, p, store.ExportState()); err != nil {
			return memory.Snapshot{}, err
		}
	}
	m.logger.Info("backup restored", "key", key, "records", lo.Sum(lo.Values(snap.Counts())))
	return snap, nil
}

// Run creates a backup from source every interval until ctx is done.
// Failures are logged and the loop continues.
func (m *Manager) Run(ctx context.Context, interval time.Duration, source func() memory.Snapshot) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Create(ctx, source()); err != nil {
				m.logger.Error("scheduled backup failed", "error", err)
			}
		}
	}
}

func (m *Manager) parseKey(key string) (time.Time, bool) {
	name := strings.TrimPrefix(key, m.prefix)
	if !strings.HasPrefix(name, "tfd-") || !strings.HasSuffix(name, ".json") {
		return time.Time{}, false
	}
	ts, err := time.Parse(keyLayout, strings.TrimSuffix(strings.TrimPrefix(name, "tfd-"), ".json"))
	return ts, err == nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
