package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"tfdcore/internal/app"
)

func backupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and restore snapshots of the working set",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Write a snapshot to the blob store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				b, err := a.Backups.Create(ctx, a.Store.ExportState())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d records\n", b.Key, b.Records)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				backups, err := a.Backups.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tCREATED\tSIZE")
				for _, b := range backups {
					fmt.Fprintf(w, "%s\t%s\t%d\n", b.Key, b.CreatedAt.Format(time.RFC3339), b.Size)
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <key>",
		Short: "Replace the working set and storage with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				snap, err := a.Backups.Restore(ctx, args[0], a.Store, a.Persister)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s (%d records)\n", args[0], lo.Sum(lo.Values(snap.Counts())))
				return nil
			})
		},
	})

	return cmd
}
