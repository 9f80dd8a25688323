package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/Stride/internal/db"
)

// migrateCmd prepares the configured store. Opening a SQLite store applies
// pending schema migrations; --snapshot then imports a JSON export of the
// browser-era collections.
func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and optionally import a JSON snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, _ := cmd.Flags().GetString("snapshot")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := db.Open(ctx, storeOptions(cfg))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store %s is up to date.\n", cfg.StoreBackend)
			if snapshot == "" {
				return nil
			}

			snap, err := db.ReadSnapshot(snapshot)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			res, err := db.Import(ctx, store, snap, overwrite)
			if err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			fmt.Fprintf(out, "Imported: %s\n", joinOrNone(res.Imported))
			if len(res.Skipped) > 0 {
				fmt.Fprintf(out, "Skipped (already populated, use --overwrite): %s\n", strings.Join(res.Skipped, ", "))
			}
			return nil
		},
	}
	cmd.Flags().String("snapshot", "", "JSON snapshot file to import")
	cmd.Flags().Bool("overwrite", false, "Replace collections that already hold data")
	return cmd
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
