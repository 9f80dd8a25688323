package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/Stride/internal/services"
)

func checklistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checklist",
		Short: "Validate and print the active evaluation checklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cl, err := services.LoadChecklist(cfg.ChecklistPath)
			if err != nil {
				return err
			}
			source := cfg.ChecklistPath
			if source == "" {
				source = "embedded"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checklist (%s): %d categories, %d items\n", source, len(cl.Categories), cl.TotalItems())
			for _, cat := range cl.Categories {
				fmt.Fprintf(out, "%s\n", cat.Name)
				for i, it := range cat.Items {
					line := fmt.Sprintf("  %2d. %s [%s]", i+1, it.Label, it.Type)
					if len(it.Subchecks) > 0 {
						line += " +" + strings.Join(it.Subchecks, "/")
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
}
