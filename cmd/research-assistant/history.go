// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/orchestrate"
	"github.com/pdiddy/research-assistant/internal/project"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Review saved research records",
	Long: `History lists the queries answered in past sessions, oldest first.
Use --project to filter and "history export" to write records as JSON
or CSV.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	projectName, _ := cmd.Flags().GetString("project")
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := newApp(0)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.hist.History(context.Background(), projectName, limit)
	if err != nil {
		return err
	}
	orchestrate.FormatHistory(records, os.Stdout)
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export research records as JSON or CSV",
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	projectName, _ := cmd.Flags().GetString("project")
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	a, err := newApp(0)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.hist.History(context.Background(), projectName, 0)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "json", "":
		if err := project.ExportJSON(out, records); err != nil {
			return err
		}
	case "csv":
		if err := project.ExportCSV(out, records); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q: use json or csv", format)
	}

	if outPath != "" {
		fmt.Fprintf(os.Stderr, "exported %d records to %s\n", len(records), outPath)
	}
	return nil
}

// --- projects subcommand ---

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List known projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(0)
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.hist.Projects(context.Background())
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects.")
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%-30s  created %s\n", p.Name, p.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("project", "", "filter by project")
	historyCmd.Flags().Int("limit", 0, "maximum records (0 = all)")

	historyExportCmd.Flags().String("project", "", "filter by project")
	historyExportCmd.Flags().String("format", "json", "export format: json or csv")
	historyExportCmd.Flags().String("out", "", "output file (default: stdout)")

	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(projectsCmd)
}
