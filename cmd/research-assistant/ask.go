// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/orchestrate"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one research question",
	Long: `Ask dispatches a question to the enabled sources, merges and ranks the
results, and prints a summarized answer. Source calls draw from the session
budget; sources whose cost exceeds the remaining budget are skipped and
reported. The answer is saved to the research history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	projectName, _ := cmd.Flags().GetString("project")
	refresh, _ := cmd.Flags().GetBool("refresh")
	sourcesFlag, _ := cmd.Flags().GetString("sources")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	budgetFlag, _ := cmd.Flags().GetFloat64("budget")

	selected, err := parseSources(sourcesFlag)
	if err != nil {
		return err
	}

	a, err := newApp(budgetFlag)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	q := types.Query{Text: question, Project: projectName, Timestamp: time.Now().UTC()}

	ans, err := a.orch.Answer(ctx, q, orchestrate.Options{
		ForceRefresh: refresh,
		Sources:      selected,
	})
	if err != nil {
		return err
	}

	if !ans.FromMemory {
		if err := a.hist.Save(ctx, ans.Record); err != nil {
			fmt.Fprintf(os.Stderr, "warning: history save failed: %v\n", err)
		}
	}

	if jsonOutput {
		return orchestrate.FormatJSON(ans, os.Stdout)
	}
	orchestrate.FormatAnswer(ans, os.Stdout)
	fmt.Printf("budget: %.1f of %.1f units remaining\n", a.meter.Remaining(), a.meter.Ceiling())
	return nil
}

// parseSources turns a comma-separated source list into kinds.
func parseSources(s string) ([]types.SourceKind, error) {
	if s == "" {
		return nil, nil
	}
	var kinds []types.SourceKind
	for _, part := range strings.Split(s, ",") {
		kind := types.SourceKind(strings.TrimSpace(strings.ToLower(part)))
		switch kind {
		case types.SourceWeb, types.SourceAcademic, types.SourceScholar, types.SourceLocal:
			kinds = append(kinds, kind)
		default:
			return nil, fmt.Errorf("unknown source %q: use web, academic, scholar, or local", part)
		}
	}
	return kinds, nil
}

func init() {
	askCmd.Flags().String("project", "", "project to file this query under")
	askCmd.Flags().Bool("refresh", false, "dispatch to sources even when memory holds a match")
	askCmd.Flags().String("sources", "", "restrict to sources (comma-separated: web,academic,scholar,local)")
	askCmd.Flags().Float64("budget", 0, "session budget ceiling in units (0 = configured default)")
	askCmd.Flags().Bool("json", false, "output the answer record as JSON")

	rootCmd.AddCommand(askCmd)
}
