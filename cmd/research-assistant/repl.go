// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/orchestrate"
	"github.com/pdiddy/research-assistant/internal/project"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Hold an interactive research session",
	Long: `Repl reads questions from stdin and answers them within one shared
session: one budget, one memory. Paraphrased repeats of earlier questions
are answered from memory at no cost.

Session commands:
  :budget        show spent and remaining budget
  :stats         show session statistics
  :history       list the session's queries
  :save <path>   write the session to a YAML file
  :quit          exit`,
	RunE: runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	projectName, _ := cmd.Flags().GetString("project")
	budgetFlag, _ := cmd.Flags().GetFloat64("budget")

	a, err := newApp(budgetFlag)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	fmt.Printf("research-assistant %s — budget %.1f units. Questions end the session with :quit.\n",
		version, a.meter.Ceiling())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit := a.replCommand(ctx, line, projectName); quit {
				break
			}
			continue
		}

		q := types.Query{Text: line, Project: projectName, Timestamp: time.Now().UTC()}
		ans, err := a.orch.Answer(ctx, q, orchestrate.Options{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if !ans.FromMemory {
			if err := a.hist.Save(ctx, ans.Record); err != nil {
				fmt.Fprintf(os.Stderr, "warning: history save failed: %v\n", err)
			}
		}
		orchestrate.FormatAnswer(ans, os.Stdout)
	}
	return scanner.Err()
}

// replCommand handles a :command line. It returns true on :quit.
func (a *app) replCommand(ctx context.Context, line, projectName string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true

	case ":budget":
		fmt.Printf("spent %.1f of %.1f units, %.1f remaining\n",
			a.meter.Spent(), a.meter.Ceiling(), a.meter.Remaining())

	case ":stats":
		st := a.mem.Stats()
		fmt.Printf("queries: %d, results: %d, cost: %.1f units\n",
			st.Queries, st.TotalResults, st.TotalCost)

	case ":history":
		orchestrate.FormatHistory(a.mem.History(projectName), os.Stdout)

	case ":save":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: :save <path>")
			break
		}
		path := fields[1]
		if err := project.WriteSessionFile(path, projectName, a.mem.History("")); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		fmt.Printf("session saved to %s\n", path)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %s (try :budget, :stats, :history, :save, :quit)\n", fields[0])
	}
	return false
}

func init() {
	replCmd.Flags().String("project", "", "project to file session queries under")
	replCmd.Flags().Float64("budget", 0, "session budget ceiling in units (0 = configured default)")

	rootCmd.AddCommand(replCmd)
}
