// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the local document index",
	Long: `Docs manages the documents searched by the local source. Documents are
chunked and indexed with SQLite FTS5; the local source searches them at
zero budget cost.`,
}

// --- add subcommand ---

var docsAddCmd = &cobra.Command{
	Use:   "add [file...]",
	Short: "Index local text files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocsAdd,
}

func runDocsAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp(0)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		name, _ := cmd.Flags().GetString("name")
		if name == "" || len(args) > 1 {
			name = filepath.Base(path)
		}

		info, err := a.docs.Add(ctx, name, path, string(data))
		if err != nil {
			return err
		}
		fmt.Printf("indexed %s (%d chunks)\n", info.Name, info.Chunks)
	}
	return nil
}

// --- add-url subcommand ---

var docsAddURLCmd = &cobra.Command{
	Use:   "add-url [url]",
	Short: "Fetch a web page and index its text",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsAddURL,
}

func runDocsAddURL(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = urlName(rawURL)
	}

	a, err := newApp(0)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	text, err := a.fetcher().Fetch(ctx, rawURL)
	if err != nil {
		return err
	}

	info, err := a.docs.Add(ctx, name, rawURL, text)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %s (%d chunks, %d bytes of text)\n", info.Name, info.Chunks, len(text))
	return nil
}

// urlName derives a document name from a URL.
func urlName(rawURL string) string {
	name := strings.TrimPrefix(rawURL, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.Trim(name, "/")
	return strings.NewReplacer("/", "-", "?", "-", "&", "-").Replace(name)
}

// --- query subcommand ---

var docsQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the document index directly",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocsQuery,
}

func runDocsQuery(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := newApp(0)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.docs.Search(context.Background(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. %s (%.2f)\n   %s\n", i+1, r.Locator, r.Relevance, r.Excerpt)
	}
	return nil
}

// --- list and stats subcommands ---

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(0)
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.docs.List(context.Background())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("No documents indexed.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%-40s  %4d chunks  %s\n", d.Name, d.Chunks, d.AddedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var docsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(0)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.docs.IndexStats(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("documents: %d\nchunks: %d\n", st.Documents, st.Chunks)
		return nil
	},
}

func init() {
	docsAddCmd.Flags().String("name", "", "document name (default: file basename)")
	docsAddURLCmd.Flags().String("name", "", "document name (default: derived from URL)")
	docsQueryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")

	docsCmd.AddCommand(docsAddCmd)
	docsCmd.AddCommand(docsAddURLCmd)
	docsCmd.AddCommand(docsQueryCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsStatsCmd)

	rootCmd.AddCommand(docsCmd)
}
