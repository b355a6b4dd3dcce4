// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/orchestrate"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// indexPage feeds the HTML front-end: the form state, the latest answer,
// and the session sidebar.
type indexPage struct {
	Question  string
	Project   string
	Answer    *orchestrate.Answer
	Error     string
	Ceiling   float64
	Spent     float64
	Remaining float64
	Stats     memory.SessionStats
}

// handleIndex renders the query form. A POST runs the question through
// the orchestrator and re-renders the page with the answer inline, so
// the browser surface shares the session with the JSON API.
func (a *app) handleIndex(w http.ResponseWriter, r *http.Request) {
	var page indexPage

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			httpError(w, http.StatusBadRequest, fmt.Errorf("parsing form: %w", err))
			return
		}
		page.Question = strings.TrimSpace(r.FormValue("question"))
		page.Project = strings.TrimSpace(r.FormValue("project"))
		refresh := r.FormValue("refresh") != ""

		if page.Question != "" {
			q := types.Query{Text: page.Question, Project: page.Project, Timestamp: time.Now().UTC()}
			ans, err := a.orch.Answer(r.Context(), q, orchestrate.Options{ForceRefresh: refresh})
			if err != nil {
				page.Error = err.Error()
			} else {
				if !ans.FromMemory {
					if err := a.hist.Save(r.Context(), ans.Record); err != nil {
						fmt.Fprintf(os.Stderr, "warning: history save failed: %v\n", err)
					}
				}
				page.Answer = &ans
			}
		}
	}

	page.Ceiling = a.meter.Ceiling()
	page.Spent = a.meter.Spent()
	page.Remaining = a.meter.Remaining()
	page.Stats = a.mem.Stats()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		fmt.Fprintf(os.Stderr, "warning: rendering page: %v\n", err)
	}
}

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>research-assistant</title>
<style>
body { font-family: sans-serif; margin: 2em; display: flex; gap: 2em; }
main { flex: 3; }
aside { flex: 1; border-left: 1px solid #ccc; padding-left: 1.5em; }
input[type=text] { width: 100%; padding: 0.4em; margin-bottom: 0.6em; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.5em; text-align: left; }
.error { color: #a00; }
.note { color: #666; }
</style>
</head>
<body>
<main>
<h1>research-assistant</h1>
<form method="post" action="/">
<input type="text" name="question" placeholder="Research question" value="{{.Question}}">
<input type="text" name="project" placeholder="Project (optional)" value="{{.Project}}">
<label><input type="checkbox" name="refresh" value="1"> skip memory, query sources again</label>
<button type="submit">Ask</button>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{with .Answer}}
{{if .FromMemory}}<p class="note">recalled from session memory, similarity {{printf "%.2f" .Similarity}}, cost 0</p>{{end}}
{{if .Record.Summary}}<p>{{.Record.Summary}}</p>{{end}}
{{if .Record.Results}}
<table>
<tr><th>Source</th><th>Title</th><th>Score</th><th>Locator</th></tr>
{{range .Record.Results}}
<tr><td>{{.Kind}}</td><td>{{.Title}}</td><td>{{printf "%.2f" .Relevance}}</td><td>{{.Locator}}</td></tr>
{{end}}
</table>
{{end}}
{{range .Record.Skipped}}<p class="note">skipped {{.Kind}}: {{.Reason}}</p>{{end}}
<p class="note">cost: {{printf "%.1f" .Record.Cost}} units</p>
{{end}}
</main>
<aside>
<h2>Session</h2>
<p>budget: {{printf "%.1f" .Spent}} spent of {{printf "%.1f" .Ceiling}}, {{printf "%.1f" .Remaining}} remaining</p>
<p>queries: {{.Stats.Queries}}</p>
<p>total cost: {{printf "%.1f" .Stats.TotalCost}}</p>
<p>results: {{.Stats.TotalResults}}</p>
</aside>
</body>
</html>
`
