// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/orchestrate"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the assistant over HTTP",
	Long: `Serve runs an HTTP front-end sharing one session across requests: one
budget, one memory. GET / serves an HTML query form with session stats in
a sidebar; the JSON API offers:

  POST /api/query       {"text": "...", "project": "...", "refresh": false}
  GET  /api/budget      spent, remaining, and ceiling
  GET  /api/stats       session statistics
  GET  /api/history     session records (optional ?project=)
  GET  /api/documents   indexed documents`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	budgetFlag, _ := cmd.Flags().GetFloat64("budget")

	a, err := newApp(budgetFlag)
	if err != nil {
		return err
	}
	defer a.Close()

	r := mux.NewRouter()
	r.HandleFunc("/", a.handleIndex).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/query", a.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/api/budget", a.handleBudget).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/history", a.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/documents", a.handleDocuments).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "listening on %s (budget %.1f units)\n", addr, a.meter.Ceiling())
	return srv.ListenAndServe()
}

type queryRequest struct {
	Text    string             `json:"text"`
	Project string             `json:"project,omitempty"`
	Refresh bool               `json:"refresh,omitempty"`
	Sources []types.SourceKind `json:"sources,omitempty"`
}

type queryResponse struct {
	Record     types.MemoryRecord `json:"record"`
	FromMemory bool               `json:"from_memory"`
	Similarity float64            `json:"similarity,omitempty"`
	Remaining  float64            `json:"remaining_budget"`
}

func (a *app) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	q := types.Query{Text: req.Text, Project: req.Project, Timestamp: time.Now().UTC()}
	ans, err := a.orch.Answer(r.Context(), q, orchestrate.Options{
		ForceRefresh: req.Refresh,
		Sources:      req.Sources,
	})
	if err != nil {
		var all *orchestrate.AllSourcesFailedError
		if errors.As(err, &all) {
			httpError(w, http.StatusBadGateway, err)
			return
		}
		httpError(w, http.StatusBadRequest, err)
		return
	}

	if !ans.FromMemory {
		if err := a.hist.Save(r.Context(), ans.Record); err != nil {
			fmt.Fprintf(os.Stderr, "warning: history save failed: %v\n", err)
		}
	}

	writeJSON(w, queryResponse{
		Record:     ans.Record,
		FromMemory: ans.FromMemory,
		Similarity: ans.Similarity,
		Remaining:  a.meter.Remaining(),
	})
}

func (a *app) handleBudget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]float64{
		"ceiling":   a.meter.Ceiling(),
		"spent":     a.meter.Spent(),
		"remaining": a.meter.Remaining(),
	})
}

func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.mem.Stats())
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	records := a.mem.History(r.URL.Query().Get("project"))
	if records == nil {
		records = []types.MemoryRecord{}
	}
	writeJSON(w, records)
}

func (a *app) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := a.docs.List(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, docs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "warning: encoding response: %v\n", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  err.Error(),
		"status": strconv.Itoa(status),
	})
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Float64("budget", 0, "session budget ceiling in units (0 = configured default)")

	rootCmd.AddCommand(serveCmd)
}
