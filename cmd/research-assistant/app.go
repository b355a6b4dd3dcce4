// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/viper"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/internal/docstore"
	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/orchestrate"
	"github.com/pdiddy/research-assistant/internal/project"
	"github.com/pdiddy/research-assistant/internal/source"
	"github.com/pdiddy/research-assistant/internal/summarize"
	"github.com/pdiddy/research-assistant/pkg/types"
)

func setConfigDefaults() {
	viper.SetDefault("data_dir", "data")

	viper.SetDefault("sources.timeout", "30s")
	viper.SetDefault("sources.user_agent", "research-assistant/"+version)
	viper.SetDefault("sources.max_results", 20)
	viper.SetDefault("sources.per_source_results", 10)
	viper.SetDefault("sources.enable_web", true)
	viper.SetDefault("sources.enable_arxiv", true)
	viper.SetDefault("sources.enable_scholar", true)
	viper.SetDefault("sources.enable_local", true)
	viper.SetDefault("sources.web_qps", 1.0)
	viper.SetDefault("sources.costs.web", 2.0)
	viper.SetDefault("sources.costs.academic", 2.0)
	viper.SetDefault("sources.costs.scholar", 1.0)
	viper.SetDefault("sources.costs.local", 0.0)

	viper.SetDefault("budget.ceiling", 20.0)

	viper.SetDefault("memory.recall_threshold", 0.6)
	viper.SetDefault("memory.related_limit", 3)

	viper.SetDefault("summary.model", "")
	viper.SetDefault("summary.style", "comprehensive")
	viper.SetDefault("summary.max_retries", 3)

	viper.SetDefault("documents.chunk_size", 1500)
	viper.SetDefault("documents.max_results", 10)
	viper.SetDefault("documents.fetch_limit", 32*1024)
}

// loadConfig assembles the full configuration from viper, with secrets
// filling in keys the config file leaves empty.
func loadConfig() types.AssistantConfig {
	cfg := types.AssistantConfig{
		DataDir: viper.GetString("data_dir"),
		Sources: types.SourcesConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("sources.timeout"),
				UserAgent: viper.GetString("sources.user_agent"),
			},
			MaxResults:       viper.GetInt("sources.max_results"),
			PerSourceResults: viper.GetInt("sources.per_source_results"),
			EnableWeb:        viper.GetBool("sources.enable_web"),
			EnableArxiv:      viper.GetBool("sources.enable_arxiv"),
			EnableScholar:    viper.GetBool("sources.enable_scholar"),
			EnableLocal:      viper.GetBool("sources.enable_local"),
			ScholarAPIKey:    secretDefault("semantic-scholar-api-key", viper.GetString("sources.scholar_api_key")),
			WebQPS:           viper.GetFloat64("sources.web_qps"),
			Costs: types.CostTable{
				Web:      viper.GetFloat64("sources.costs.web"),
				Academic: viper.GetFloat64("sources.costs.academic"),
				Scholar:  viper.GetFloat64("sources.costs.scholar"),
				Local:    viper.GetFloat64("sources.costs.local"),
			},
		},
		Budget: types.BudgetConfig{
			Ceiling: viper.GetFloat64("budget.ceiling"),
		},
		Memory: types.MemoryConfig{
			RecallThreshold: viper.GetFloat64("memory.recall_threshold"),
			RelatedLimit:    viper.GetInt("memory.related_limit"),
		},
		Summary: types.SummaryConfig{
			AIConfig: types.AIConfig{
				Model:      viper.GetString("summary.model"),
				APIKey:     secretDefault("anthropic-api-key", viper.GetString("summary.api_key")),
				MaxRetries: viper.GetInt("summary.max_retries"),
			},
			Style: viper.GetString("summary.style"),
		},
		Documents: types.DocumentsConfig{
			ChunkSize:  viper.GetInt("documents.chunk_size"),
			MaxResults: viper.GetInt("documents.max_results"),
			FetchLimit: viper.GetInt("documents.fetch_limit"),
		},
	}
	return cfg
}

// app wires the assistant's components for one CLI session.
type app struct {
	cfg    types.AssistantConfig
	meter  *budget.Meter
	mem    *memory.Store
	docs   *docstore.Store
	hist   *project.Store
	orch   *orchestrate.Orchestrator
	client *http.Client
}

// newApp builds a session: budget meter, memory, stores, adapters, and
// the orchestrator. budgetOverride replaces the configured ceiling when
// positive.
func newApp(budgetOverride float64) (*app, error) {
	cfg := loadConfig()
	if budgetOverride > 0 {
		cfg.Budget.Ceiling = budgetOverride
	}

	docs, err := docstore.NewStore(cfg.Documents, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	hist, err := project.NewStore(cfg.DataDir)
	if err != nil {
		docs.Close()
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	a := &app{
		cfg:    cfg,
		meter:  budget.NewMeter(cfg.Budget.Ceiling),
		mem:    memory.NewStore(cfg.Memory),
		docs:   docs,
		hist:   hist,
		client: &http.Client{Timeout: cfg.Sources.Timeout},
	}

	a.orch = orchestrate.New(
		a.adapters(), a.meter, a.mem, a.summarizer(),
		cfg.Sources, cfg.Summary.Style, os.Stderr,
	)
	return a, nil
}

// adapters returns the enabled source adapters in priority order.
func (a *app) adapters() []source.Adapter {
	var adapters []source.Adapter
	if a.cfg.Sources.EnableWeb {
		adapters = append(adapters, source.NewWeb(a.client, a.cfg.Sources, a.meter))
	}
	if a.cfg.Sources.EnableArxiv {
		adapters = append(adapters, source.NewArxiv(a.client, a.cfg.Sources, a.meter))
	}
	if a.cfg.Sources.EnableScholar {
		adapters = append(adapters, source.NewScholar(a.client, a.cfg.Sources, a.meter))
	}
	if a.cfg.Sources.EnableLocal {
		adapters = append(adapters, source.NewLocal(a.docs, a.cfg.Sources, a.meter))
	}
	return adapters
}

// summarizer picks the AI summarizer when a key is configured, the
// extractive one otherwise.
func (a *app) summarizer() summarize.Summarizer {
	if a.cfg.Summary.APIKey != "" {
		s, err := summarize.NewAnthropic(a.cfg.Summary)
		if err == nil {
			return s
		}
		fmt.Fprintf(os.Stderr, "warning: AI summarizer unavailable: %v\n", err)
	}
	return &summarize.Extractive{}
}

// fetcher builds the URL fetcher for document ingestion.
func (a *app) fetcher() *docstore.Fetcher {
	return docstore.NewFetcher(a.client, a.cfg.Sources.HTTPConfig, a.cfg.Documents.FetchLimit)
}

// Close releases the app's stores.
func (a *app) Close() {
	a.hist.Close()
	a.docs.Close()
}
