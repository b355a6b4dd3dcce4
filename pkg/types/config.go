// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by adapters that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CostTable assigns a per-call cost in budget units to each source kind.
type CostTable struct {
	Web      float64 `json:"web" yaml:"web"`
	Academic float64 `json:"academic" yaml:"academic"`
	Scholar  float64 `json:"scholar" yaml:"scholar"`
	Local    float64 `json:"local" yaml:"local"`
}

// Cost returns the configured cost for a source kind.
func (t CostTable) Cost(kind SourceKind) float64 {
	switch kind {
	case SourceWeb:
		return t.Web
	case SourceAcademic:
		return t.Academic
	case SourceScholar:
		return t.Scholar
	case SourceLocal:
		return t.Local
	}
	return 0
}

// SourcesConfig holds settings for the source adapters and the dispatch phase.
type SourcesConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum merged result count per query (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// PerSourceResults is the maximum result count requested from each
	// adapter (default 10).
	PerSourceResults int `json:"per_source_results" yaml:"per_source_results"`

	// EnableWeb controls whether the web search adapter is used.
	EnableWeb bool `json:"enable_web" yaml:"enable_web"`

	// EnableArxiv controls whether the arXiv adapter is used.
	EnableArxiv bool `json:"enable_arxiv" yaml:"enable_arxiv"`

	// EnableScholar controls whether the Semantic Scholar adapter is used.
	EnableScholar bool `json:"enable_scholar" yaml:"enable_scholar"`

	// EnableLocal controls whether the local document adapter is used.
	EnableLocal bool `json:"enable_local" yaml:"enable_local"`

	// ScholarAPIKey is an optional Semantic Scholar key for higher rate limits.
	ScholarAPIKey string `json:"scholar_api_key,omitempty" yaml:"scholar_api_key,omitempty"`

	// WebQPS is the sustained request rate for the web adapter (default 1.0).
	WebQPS float64 `json:"web_qps" yaml:"web_qps"`

	// Costs assigns per-call costs to each adapter.
	Costs CostTable `json:"costs" yaml:"costs"`
}

// BudgetConfig holds the spend ceiling for a session.
type BudgetConfig struct {
	// Ceiling is the maximum number of budget units a session may spend.
	Ceiling float64 `json:"ceiling" yaml:"ceiling"`
}

// MemoryConfig holds settings for session memory recall.
type MemoryConfig struct {
	// RecallThreshold is the minimum similarity for a prior record to
	// short-circuit dispatch (default 0.6).
	RecallThreshold float64 `json:"recall_threshold" yaml:"recall_threshold"`

	// RelatedLimit is how many prior records are passed to summarization
	// as context (default 3).
	RelatedLimit int `json:"related_limit" yaml:"related_limit"`
}

// AIConfig holds shared settings for components that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SummaryConfig holds settings for the summarization step.
type SummaryConfig struct {
	AIConfig `yaml:",inline"`

	// Style selects the summary register: brief, comprehensive, or technical.
	Style string `json:"style" yaml:"style"`
}

// DocumentsConfig holds settings for the local document index.
type DocumentsConfig struct {
	// ChunkSize is the target chunk length in bytes (default 1500).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// MaxResults is the default maximum number of document query results
	// (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// FetchLimit caps the bytes kept from a fetched URL (default 32768).
	FetchLimit int `json:"fetch_limit" yaml:"fetch_limit"`
}

// AssistantConfig groups all component configurations.
type AssistantConfig struct {
	// DataDir is the base directory for local state (SQLite databases).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	Sources   SourcesConfig   `json:"sources" yaml:"sources"`
	Budget    BudgetConfig    `json:"budget" yaml:"budget"`
	Memory    MemoryConfig    `json:"memory" yaml:"memory"`
	Summary   SummaryConfig   `json:"summary" yaml:"summary"`
	Documents DocumentsConfig `json:"documents" yaml:"documents"`
}
