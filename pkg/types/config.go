package types

import "time"

// HTTPConfig holds shared HTTP settings used by commands that talk to OpenAlex.
type HTTPConfig struct {
	// Timeout is the per-request HTTP client timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-gap/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig bounds the retry policy applied to every API request.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per request (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// ThrottleBase is multiplied by 2^attempt after an HTTP 429 (default 1s).
	ThrottleBase time.Duration `json:"throttle_base" yaml:"throttle_base"`

	// HTTPErrorDelay is the fixed wait after other HTTP errors (default 1s).
	HTTPErrorDelay time.Duration `json:"http_error_delay" yaml:"http_error_delay"`

	// NetworkDelay is the fixed wait after connection or timeout errors (default 2s).
	NetworkDelay time.Duration `json:"network_delay" yaml:"network_delay"`
}

// PartialPolicy decides what happens to completed partitions when a grouped
// crawl aborts on a fatal error.
type PartialPolicy string

const (
	// PartialDiscard writes nothing when any partition fails.
	PartialDiscard PartialPolicy = "discard"

	// PartialKeep writes the completed partitions but still reports failure.
	PartialKeep PartialPolicy = "keep"
)

// CrawlConfig holds settings for one crawl invocation.
type CrawlConfig struct {
	HTTPConfig  `yaml:",inline"`
	RetryConfig `yaml:",inline"`

	// Endpoint is the works search URL (default https://api.openalex.org/works).
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Email is the courtesy identifier sent as mailto on every request.
	Email string `json:"email" yaml:"email"`

	// PageDelay is the courtesy pause after every successful cursor page
	// (default 500ms).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// OutputPath is the delimited-text file written on success.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// Partial selects the grouped-mode partial failure policy (default discard).
	Partial PartialPolicy `json:"partial" yaml:"partial"`

	// DBPath optionally archives completed runs into a SQLite database.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// MergeConfig holds settings for the year-partitioned topic count merge.
type MergeConfig struct {
	// DataDir holds one <label>.csv per label.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Labels lists the partitions to merge, in output column order.
	Labels []string `json:"labels" yaml:"labels"`

	// OutputPath is the merged wide table.
	OutputPath string `json:"output_path" yaml:"output_path"`
}

// GapConfig holds settings for the gap score computation.
type GapConfig struct {
	// GlobalPath is the merged table of global topic counts.
	GlobalPath string `json:"global_path" yaml:"global_path"`

	// LocalPath is the merged table of institution topic counts.
	LocalPath string `json:"local_path" yaml:"local_path"`

	// GlobalColumns and LocalColumns select the count columns summed per
	// topic. Empty means every *_Count column.
	GlobalColumns []string `json:"global_columns" yaml:"global_columns"`
	LocalColumns  []string `json:"local_columns" yaml:"local_columns"`

	// OutputPath is the gap score table.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// ShortNames maps full topic labels to curated chart labels. Topics
	// without an entry are truncated to their first "/" segment.
	ShortNames map[string]string `json:"short_names" yaml:"short_names"`
}

// DashboardConfig holds settings for the exploration dashboard.
type DashboardConfig struct {
	// Addr is the listen address (default 127.0.0.1:8080).
	Addr string `json:"addr" yaml:"addr"`

	// GapPath is the gap score table served by the dashboard.
	GapPath string `json:"gap_path" yaml:"gap_path"`

	// LocalLabel names the institution in chart legends (default "Local").
	LocalLabel string `json:"local_label" yaml:"local_label"`

	// MaxLocal is the default upper bound on local activity (default 20).
	MaxLocal int `json:"max_local" yaml:"max_local"`

	// OpportunityThreshold is the strict upper bound on local count for an
	// opportunity (default 5); TopN caps the opportunity list (default 5).
	OpportunityThreshold int `json:"opportunity_threshold" yaml:"opportunity_threshold"`
	TopN                 int `json:"top_n" yaml:"top_n"`

	// ShortNames maps full topic labels to curated chart labels.
	ShortNames map[string]string `json:"short_names" yaml:"short_names"`
}
