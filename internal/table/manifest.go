// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"
)

// Run status values recorded in manifests and the run archive.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusPartial   = "partial"
)

// Manifest describes one crawl run and the table it produced. It is written
// next to the table so a reader can tell how the file was made without
// re-querying the API.
type Manifest struct {
	RunID      string          `yaml:"run_id"`
	Mode       string          `yaml:"mode"`
	Query      ManifestQuery   `yaml:"query"`
	Status     string          `yaml:"status"`
	Output     string          `yaml:"output,omitempty"`
	Summary    ManifestSummary `yaml:"summary"`
	StartedAt  time.Time       `yaml:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at"`
	Error      string          `yaml:"error,omitempty"`
}

// ManifestQuery stores the query parameters in a serializable form.
type ManifestQuery struct {
	Search     string   `yaml:"search"`
	Filter     string   `yaml:"filter,omitempty"`
	GroupBy    string   `yaml:"group_by,omitempty"`
	PerPage    int      `yaml:"per_page,omitempty"`
	Partitions []string `yaml:"partitions,omitempty"`
}

// ManifestSummary stores result statistics.
type ManifestSummary struct {
	Rows      int      `yaml:"rows"`
	Pages     int      `yaml:"pages,omitempty"`
	Expected  int      `yaml:"expected,omitempty"`
	Completed []string `yaml:"completed,omitempty"`
	Skipped   []string `yaml:"skipped,omitempty"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(mode string, q ManifestQuery) *Manifest {
	return &Manifest{
		RunID:     uuid.New().String(),
		Mode:      mode,
		Query:     q,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the completion time and status.
func (m *Manifest) Finish(status string, err error) {
	m.Status = status
	m.FinishedAt = time.Now().UTC()
	if err != nil {
		m.Error = err.Error()
	}
}

// ManifestPath returns the manifest location for a table path:
// "out/concepts.csv" becomes "out/concepts.manifest.yaml".
func ManifestPath(tablePath string) string {
	ext := filepath.Ext(tablePath)
	return strings.TrimSuffix(tablePath, ext) + ".manifest.yaml"
}

// WriteManifest saves m as YAML.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
