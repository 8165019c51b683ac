// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"fmt"
	"os"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-gap/internal/openalex"
)

// Mode selects between grouped aggregation and cursor listing.
type Mode string

const (
	ModeGrouped Mode = "grouped"
	ModeCursor  Mode = "cursor"
)

// DefaultGroupBy is the aggregation key used by grouped crawls.
const DefaultGroupBy = "concepts.id"

// DefaultFields is the select list used by cursor crawls.
var DefaultFields = []string{"id", "title", "publication_date", "cited_by_count", "concepts", "authorships"}

// Partition is one grouped query. Year is copied into every row the
// partition produces.
type Partition struct {
	Label  string `yaml:"label"`
	Year   int    `yaml:"year"`
	Filter string `yaml:"filter"`
}

// Plan describes one crawl. It can be built from flags or loaded from YAML.
type Plan struct {
	Mode       Mode        `yaml:"mode"`
	SearchTerm string      `yaml:"search"`
	GroupBy    string      `yaml:"group_by,omitempty"`
	Filter     string      `yaml:"filter,omitempty"`
	PageSize   int         `yaml:"per_page"`
	Fields     []string    `yaml:"select,omitempty"`
	Partitions []Partition `yaml:"partitions,omitempty"`
}

// YearPartitions returns one partition per year in [from, to].
func YearPartitions(from, to int) []Partition {
	var parts []Partition
	for y := from; y <= to; y++ {
		parts = append(parts, Partition{
			Label:  strconv.Itoa(y),
			Year:   y,
			Filter: openalex.YearFilter(y),
		})
	}
	return parts
}

// Validate reports the first structural problem with p.
func (p Plan) Validate() error {
	switch p.Mode {
	case ModeGrouped:
		if len(p.Partitions) == 0 {
			return fmt.Errorf("grouped plan has no partitions")
		}
		for i, part := range p.Partitions {
			if part.Filter == "" {
				return fmt.Errorf("partition %d (%s) has no filter", i, part.Label)
			}
		}
	case ModeCursor:
	default:
		return fmt.Errorf("unknown crawl mode %q", p.Mode)
	}
	if p.PageSize < 0 {
		return fmt.Errorf("per_page must not be negative")
	}
	return nil
}

// withDefaults fills the group-by key, select list and partition labels.
func (p Plan) withDefaults() Plan {
	if p.Mode == ModeGrouped && p.GroupBy == "" {
		p.GroupBy = DefaultGroupBy
	}
	if p.Mode == ModeCursor && len(p.Fields) == 0 {
		p.Fields = DefaultFields
	}
	parts := make([]Partition, len(p.Partitions))
	for i, part := range p.Partitions {
		if part.Label == "" {
			part.Label = strconv.Itoa(part.Year)
		}
		if part.Filter == "" && part.Year != 0 {
			part.Filter = openalex.YearFilter(part.Year)
		}
		parts[i] = part
	}
	p.Partitions = parts
	return p
}

// LoadPlan reads a crawl plan from a YAML file.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("reading plan file: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("parsing plan file: %w", err)
	}
	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return Plan{}, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return p, nil
}
