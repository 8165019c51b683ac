// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gap scores topics by how far an institution's share of activity
// trails the global share.
//
// For each topic, share = count / column total, and
// GapScore = global share - local share. A positive score means the topic
// is relatively more active worldwide than at the institution.
package gap

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-gap/internal/merge"
	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

// Output columns.
const (
	ColumnTopic  = merge.KeyColumn
	ColumnGlobal = "Global_count"
	ColumnLocal  = "Local_count"
	ColumnScore  = "Gap Score"
)

// Columns is the header of a gap score table.
var Columns = []string{ColumnTopic, ColumnGlobal, ColumnLocal, ColumnScore}

// Score is one topic's counts and gap score.
type Score struct {
	Topic    string  `json:"topic"`
	Short    string  `json:"short"`
	Global   int     `json:"global"`
	Local    int     `json:"local"`
	GapScore float64 `json:"gap_score"`
}

// Compute scores every topic present in either map. Results are ordered by
// gap score descending, then topic.
func Compute(global, local map[string]int) []Score {
	gTotal, lTotal := total(global), total(local)

	topics := map[string]bool{}
	for t := range global {
		topics[t] = true
	}
	for t := range local {
		topics[t] = true
	}

	scores := make([]Score, 0, len(topics))
	for t := range topics {
		g, l := global[t], local[t]
		scores = append(scores, Score{
			Topic:    t,
			Short:    ShortName(t),
			Global:   g,
			Local:    l,
			GapScore: share(g, gTotal) - share(l, lTotal),
		})
	}
	sortScores(scores)
	return scores
}

func total(m map[string]int) int {
	sum := 0
	for _, v := range m {
		sum += v
	}
	return sum
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func sortScores(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].GapScore != scores[j].GapScore {
			return scores[i].GapScore > scores[j].GapScore
		}
		return scores[i].Topic < scores[j].Topic
	})
}

const shortNameLen = 30

// ShortName abbreviates a compound topic label to its first "/" segment,
// capped at 30 runes.
func ShortName(topic string) string {
	s := strings.TrimSpace(strings.SplitN(topic, "/", 2)[0])
	if utf8.RuneCountInString(s) > shortNameLen {
		s = string([]rune(s)[:shortNameLen])
	}
	return s
}

// ApplyShortNames overrides Short with the curated alias of each topic
// found in aliases. Other topics keep their truncated label.
func ApplyShortNames(scores []Score, aliases map[string]string) {
	for i := range scores {
		if alias, ok := aliases[scores[i].Topic]; ok && strings.TrimSpace(alias) != "" {
			scores[i].Short = alias
		}
	}
}

// LoadShortNames reads a YAML mapping of full topic label to short name.
// An empty path yields no aliases.
func LoadShortNames(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading short names: %w", err)
	}
	var aliases map[string]string
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parsing short names %s: %w", path, err)
	}
	return aliases, nil
}

// Filter keeps topics with at least minGlobal global works and at most
// maxLocal local works. A negative maxLocal disables the upper bound.
func Filter(scores []Score, minGlobal, maxLocal int) []Score {
	var out []Score
	for _, s := range scores {
		if s.Global < minGlobal {
			continue
		}
		if maxLocal >= 0 && s.Local > maxLocal {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Opportunities returns up to n topics with fewer than localBelow local
// works, highest gap score first.
func Opportunities(scores []Score, localBelow, n int) []Score {
	var out []Score
	for _, s := range scores {
		if s.Local < localBelow {
			out = append(out, s)
		}
	}
	sortScores(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SumColumns totals the named count columns of w per topic. No names means
// every column.
func SumColumns(w *merge.Wide, names []string) (map[string]int, error) {
	if len(names) == 0 {
		out := make(map[string]int, len(w.Rows))
		for _, r := range w.Rows {
			out[r.Topic] = r.Total()
		}
		return out, nil
	}

	out := map[string]int{}
	for _, name := range names {
		col, ok := w.Column(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("no count column %q (have %s)", name, strings.Join(w.Header()[1:], ", "))
		}
		for topic, n := range col {
			out[topic] += n
		}
	}
	return out, nil
}

// Build loads the global and local merged tables named in cfg and scores
// them.
func Build(cfg types.GapConfig) ([]Score, error) {
	gw, err := merge.Read(cfg.GlobalPath)
	if err != nil {
		return nil, fmt.Errorf("reading global counts: %w", err)
	}
	lw, err := merge.Read(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("reading local counts: %w", err)
	}
	global, err := SumColumns(gw, cfg.GlobalColumns)
	if err != nil {
		return nil, fmt.Errorf("global counts: %w", err)
	}
	local, err := SumColumns(lw, cfg.LocalColumns)
	if err != nil {
		return nil, fmt.Errorf("local counts: %w", err)
	}
	scores := Compute(global, local)
	ApplyShortNames(scores, cfg.ShortNames)
	return scores, nil
}

// Records renders scores in column order.
func Records(scores []Score) [][]string {
	records := make([][]string, len(scores))
	for i, s := range scores {
		records[i] = []string{
			s.Topic,
			strconv.Itoa(s.Global),
			strconv.Itoa(s.Local),
			strconv.FormatFloat(s.GapScore, 'f', 6, 64),
		}
	}
	return records
}

// Write stores scores at path.
func Write(path string, scores []Score) error {
	return table.Write(path, Columns, Records(scores))
}

// Read loads a gap score table. Counts may carry thousands separators;
// blank cells read as 0.
func Read(path string) ([]Score, error) {
	header, records, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	pos, err := table.Require(header, Columns...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	scores := make([]Score, 0, len(records))
	for _, rec := range records {
		score, _ := strconv.ParseFloat(strings.TrimSpace(rec[pos[3]]), 64)
		topic := rec[pos[0]]
		scores = append(scores, Score{
			Topic:    topic,
			Short:    ShortName(topic),
			Global:   table.Count(rec[pos[1]]),
			Local:    table.Count(rec[pos[2]]),
			GapScore: score,
		})
	}
	return scores, nil
}
