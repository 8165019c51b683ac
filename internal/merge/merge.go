// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge outer-joins per-partition topic count tables into one wide
// table with a count column per partition.
package merge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

// KeyColumn is the topic column of a merged table.
const KeyColumn = "Primary Topic Id"

// Input columns expected in every per-partition file.
const (
	nameColumn  = "name"
	countColumn = "count"
)

// CountColumn returns the merged column name for a partition label.
func CountColumn(label string) string {
	return label + "_Count"
}

// Input is one partition's topic counts.
type Input struct {
	Label  string
	Counts map[string]int
}

// Row is one topic of a merged table. Counts align with Wide.Labels.
type Row struct {
	Topic  string
	Counts []int
}

// Total sums the row's counts.
func (r Row) Total() int {
	sum := 0
	for _, c := range r.Counts {
		sum += c
	}
	return sum
}

// Wide is a merged table.
type Wide struct {
	Labels []string
	Rows   []Row
}

// Header returns the column header for w.
func (w *Wide) Header() []string {
	h := []string{KeyColumn}
	for _, l := range w.Labels {
		h = append(h, CountColumn(l))
	}
	return h
}

// Records renders w in column order.
func (w *Wide) Records() [][]string {
	records := make([][]string, len(w.Rows))
	for i, r := range w.Rows {
		rec := []string{r.Topic}
		for _, c := range r.Counts {
			rec = append(rec, strconv.Itoa(c))
		}
		records[i] = rec
	}
	return records
}

// Column returns the counts of the named count column, keyed by topic.
func (w *Wide) Column(name string) (map[string]int, bool) {
	for i, l := range w.Labels {
		if CountColumn(l) == name || l == name {
			out := make(map[string]int, len(w.Rows))
			for _, r := range w.Rows {
				out[r.Topic] = r.Counts[i]
			}
			return out, true
		}
	}
	return nil, false
}

// Inputs joins inputs on topic name. Topics absent from a partition count
// as 0; rows are sorted by topic.
func Inputs(inputs []Input) *Wide {
	w := &Wide{}
	topics := map[string]bool{}
	for _, in := range inputs {
		w.Labels = append(w.Labels, in.Label)
		for name := range in.Counts {
			topics[name] = true
		}
	}

	names := make([]string, 0, len(topics))
	for name := range topics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		counts := make([]int, len(inputs))
		for i, in := range inputs {
			counts[i] = in.Counts[name]
		}
		w.Rows = append(w.Rows, Row{Topic: name, Counts: counts})
	}
	return w
}

// Dir loads <label>.csv for every label in cfg.DataDir and merges the ones
// that load. Missing files and files without name/count columns are
// reported on out and skipped.
func Dir(cfg types.MergeConfig, out io.Writer) (*Wide, error) {
	var inputs []Input
	for _, label := range cfg.Labels {
		path := filepath.Join(cfg.DataDir, label+".csv")
		in, err := LoadInput(path, label)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			fmt.Fprintf(out, "warning: file %s not found, skipping\n", path)
			continue
		case err != nil:
			fmt.Fprintf(out, "warning: %v, skipping\n", err)
			continue
		}
		inputs = append(inputs, in)
		fmt.Fprintf(out, "processed summary for %s (%d topics)\n", label, len(in.Counts))
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no partitions could be merged from %s", cfg.DataDir)
	}
	return Inputs(inputs), nil
}

// LoadInput reads one partition file. The delimiter is sniffed from the
// header line. Repeated topic names are summed.
func LoadInput(path, label string) (Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return Input{}, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Input{}, fmt.Errorf("reading %s: %w", path, err)
	}
	delim := SniffDelimiter(string(first))

	header, records, err := table.ReadFrom(br, delim)
	if err != nil {
		return Input{}, fmt.Errorf("%s: %w", path, err)
	}
	pos, err := table.Require(header, nameColumn, countColumn)
	if err != nil {
		return Input{}, fmt.Errorf("file %s must contain %q and %q columns: %w", path, nameColumn, countColumn, err)
	}

	counts := make(map[string]int, len(records))
	for _, rec := range records {
		name := strings.TrimSpace(rec[pos[0]])
		if name == "" {
			continue
		}
		counts[name] += table.Count(rec[pos[1]])
	}
	return Input{Label: label, Counts: counts}, nil
}

// SniffDelimiter picks the candidate delimiter that occurs most often
// outside quotes on the first line, defaulting to a comma.
func SniffDelimiter(sample string) rune {
	if i := strings.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range sample {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// FromGrouped pivots a grouped crawl table into one input per year, keyed
// by concept name.
func FromGrouped(rows []types.GroupedRow) []Input {
	byYear := map[int]map[string]int{}
	var years []int
	for _, r := range rows {
		m, ok := byYear[r.Year]
		if !ok {
			m = map[string]int{}
			byYear[r.Year] = m
			years = append(years, r.Year)
		}
		m[r.ConceptName] += r.WorkCount
	}
	sort.Ints(years)

	inputs := make([]Input, 0, len(years))
	for _, y := range years {
		inputs = append(inputs, Input{Label: strconv.Itoa(y), Counts: byYear[y]})
	}
	return inputs
}

// Write stores w at path.
func Write(path string, w *Wide) error {
	return table.Write(path, w.Header(), w.Records())
}

// Read loads a merged table. Every column after the key must end in
// "_Count"; blank cells read as 0.
func Read(path string) (*Wide, error) {
	header, records, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) != KeyColumn {
		return nil, fmt.Errorf("%s: first column must be %q", path, KeyColumn)
	}

	w := &Wide{}
	for _, h := range header[1:] {
		h = strings.TrimSpace(h)
		if !strings.HasSuffix(h, "_Count") {
			return nil, fmt.Errorf("%s: unexpected column %q", path, h)
		}
		w.Labels = append(w.Labels, strings.TrimSuffix(h, "_Count"))
	}
	for _, rec := range records {
		row := Row{Topic: rec[0], Counts: make([]int, len(w.Labels))}
		for i := range w.Labels {
			row.Counts[i] = table.Count(rec[i+1])
		}
		w.Rows = append(w.Rows, row)
	}
	return w, nil
}
