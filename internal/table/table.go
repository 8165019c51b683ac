// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package table persists result tables as UTF-8 comma-separated text with
// RFC 4180 quoting, reads them back, and prints previews.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/research-gap/pkg/types"
)

// Write stores header and records at path. The file is written to a
// temporary sibling and renamed into place, so readers never observe a
// partial table.
func Write(path string, header []string, records [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".table-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	writeErr := Encode(tmpFile, header, records)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Encode writes header and records to w with RFC 4180 quoting.
func Encode(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	return cw.WriteAll(records)
}

// Read loads a table written by Write (or any comma-separated file with a
// header row). Rows shorter than the header are padded with blanks.
func Read(path string) (header []string, records [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadFrom(f, ',')
}

// ReadFrom parses delimited text from r.
func ReadFrom(r io.Reader, delim rune) (header []string, records [][]string, err error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing table: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("table has no header row")
	}

	header = all[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for _, rec := range all[1:] {
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// Index maps column names to positions.
func Index(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

// Require returns the positions of cols in header, or an error naming the
// first one that is missing.
func Require(header []string, cols ...string) ([]int, error) {
	idx := Index(header)
	pos := make([]int, len(cols))
	for i, c := range cols {
		p, ok := idx[c]
		if !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
		pos[i] = p
	}
	return pos, nil
}

// Count coerces a count cell to an integer. Blank and unparseable cells are
// 0; "1,234" and "12.0" are accepted.
func Count(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// WriteGrouped stores grouped rows with the grouped column header.
func WriteGrouped(path string, rows []types.GroupedRow) error {
	return Write(path, types.GroupedColumns, GroupedRecords(rows))
}

// WriteItemized stores itemized rows with the itemized column header.
func WriteItemized(path string, rows []types.ItemRow) error {
	return Write(path, types.ItemColumns, ItemRecords(rows))
}

func itemRecord(r types.ItemRow) []string {
	return []string{
		r.ConceptID,
		r.ConceptName,
		r.WorkTitle,
		r.PrimaryAuthor,
		r.AffiliationInstitution,
		strconv.Itoa(r.CitationCount),
		r.PublicationDate,
	}
}

// GroupedRecords renders rows as string records in column order.
func GroupedRecords(rows []types.GroupedRow) [][]string {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{strconv.Itoa(r.Year), r.ConceptID, r.ConceptName, strconv.Itoa(r.WorkCount)}
	}
	return records
}

// ItemRecords renders rows as string records in column order.
func ItemRecords(rows []types.ItemRow) [][]string {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = itemRecord(r)
	}
	return records
}

// ReadGrouped loads a grouped table, coercing Year and Work_Count to
// integers.
func ReadGrouped(path string) ([]types.GroupedRow, error) {
	header, records, err := Read(path)
	if err != nil {
		return nil, err
	}
	pos, err := Require(header, types.GroupedColumns...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rows := make([]types.GroupedRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, types.GroupedRow{
			Year:        Count(rec[pos[0]]),
			ConceptID:   rec[pos[1]],
			ConceptName: rec[pos[2]],
			WorkCount:   Count(rec[pos[3]]),
		})
	}
	return rows, nil
}

// ReadItemized loads an itemized table, coercing Citation_Count to an
// integer.
func ReadItemized(path string) ([]types.ItemRow, error) {
	header, records, err := Read(path)
	if err != nil {
		return nil, err
	}
	pos, err := Require(header, types.ItemColumns...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rows := make([]types.ItemRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, types.ItemRow{
			ConceptID:              rec[pos[0]],
			ConceptName:            rec[pos[1]],
			WorkTitle:              rec[pos[2]],
			PrimaryAuthor:          rec[pos[3]],
			AffiliationInstitution: rec[pos[4]],
			CitationCount:          Count(rec[pos[5]]),
			PublicationDate:        rec[pos[6]],
		})
	}
	return rows, nil
}

const previewCellWidth = 40

// Preview writes the first n records as an aligned text table.
func Preview(w io.Writer, header []string, records [][]string, n int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No rows.")
		return
	}
	if n > len(records) {
		n = len(records)
	}
	shown := records[:n]

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, rec := range shown {
		for i := range header {
			if l := utf8.RuneCountInString(clip(cell(rec, i))); l > widths[i] {
				widths[i] = l
			}
		}
	}

	line := func(cells func(i int) string) {
		parts := make([]string, len(header))
		for i := range header {
			c := cells(i)
			parts[i] = c + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(func(i int) string { return header[i] })
	total := 0
	for _, wd := range widths {
		total += wd + 2
	}
	fmt.Fprintln(w, strings.Repeat("-", total-2))
	for _, rec := range shown {
		line(func(i int) string { return clip(cell(rec, i)) })
	}
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= previewCellWidth {
		return s
	}
	r := []rune(s)
	return string(r[:previewCellWidth-3]) + "..."
}
