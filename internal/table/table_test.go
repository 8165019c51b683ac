// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-gap/internal/normalize"
	"github.com/pdiddy/research-gap/pkg/types"
)

func TestItemizedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "works.csv")
	rows := []types.ItemRow{
		{
			ConceptID:              "C12345",
			ConceptName:            "Artificial intelligence",
			WorkTitle:              `Attention, "really", is all you need`,
			PrimaryAuthor:          "Vaswani, Ashish",
			AffiliationInstitution: "Université de Montréal",
			CitationCount:          90000,
			PublicationDate:        "2017-06-12",
		},
		{
			ConceptID:              "N/A",
			ConceptName:            "N/A",
			WorkTitle:              "Line one\nline two",
			PrimaryAuthor:          "N/A",
			AffiliationInstitution: "N/A",
			CitationCount:          0,
			PublicationDate:        "N/A",
		},
	}

	require.NoError(t, WriteItemized(path, rows))
	got, err := ReadItemized(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(types.ItemColumns, ",")+"\n"))
	assert.Contains(t, string(data), `"Attention, ""really"", is all you need"`)

	t.Run("carriage returns in text fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crlf.csv")
		rows := []types.ItemRow{normalize.Record(types.RawRecord{
			Title:    "Line one\r\nLine two",
			Concepts: []types.Concept{{ID: "https://openalex.org/C7", DisplayName: "Data\rmining"}},
			Authorships: []types.Authorship{{
				Author:       types.Author{DisplayName: "Grace\r\nHopper"},
				Institutions: []types.Institution{{DisplayName: "Yale\rUniversity"}},
			}},
		})}
		assert.Equal(t, "Line one\nLine two", rows[0].WorkTitle)

		require.NoError(t, WriteItemized(path, rows))
		got, err := ReadItemized(path)
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})
}

func TestGroupedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concept_by_year.csv")
	rows := []types.GroupedRow{
		{Year: 2021, ConceptID: "https://openalex.org/C1", ConceptName: "Computer science", WorkCount: 120},
		{Year: 2022, ConceptID: "N/A", ConceptName: "N/A", WorkCount: 0},
	}
	require.NoError(t, WriteGrouped(path, rows))

	got, err := ReadGrouped(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestReadGrouped_CoercesCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.csv")
	content := "Year,Concept_ID,Concept_Name,Work_Count\n" +
		"2021,C1,AI,12.0\n" +
		"2022,C2,ML,\n" +
		"2023,C3,CV,\"1,234\"\n" +
		"2024,C4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := ReadGrouped(path)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, 12, rows[0].WorkCount)
	assert.Equal(t, 0, rows[1].WorkCount)
	assert.Equal(t, 1234, rows[2].WorkCount)
	assert.Equal(t, "", rows[3].ConceptName)
	assert.Equal(t, 0, rows[3].WorkCount)
}

func TestReadGrouped_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.csv")
	require.NoError(t, os.WriteFile(path, []byte("Year,Concept_ID\n2021,C1\n"), 0o644))

	_, err := ReadGrouped(path)
	assert.ErrorContains(t, err, `missing column "Concept_Name"`)
}

func TestRead_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, _, err := Read(path)
	assert.Error(t, err)
}

func TestRead_StripsBOM(t *testing.T) {
	header, _, err := ReadFrom(strings.NewReader("\ufeffname,count\nx,1\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, "name", header[0])
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(filepath.Join(dir, "t.csv"), []string{"a"}, [][]string{{"1"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "t.csv", entries[0].Name())
}

func TestCount(t *testing.T) {
	tests := map[string]int{
		"":       0,
		" 7 ":    7,
		"3.9":    3,
		"12,000": 12000,
		"abc":    0,
		"NaN":    0,
		"-4":     -4,
	}
	for in, want := range tests {
		assert.Equal(t, want, Count(in), "Count(%q)", in)
	}
}

func TestPreview(t *testing.T) {
	var buf bytes.Buffer
	records := [][]string{
		{"2021", "C1", "AI", "10"},
		{"2021", "C2", strings.Repeat("x", 60), "5"},
		{"2022", "C3", "ML", "1"},
	}
	Preview(&buf, types.GroupedColumns, records, 2)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Year  Concept_ID  Concept_Name"))
	assert.Contains(t, lines[3], strings.Repeat("x", 37)+"...")
	assert.NotContains(t, buf.String(), "ML")
}

func TestPreview_Empty(t *testing.T) {
	var buf bytes.Buffer
	Preview(&buf, types.GroupedColumns, nil, 5)
	assert.Equal(t, "No rows.\n", buf.String())
}

func TestManifestRoundTrip(t *testing.T) {
	path := ManifestPath(filepath.Join(t.TempDir(), "concepts.csv"))
	assert.True(t, strings.HasSuffix(path, "concepts.manifest.yaml"))

	m := NewManifest("grouped", ManifestQuery{Search: "generative AI", GroupBy: "concepts.id", Partitions: []string{"2021", "2022"}})
	m.Summary = ManifestSummary{Rows: 12, Completed: []string{"2021"}}
	m.Finish(StatusPartial, errors.New("partition 2022 failed"))
	require.NoError(t, WriteManifest(path, m))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, got.RunID)
	assert.Len(t, got.RunID, 36)
	assert.Equal(t, StatusPartial, got.Status)
	assert.Equal(t, "partition 2022 failed", got.Error)
	assert.Equal(t, m.Summary, got.Summary)
	assert.Equal(t, m.Query, got.Query)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}
