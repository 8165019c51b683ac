// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package merge

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-gap/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDir_OuterJoinsAndSkips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2021.csv", "name,count\nRobotics,4\nFinTech,2\n")
	writeFile(t, dir, "2022.csv", "name;count\nFinTech;7\n\"Privacy; Data\";1\n")
	writeFile(t, dir, "2023.csv", "topic,total\nRobotics,1\n")
	writeFile(t, dir, "preprint.csv", "count\tname\n3\tRobotics\n")

	var out bytes.Buffer
	w, err := Dir(types.MergeConfig{
		DataDir: dir,
		Labels:  []string{"2021", "2022", "2023", "2024", "preprint"},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"2021", "2022", "preprint"}, w.Labels)
	assert.Equal(t, []string{KeyColumn, "2021_Count", "2022_Count", "preprint_Count"}, w.Header())
	assert.Equal(t, []Row{
		{Topic: "FinTech", Counts: []int{2, 7, 0}},
		{Topic: "Privacy; Data", Counts: []int{0, 1, 0}},
		{Topic: "Robotics", Counts: []int{4, 0, 3}},
	}, w.Rows)

	log := out.String()
	assert.Contains(t, log, "2023.csv must contain")
	assert.Contains(t, log, "2024.csv not found")
}

func TestDir_NothingToMerge(t *testing.T) {
	_, err := Dir(types.MergeConfig{DataDir: t.TempDir(), Labels: []string{"2021"}}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestLoadInput_SumsDuplicatesAndBlankCounts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.csv", "name,count\nA,1\nA,2\nB,\n,9\n")

	in, err := LoadInput(filepath.Join(dir, "x.csv"), "x")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 3, "B": 0}, in.Counts)
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		sample string
		want   rune
	}{
		{"name,count\n", ','},
		{"name;count\n", ';'},
		{"name\tcount\n", '\t'},
		{"name|count", '|'},
		{`"a,b";count` + "\n", ';'},
		{"single", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SniffDelimiter(tt.sample), "sample %q", tt.sample)
	}
}

func TestFromGrouped(t *testing.T) {
	rows := []types.GroupedRow{
		{Year: 2022, ConceptName: "AI", WorkCount: 5},
		{Year: 2021, ConceptName: "AI", WorkCount: 3},
		{Year: 2021, ConceptName: "ML", WorkCount: 1},
	}
	w := Inputs(FromGrouped(rows))
	assert.Equal(t, []string{"2021", "2022"}, w.Labels)
	assert.Equal(t, []Row{
		{Topic: "AI", Counts: []int{3, 5}},
		{Topic: "ML", Counts: []int{1, 0}},
	}, w.Rows)
	assert.Equal(t, 8, w.Rows[0].Total())
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topic_yearly_counts.csv")
	w := &Wide{
		Labels: []string{"2024", "2025"},
		Rows: []Row{
			{Topic: "AI in Healthcare / XAI", Counts: []int{10, 0}},
			{Topic: "Robotics, planning", Counts: []int{0, 4}},
		},
	}
	require.NoError(t, Write(path, w))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, w, got)

	col, ok := got.Column("2025_Count")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"AI in Healthcare / XAI": 0, "Robotics, planning": 4}, col)
	_, ok = got.Column("1999_Count")
	assert.False(t, ok)
}

func TestRead_RejectsForeignTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.csv", "Year,Concept_ID\n2021,C1\n")
	_, err := Read(filepath.Join(dir, "x.csv"))
	assert.Error(t, err)
}
