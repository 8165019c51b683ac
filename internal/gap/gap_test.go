// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-gap/internal/merge"
	"github.com/pdiddy/research-gap/pkg/types"
)

func TestCompute(t *testing.T) {
	global := map[string]int{"AI": 600, "Robotics": 300, "FinTech": 100}
	local := map[string]int{"AI": 8, "Robotics": 2, "Quantum": 10}

	scores := Compute(global, local)
	require.Len(t, scores, 4)

	byTopic := map[string]Score{}
	for _, s := range scores {
		byTopic[s.Topic] = s
	}
	assert.InDelta(t, 0.6-0.4, byTopic["AI"].GapScore, 1e-9)
	assert.InDelta(t, 0.3-0.1, byTopic["Robotics"].GapScore, 1e-9)
	assert.InDelta(t, 0.1, byTopic["FinTech"].GapScore, 1e-9)
	assert.InDelta(t, -0.5, byTopic["Quantum"].GapScore, 1e-9)
	assert.Equal(t, 0, byTopic["Quantum"].Global)

	assert.Equal(t, "FinTech", scores[2].Topic)
	assert.Equal(t, "Quantum", scores[3].Topic)
}

func TestCompute_TiesOrderedByTopic(t *testing.T) {
	scores := Compute(map[string]int{"b": 1, "a": 1}, nil)
	require.Len(t, scores, 2)
	assert.Equal(t, "a", scores[0].Topic)
	assert.Equal(t, "b", scores[1].Topic)
}

func TestCompute_EmptyLocal(t *testing.T) {
	scores := Compute(map[string]int{"A": 1, "B": 3}, nil)
	require.Len(t, scores, 2)
	assert.Equal(t, "B", scores[0].Topic)
	assert.InDelta(t, 0.75, scores[0].GapScore, 1e-9)
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "Artificial Intelligence in Hea", ShortName("Artificial Intelligence in Healthcare / Explainable AI"))
	assert.Equal(t, "CAR-T cell therapy research", ShortName("CAR-T cell therapy research"))
	assert.Equal(t, "BIM", ShortName(" BIM / Construction"))
}

func TestApplyShortNames(t *testing.T) {
	const aiTopic = "Artificial Intelligence in Healthcare / Explainable AI"
	scores := Compute(map[string]int{aiTopic: 5, "Quantum Computing Algorithms and Architecture": 3, "Blank alias": 1}, nil)
	ApplyShortNames(scores, map[string]string{aiTopic: "AI in Healthcare", "Blank alias": " "})

	byTopic := map[string]string{}
	for _, s := range scores {
		byTopic[s.Topic] = s.Short
	}
	assert.Equal(t, "AI in Healthcare", byTopic[aiTopic])
	assert.Equal(t, "Quantum Computing Algorithms a", byTopic["Quantum Computing Algorithms and Architecture"])
	assert.Equal(t, "Blank alias", byTopic["Blank alias"])
}

func TestLoadShortNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short_names.yaml")
	content := "\"Artificial Intelligence in Healthcare / Explainable AI\": AI in Healthcare\nCAR-T Cell Therapy Research: CAR-T\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	aliases, err := LoadShortNames(path)
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, "AI in Healthcare", aliases["Artificial Intelligence in Healthcare / Explainable AI"])
	assert.Equal(t, "CAR-T", aliases["CAR-T Cell Therapy Research"])

	aliases, err = LoadShortNames("")
	require.NoError(t, err)
	assert.Nil(t, aliases)

	_, err = LoadShortNames(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading short names")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- a list\n- not a map\n"), 0o644))
	_, err = LoadShortNames(bad)
	assert.ErrorContains(t, err, "parsing short names")
}

func TestFilterAndOpportunities(t *testing.T) {
	scores := []Score{
		{Topic: "a", Global: 1000, Local: 1, GapScore: 0.3},
		{Topic: "b", Global: 50, Local: 0, GapScore: 0.5},
		{Topic: "c", Global: 2000, Local: 40, GapScore: 0.1},
		{Topic: "d", Global: 900, Local: 4, GapScore: 0.4},
		{Topic: "e", Global: 10, Local: 5, GapScore: 0.9},
	}

	got := Filter(scores, 100, 20)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Topic)
	assert.Equal(t, "d", got[1].Topic)

	assert.Len(t, Filter(scores, 0, -1), 5)

	opp := Opportunities(scores, 5, 2)
	require.Len(t, opp, 2)
	assert.Equal(t, "b", opp[0].Topic)
	assert.Equal(t, "d", opp[1].Topic)
	// Input order is untouched.
	assert.Equal(t, "a", scores[0].Topic)
}

func TestSumColumns(t *testing.T) {
	w := &merge.Wide{
		Labels: []string{"2023", "2024", "2025"},
		Rows: []merge.Row{
			{Topic: "AI", Counts: []int{1, 2, 3}},
			{Topic: "ML", Counts: []int{0, 0, 7}},
		},
	}

	all, err := SumColumns(w, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"AI": 6, "ML": 7}, all)

	recent, err := SumColumns(w, []string{"2024_Count", "2025"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"AI": 5, "ML": 7}, recent)

	_, err = SumColumns(w, []string{"1990_Count"})
	assert.ErrorContains(t, err, "1990_Count")
}

func TestBuildWriteRead(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.csv")
	localPath := filepath.Join(dir, "local.csv")
	require.NoError(t, merge.Write(globalPath, &merge.Wide{
		Labels: []string{"2024", "2025"},
		Rows:   []merge.Row{{Topic: "AI", Counts: []int{30, 30}}, {Topic: "Bio", Counts: []int{20, 20}}},
	}))
	require.NoError(t, merge.Write(localPath, &merge.Wide{
		Labels: []string{"2024", "2025"},
		Rows:   []merge.Row{{Topic: "AI", Counts: []int{1, 1}}, {Topic: "Bio", Counts: []int{3, 5}}},
	}))

	scores, err := Build(types.GapConfig{
		GlobalPath:   globalPath,
		LocalPath:    localPath,
		LocalColumns: []string{"2025_Count"},
		ShortNames:   map[string]string{"Bio": "Biology"},
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "AI", scores[0].Topic)
	assert.Equal(t, "AI", scores[0].Short)
	assert.Equal(t, "Biology", scores[1].Short)
	assert.Equal(t, 60, scores[0].Global)
	assert.Equal(t, 1, scores[0].Local)

	out := filepath.Join(dir, "gap.csv")
	require.NoError(t, Write(out, scores))
	got, err := Read(out)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, scores[0].Topic, got[0].Topic)
	assert.Equal(t, scores[0].Global, got[0].Global)
	assert.InDelta(t, scores[0].GapScore, got[0].GapScore, 1e-6)
}

func TestRead_ThousandsSeparators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.csv")
	content := "Primary Topic Id,Global_count,Local_count,Gap Score\n\"Stock Market Forecasting Methods\",\"12,345\",,0.000123\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12345, got[0].Global)
	assert.Equal(t, 0, got[0].Local)
	assert.Equal(t, "Stock Market Forecasting Metho", got[0].Short)
}

func TestBuild_MissingFile(t *testing.T) {
	_, err := Build(types.GapConfig{GlobalPath: filepath.Join(t.TempDir(), "nope.csv")})
	assert.ErrorContains(t, err, "global counts")
}
