// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-gap/internal/gap"
	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

func sampleScores() []gap.Score {
	return gap.Compute(
		map[string]int{
			"Privacy-Preserving Technologies in Data": 52000,
			"CAR-T cell therapy research":             31000,
			"Robotic Path Planning Algorithms":        9000,
			"Spectroscopy and Chemometric Analyses":   800,
		},
		map[string]int{
			"Privacy-Preserving Technologies in Data": 2,
			"CAR-T cell therapy research":             40,
			"Robotic Path Planning Algorithms":        0,
			"Spectroscopy and Chemometric Analyses":   12,
		},
	)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(sampleScores(), types.DashboardConfig{LocalLabel: "BU"})
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestServer(t), "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","topics":4}`, w.Body.String())
}

func TestTopics_DefaultFilter(t *testing.T) {
	w := get(t, newTestServer(t), "/api/topics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got []gap.Score
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	// CAR-T has 40 local works, above the default max of 20.
	require.Len(t, got, 3)
	assert.Equal(t, "Spectroscopy and Chemometric Analyses", got[0].Topic)
	assert.Equal(t, 12, got[0].Local)
	assert.Equal(t, 0, got[2].Local)
}

func TestTopics_QueryParameters(t *testing.T) {
	w := get(t, newTestServer(t), "/api/topics?min_global=10000&max_local=100")
	var got []gap.Score
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "CAR-T cell therapy research", got[0].Topic)
	assert.Equal(t, "Privacy-Preserving Technologies in Data", got[1].Topic)
}

func TestTopics_NoMatchesIsEmptyArray(t *testing.T) {
	w := get(t, newTestServer(t), "/api/topics?min_global=1000000")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestOpportunities(t *testing.T) {
	w := get(t, newTestServer(t), "/api/opportunities?n=2")
	var got []gap.Score
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Less(t, s.Local, 5)
	}
	assert.GreaterOrEqual(t, got[0].GapScore, got[1].GapScore)
}

func TestDownload(t *testing.T) {
	w := get(t, newTestServer(t), "/download.csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), DownloadName)

	header, records, err := table.ReadFrom(strings.NewReader(w.Body.String()), ',')
	require.NoError(t, err)
	assert.Equal(t, gap.Columns, header)
	assert.Len(t, records, 4)
}

func TestIndex(t *testing.T) {
	w := get(t, newTestServer(t), "/?max_local=100")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "BU Research Gap Analysis")
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "Count (log scale)")
	assert.Contains(t, body, "Global count: 52,000")
	assert.Contains(t, body, "Top investment opportunities")
	assert.Contains(t, body, `value="100"`)
	assert.Equal(t, 4, strings.Count(body, `<circle class="global"`))
}

func TestIndex_EscapesTopicNames(t *testing.T) {
	s, err := New([]gap.Score{{Topic: "<script>x</script>", Short: "<script>x</script>", Global: 10, Local: 1}}, types.DashboardConfig{})
	require.NoError(t, err)
	body := get(t, s, "/").Body.String()
	assert.NotContains(t, body, "<script>x</script>")
	assert.Contains(t, body, "Local Research Gap Analysis")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.csv")
	require.NoError(t, gap.Write(path, sampleScores()))

	s, err := Load(types.DashboardConfig{GapPath: path})
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, s.Addr())

	_, err = Load(types.DashboardConfig{GapPath: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

func TestLoad_ShortNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.csv")
	scores := sampleScores()
	require.NoError(t, gap.Write(path, scores))

	s, err := Load(types.DashboardConfig{
		GapPath:    path,
		ShortNames: map[string]string{scores[0].Topic: "Curated label"},
	})
	require.NoError(t, err)

	shorts := map[string]string{}
	for _, sc := range s.scores {
		shorts[sc.Topic] = sc.Short
	}
	assert.Equal(t, "Curated label", shorts[scores[0].Topic])
}

func TestBuildChart_LogScale(t *testing.T) {
	c := buildChart([]gap.Score{
		{Topic: "a", Global: 1000, Local: 1},
		{Topic: "b", Global: 10, Local: 0},
	})
	require.Len(t, c.Points, 2)
	assert.Equal(t, 3, c.Decades)
	require.Len(t, c.Ticks, 4)
	assert.Equal(t, "1,000", c.Ticks[3].Label)

	// 1000 is at the top of the plot, 1 and 0 on the baseline.
	assert.InDelta(t, float64(marginTop), c.Points[0].GlobalY, 1e-9)
	assert.InDelta(t, c.Bottom, c.Points[0].LocalY, 1e-9)
	assert.InDelta(t, c.Bottom, c.Points[1].LocalY, 1e-9)
	assert.Less(t, c.Points[0].X, c.Points[1].X)
}

func TestFormatCount(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4200: "-4,200"}
	for n, want := range tests {
		assert.Equal(t, want, formatCount(n))
	}
}
