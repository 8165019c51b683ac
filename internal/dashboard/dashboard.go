// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dashboard serves gap scores as an HTML report and a small JSON API.
package dashboard

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/research-gap/internal/gap"
	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

// Defaults applied to a zero DashboardConfig.
const (
	DefaultAddr                 = "127.0.0.1:8080"
	DefaultLocalLabel           = "Local"
	DefaultMaxLocal             = 20
	DefaultOpportunityThreshold = 5
	DefaultTopN                 = 5
)

// DownloadName is the file name offered by /download.csv.
const DownloadName = "gap_analysis.csv"

//go:embed index.html.tmpl
var indexTemplate string

// Server renders a fixed set of gap scores.
type Server struct {
	cfg    types.DashboardConfig
	scores []gap.Score
	tmpl   *template.Template
	router chi.Router
}

// Load reads the gap table named by cfg.GapPath and builds a Server for it.
func Load(cfg types.DashboardConfig) (*Server, error) {
	scores, err := gap.Read(cfg.GapPath)
	if err != nil {
		return nil, fmt.Errorf("loading gap scores: %w", err)
	}
	gap.ApplyShortNames(scores, cfg.ShortNames)
	return New(scores, cfg)
}

// New builds a Server over scores.
func New(scores []gap.Score, cfg types.DashboardConfig) (*Server, error) {
	cfg = withDefaults(cfg)
	tmpl, err := template.New("index").Funcs(template.FuncMap{
		"count": formatCount,
		"score": func(f float64) string { return strconv.FormatFloat(f, 'f', 6, 64) },
		"inc":   func(i int) int { return i + 1 },
	}).Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	s := &Server{cfg: cfg, scores: scores, tmpl: tmpl}
	s.router = s.routes()
	return s, nil
}

func withDefaults(cfg types.DashboardConfig) types.DashboardConfig {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.LocalLabel == "" {
		cfg.LocalLabel = DefaultLocalLabel
	}
	if cfg.MaxLocal <= 0 {
		cfg.MaxLocal = DefaultMaxLocal
	}
	if cfg.OpportunityThreshold <= 0 {
		cfg.OpportunityThreshold = DefaultOpportunityThreshold
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	return cfg
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "topics": len(s.scores)})
	})
	r.Get("/", s.handleIndex)
	r.Get("/download.csv", s.handleDownload)

	r.Route("/api", func(r chi.Router) {
		r.Get("/topics", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.filtered(r))
		})
		r.Get("/opportunities", func(w http.ResponseWriter, r *http.Request) {
			below := queryInt(r, "below", s.cfg.OpportunityThreshold)
			n := queryInt(r, "n", s.cfg.TopN)
			writeJSON(w, http.StatusOK, gap.Opportunities(s.scores, below, n))
		})
	})
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// filtered applies the min_global and max_local query parameters and orders
// the result by local count descending.
func (s *Server) filtered(r *http.Request) []gap.Score {
	out := gap.Filter(s.scores, queryInt(r, "min_global", 0), queryInt(r, "max_local", s.cfg.MaxLocal))
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Local != out[j].Local {
			return out[i].Local > out[j].Local
		}
		return out[i].Topic < out[j].Topic
	})
	if out == nil {
		out = []gap.Score{}
	}
	return out
}

type pageData struct {
	LocalLabel    string
	MinGlobal     int
	MaxLocal      int
	MaxGlobal     int
	Chart         chart
	Opportunities []gap.Score
	Threshold     int
	Rows          []gap.Score
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rows := s.filtered(r)
	data := pageData{
		LocalLabel:    s.cfg.LocalLabel,
		MinGlobal:     queryInt(r, "min_global", 0),
		MaxLocal:      queryInt(r, "max_local", s.cfg.MaxLocal),
		MaxGlobal:     maxGlobal(s.scores),
		Chart:         buildChart(rows),
		Opportunities: gap.Opportunities(s.scores, s.cfg.OpportunityThreshold, s.cfg.TopN),
		Threshold:     s.cfg.OpportunityThreshold,
		Rows:          rows,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+DownloadName+`"`)
	if err := table.Encode(w, gap.Columns, gap.Records(s.scores)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func maxGlobal(scores []gap.Score) int {
	m := 0
	for _, s := range scores {
		if s.Global > m {
			m = s.Global
		}
	}
	return m
}

// Chart geometry in SVG user units.
const (
	chartHeight = 420
	marginTop   = 20
	marginLeft  = 60
	marginBot   = 140
	columnWidth = 36
	minWidth    = 480
)

type point struct {
	X       float64
	GlobalY float64
	LocalY  float64
	Score   gap.Score
}

type tick struct {
	Y     float64
	Label string
}

type chart struct {
	Width   int
	Height  int
	Left    int
	Top     int
	Bottom  float64
	Right   int
	Points  []point
	Ticks   []tick
	Decades int
}

// buildChart lays scores out left to right with both counts on a shared
// log10 axis. Counts below 1 sit on the baseline.
func buildChart(scores []gap.Score) chart {
	top := 0
	for _, s := range scores {
		top = max(top, s.Global, s.Local)
	}
	decades := 0
	for p := 1; p < top; p *= 10 {
		decades++
	}
	decades = max(decades, 1)

	width := max(marginLeft+len(scores)*columnWidth+columnWidth, minWidth)
	c := chart{
		Width:   width,
		Height:  chartHeight + marginBot,
		Left:    marginLeft,
		Top:     marginTop,
		Bottom:  float64(chartHeight),
		Right:   width - columnWidth/2,
		Decades: decades,
	}

	plotH := float64(chartHeight - marginTop)
	y := func(v int) float64 {
		if v < 1 {
			v = 1
		}
		return float64(marginTop) + plotH*(1-math.Log10(float64(v))/float64(decades))
	}

	for k := 0; k <= decades; k++ {
		v := int(math.Pow10(k))
		c.Ticks = append(c.Ticks, tick{Y: y(v), Label: formatCount(v)})
	}
	for i, s := range scores {
		c.Points = append(c.Points, point{
			X:       float64(marginLeft + columnWidth/2 + i*columnWidth),
			GlobalY: y(s.Global),
			LocalY:  y(s.Local),
			Score:   s,
		})
	}
	return c
}

// formatCount renders n with thousands separators.
func formatCount(n int) string {
	s := strconv.Itoa(n)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
