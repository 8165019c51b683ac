// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl drives grouped and cursor-paginated traversals of the
// OpenAlex works endpoint, normalizing each page as it arrives.
//
// Requests are strictly sequential. The only suspension points are the
// retry backoff inside the fetcher and the courtesy delay between cursor
// pages.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/research-gap/internal/httputil"
	"github.com/pdiddy/research-gap/internal/normalize"
	"github.com/pdiddy/research-gap/internal/openalex"
	"github.com/pdiddy/research-gap/pkg/types"
)

// DefaultPageDelay is the courtesy pause between cursor pages.
const DefaultPageDelay = 500 * time.Millisecond

// Fetcher executes one query. *openalex.Client satisfies it.
type Fetcher interface {
	ExecuteQuery(ctx context.Context, q openalex.Query) (*types.RawPage, error)
}

// QueryState is the mutable state of a single crawl.
type QueryState struct {
	SearchTerm       string
	Filter           string
	PageSize         int
	Fields           []string
	Cursor           string
	PagesFetched     int
	RecordsCollected int
	// TotalExpected is meta.count from the latest page, -1 until known.
	TotalExpected int
}

// Engine runs crawls against a Fetcher.
type Engine struct {
	Fetcher Fetcher

	// Sleeper waits out PageDelay. Nil uses the wall clock.
	Sleeper   httputil.Sleeper
	PageDelay time.Duration

	// Out receives progress lines. Nil discards them.
	Out io.Writer
}

func (e *Engine) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

func (e *Engine) sleeper() httputil.Sleeper {
	if e.Sleeper == nil {
		return httputil.RealSleeper{}
	}
	return e.Sleeper
}

// GroupedResult is the outcome of a grouped crawl.
type GroupedResult struct {
	Rows      []types.GroupedRow
	Completed []string
	Skipped   []string
}

// PartialError reports a grouped crawl aborted by a fatal error. The rows of
// the partitions listed in Completed are still in the GroupedResult returned
// alongside it.
type PartialError struct {
	Partition string
	Completed []string
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partition %s failed (%d completed): %v", e.Partition, len(e.Completed), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Grouped issues one group-by query per partition. A partition whose
// response lacks group_by is skipped; a fatal error stops the crawl and is
// returned as *PartialError.
func (e *Engine) Grouped(ctx context.Context, plan Plan) (GroupedResult, error) {
	plan.Mode = ModeGrouped
	plan = plan.withDefaults()
	if err := plan.Validate(); err != nil {
		return GroupedResult{}, err
	}
	w := e.out()

	var result GroupedResult
	for _, part := range plan.Partitions {
		fmt.Fprintf(w, "Fetching data for %s (%s) ", part.Label, plan.SearchTerm)

		page, err := e.Fetcher.ExecuteQuery(ctx, openalex.Query{
			Search:  plan.SearchTerm,
			GroupBy: plan.GroupBy,
			Filter:  part.Filter,
			PerPage: plan.PageSize,
		})
		if err != nil {
			fmt.Fprintln(w, "Failed.")
			SortGrouped(result.Rows)
			completed := append([]string(nil), result.Completed...)
			return result, &PartialError{Partition: part.Label, Completed: completed, Err: err}
		}

		rows, err := normalize.Grouped(page, part.Year)
		if err != nil {
			fmt.Fprintln(w, "Skipped.")
			result.Skipped = append(result.Skipped, part.Label)
			continue
		}

		result.Rows = append(result.Rows, rows...)
		result.Completed = append(result.Completed, part.Label)
		fmt.Fprintf(w, "Found %d top concepts. (Total works: %s)\n", len(rows), countString(page.TotalCount()))
	}

	SortGrouped(result.Rows)
	return result, nil
}

// CursorResult is the outcome of a cursor crawl.
type CursorResult struct {
	Rows  []types.ItemRow
	State QueryState
}

// Cursor walks the result set from the start cursor until the server stops
// returning a continuation token, pausing PageDelay after every page. Any
// fatal page error aborts the crawl and no rows are returned. A page without
// results ends the crawl, since no next token can be derived from it.
func (e *Engine) Cursor(ctx context.Context, plan Plan) (CursorResult, error) {
	plan.Mode = ModeCursor
	plan = plan.withDefaults()
	w := e.out()

	state := QueryState{
		SearchTerm:    plan.SearchTerm,
		Filter:        plan.Filter,
		PageSize:      plan.PageSize,
		Fields:        plan.Fields,
		Cursor:        openalex.StartCursor,
		TotalExpected: -1,
	}

	var rows []types.ItemRow
	for {
		page, err := e.Fetcher.ExecuteQuery(ctx, openalex.Query{
			Search:  state.SearchTerm,
			Filter:  state.Filter,
			PerPage: state.PageSize,
			Select:  state.Fields,
			Cursor:  state.Cursor,
		})
		if err != nil {
			return CursorResult{State: state}, fmt.Errorf("fetching page %d: %w", state.PagesFetched+1, err)
		}
		state.PagesFetched++

		pageRows, err := normalize.Itemized(page)
		if errors.Is(err, normalize.ErrMissingResults) {
			fmt.Fprintf(w, "Page %d: response has no results, stopping.\n", state.PagesFetched)
			break
		}

		rows = append(rows, pageRows...)
		state.RecordsCollected += len(pageRows)
		if n := page.TotalCount(); n >= 0 {
			state.TotalExpected = n
		}
		fmt.Fprintf(w, "Page %d: +%d records (%d/%s)\n",
			state.PagesFetched, len(pageRows), state.RecordsCollected, countString(state.TotalExpected))

		if e.PageDelay > 0 {
			if err := e.sleeper().Sleep(ctx, e.PageDelay); err != nil {
				return CursorResult{State: state}, &httputil.FatalError{Class: httputil.ClassCancelled, Err: err}
			}
		}

		next := page.ContinuationToken()
		if next == "" {
			break
		}
		state.Cursor = next
	}

	SortItemized(rows)
	return CursorResult{Rows: rows, State: state}, nil
}

func countString(n int) string {
	if n < 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d", n)
}

// SortGrouped orders rows by year ascending, then work count descending.
func SortGrouped(rows []types.GroupedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].WorkCount > rows[j].WorkCount
	})
}

// SortItemized orders rows by concept name, then citation count descending.
func SortItemized(rows []types.ItemRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].ConceptName), strings.ToLower(rows[j].ConceptName)
		if a != b {
			return a < b
		}
		return rows[i].CitationCount > rows[j].CitationCount
	})
}
