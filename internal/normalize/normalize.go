// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize projects raw OpenAlex pages into flat rows. Missing or
// empty nested data never fails: text fields fall back to "N/A" and counts
// to 0. Only a page missing its top-level payload is rejected.
//
// Only the first concept, authorship and institution of a work are kept.
// OpenAlex already ranks them, so co-authors and secondary topics are dropped.
package normalize

import (
	"errors"
	"strings"

	"github.com/pdiddy/research-gap/pkg/types"
)

var (
	// ErrMissingGroups marks a grouped response without a group_by key.
	ErrMissingGroups = errors.New("response has no group_by")

	// ErrMissingResults marks an itemized response without a results key.
	ErrMissingResults = errors.New("response has no results")
)

// FirstOrDefault returns s[0], or def when s is empty.
func FirstOrDefault[T any](s []T, def T) T {
	if len(s) == 0 {
		return def
	}
	return s[0]
}

// StripIDPrefix keeps the final path segment of an OpenAlex id, so
// "https://openalex.org/C12345" becomes "C12345". Already-stripped ids are
// returned unchanged.
func StripIDPrefix(id string) string {
	id = strings.TrimRight(id, "/")
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return types.NotAvailable
	}
	return s
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Text cleans a free-text field: CRLF and bare CR become LF, and blank text
// becomes N/A. CSV readers fold CRLF inside quoted fields to LF.
func Text(s string) string {
	return orNA(lineBreaks.Replace(s))
}

func orZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

var (
	defaultConcept     = types.Concept{ID: types.NotAvailable, DisplayName: types.NotAvailable}
	defaultInstitution = types.Institution{DisplayName: types.NotAvailable}
)

// Grouped emits one row per group-by bucket, tagged with year.
func Grouped(page *types.RawPage, year int) ([]types.GroupedRow, error) {
	if page == nil || page.GroupBy == nil {
		return nil, ErrMissingGroups
	}
	groups := *page.GroupBy
	rows := make([]types.GroupedRow, 0, len(groups))
	for _, g := range groups {
		name := types.NotAvailable
		if g.KeyDisplayName != nil {
			name = Text(*g.KeyDisplayName)
		}
		rows = append(rows, types.GroupedRow{
			Year:        year,
			ConceptID:   orNA(g.Key),
			ConceptName: name,
			WorkCount:   orZero(g.Count),
		})
	}
	return rows, nil
}

// Itemized flattens every work on the page.
func Itemized(page *types.RawPage) ([]types.ItemRow, error) {
	if page == nil || page.Results == nil {
		return nil, ErrMissingResults
	}
	records := *page.Results
	rows := make([]types.ItemRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, Record(r))
	}
	return rows, nil
}

// Record flattens a single work.
func Record(r types.RawRecord) types.ItemRow {
	concept := FirstOrDefault(r.Concepts, defaultConcept)
	authorship := FirstOrDefault(r.Authorships, types.Authorship{})
	institution := FirstOrDefault(authorship.Institutions, defaultInstitution)

	conceptID := concept.ID
	if conceptID != types.NotAvailable {
		conceptID = StripIDPrefix(conceptID)
	}

	return types.ItemRow{
		ConceptID:              orNA(conceptID),
		ConceptName:            Text(concept.DisplayName),
		WorkTitle:              Text(r.Title),
		PrimaryAuthor:          Text(authorship.Author.DisplayName),
		AffiliationInstitution: Text(institution.DisplayName),
		CitationCount:          orZero(r.CitedByCount),
		PublicationDate:        orNA(r.PublicationDate),
	}
}
