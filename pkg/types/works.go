// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-gap toolkit:
// the raw OpenAlex response shapes, the flat rows they normalize into, and the
// per-command configuration structs.
package types

// RawPage is one decoded response from the works endpoint. Top-level fields
// are pointers so a missing key can be told apart from an empty one: grouped
// queries populate GroupBy, itemized queries populate Results and
// Meta.NextCursor.
type RawPage struct {
	Results *[]RawRecord  `json:"results"`
	GroupBy *[]GroupCount `json:"group_by"`
	Meta    *PageMeta     `json:"meta"`
}

// PageMeta carries the paging metadata returned with every response.
type PageMeta struct {
	// Count is the total number of works matching the query.
	Count *int `json:"count"`

	// NextCursor is the continuation token for the next page. Nil or empty
	// means the server has no further pages.
	NextCursor *string `json:"next_cursor"`

	PerPage int `json:"per_page"`
}

// ContinuationToken returns the next cursor, or "" when the page carries none.
func (p *RawPage) ContinuationToken() string {
	if p == nil || p.Meta == nil || p.Meta.NextCursor == nil {
		return ""
	}
	return *p.Meta.NextCursor
}

// TotalCount returns meta.count, or -1 when the server did not report it.
func (p *RawPage) TotalCount() int {
	if p == nil || p.Meta == nil || p.Meta.Count == nil {
		return -1
	}
	return *p.Meta.Count
}

// GroupCount is one bucket of a group-by aggregation.
type GroupCount struct {
	Key            string  `json:"key"`
	KeyDisplayName *string `json:"key_display_name"`
	Count          *int    `json:"count"`
}

// RawRecord is one bibliographic work. Any nested field may be absent.
type RawRecord struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	PublicationDate string       `json:"publication_date"`
	CitedByCount    *int         `json:"cited_by_count"`
	Concepts        []Concept    `json:"concepts"`
	Authorships     []Authorship `json:"authorships"`
}

// Concept is a topic tag attached to a work, ranked by relevance.
type Concept struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Authorship links a work to one author and that author's affiliations.
type Authorship struct {
	Author       Author        `json:"author"`
	Institutions []Institution `json:"institutions"`
}

// Author is the author half of an authorship.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Institution is an affiliation listed on an authorship.
type Institution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
