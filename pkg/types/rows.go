// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// NotAvailable is the placeholder written for text fields whose source
// nesting is absent or empty.
const NotAvailable = "N/A"

// GroupedRow is one concept count for one partition (typically a year) of a
// grouped aggregation crawl.
type GroupedRow struct {
	Year        int    `json:"year" yaml:"year"`
	ConceptID   string `json:"concept_id" yaml:"concept_id"`
	ConceptName string `json:"concept_name" yaml:"concept_name"`
	WorkCount   int    `json:"work_count" yaml:"work_count"`
}

// ItemRow is one work flattened to its primary concept, primary author and
// that author's first institution.
type ItemRow struct {
	ConceptID              string `json:"concept_id" yaml:"concept_id"`
	ConceptName            string `json:"concept_name" yaml:"concept_name"`
	WorkTitle              string `json:"work_title" yaml:"work_title"`
	PrimaryAuthor          string `json:"primary_author" yaml:"primary_author"`
	AffiliationInstitution string `json:"affiliation_institution" yaml:"affiliation_institution"`
	CitationCount          int    `json:"citation_count" yaml:"citation_count"`
	PublicationDate        string `json:"publication_date" yaml:"publication_date"`
}

// GroupedColumns is the header of a grouped result table.
var GroupedColumns = []string{"Year", "Concept_ID", "Concept_Name", "Work_Count"}

// ItemColumns is the header of an itemized result table.
var ItemColumns = []string{
	"Concept_ID",
	"Concept_Name",
	"Work_Title",
	"Primary_Author",
	"Affiliation_Institution",
	"Citation_Count",
	"Publication_Date",
}
