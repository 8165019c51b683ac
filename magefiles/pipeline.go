//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// env returns the environment variable key, or def when unset.
func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Crawl runs a grouped crawl for $SEARCH (default "generative AI") into
// data/global/concept_by_year.csv, archiving the run in data/runs.db.
func Crawl() error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath(), "crawl", "grouped",
		"--search", env("SEARCH", "generative AI"),
		"--output", "data/global/concept_by_year.csv",
		"--db", "data/runs.db",
		"--partial", env("PARTIAL", "discard"),
	)
}

// Merge pivots the grouped crawl into data/global/topic_yearly_counts.csv.
func Merge() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "merge",
		"--from-crawl", "data/global/concept_by_year.csv",
		"--output", "data/global/topic_yearly_counts.csv",
	)
}

// Gap scores the global table against data/local/topic_yearly_counts.csv,
// summing $LOCAL_COLUMNS (default: every year).
func Gap() error {
	mg.Deps(Build)
	args := []string{"gap",
		"--global", "data/global/topic_yearly_counts.csv",
		"--local", "data/local/topic_yearly_counts.csv",
		"--output", "data/gap_scores.csv",
	}
	if cols := os.Getenv("LOCAL_COLUMNS"); cols != "" {
		args = append(args, "--local-columns", cols)
	}
	return sh.RunV(binPath(), args...)
}

// Serve starts the dashboard on data/gap_scores.csv.
func Serve() error {
	mg.Deps(Build)
	fmt.Println("Starting dashboard; press Ctrl-C to stop.")
	return sh.RunV(binPath(), "serve", "--gap", "data/gap_scores.csv", "--local-label", env("LOCAL_LABEL", "Local"))
}

// Runs lists the archived crawl runs.
func Runs() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "runs", "--db", "data/runs.db")
}
