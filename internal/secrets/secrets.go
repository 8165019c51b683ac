// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials from a directory of plain-text files.
// The filename is the key and the trimmed contents are the value.
//
// Known keys: openalex-email (polite-pool contact address sent as mailto).
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key names understood by the crawler.
const (
	OpenAlexEmail = "openalex-email"
)

// DefaultDir is where secrets are looked up when no directory is configured.
const DefaultDir = ".secrets"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory yields an empty map. Unreadable files produce a warning on
// stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	values := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			values[name] = v
		}
	}
	return values, nil
}

// Resolve returns explicit when set, otherwise the value stored under key.
func Resolve(explicit string, values map[string]string, key string) string {
	if strings.TrimSpace(explicit) != "" {
		return strings.TrimSpace(explicit)
	}
	return values[key]
}
