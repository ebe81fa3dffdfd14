// Package rastercat indexes and loads a local catalog of gridded
// environmental rasters. Files follow the <variable>_<period>_<YYYY-MM>.asc
// naming convention, e.g. sst_monthly_2023-06.asc.
package rastercat

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry describes one available raster file. The file itself is not read
// until the entry is selected for loading.
type Entry struct {
	Variable string
	Period   string
	Date     time.Time // first day of the slice, from the YYYY-MM token
	Path     string
}

// Label returns the human-readable time label for layers loaded from this
// entry, e.g. "Jun 2023".
func (e Entry) Label() string {
	return e.Date.Format("Jan 2006")
}

// Scan walks root and returns the catalog of recognized raster files,
// ordered by (variable, date). Files not matching the name convention are
// skipped with a debug log.
func Scan(root string, logger *slog.Logger) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		e, ok := parseName(path)
		if !ok {
			logger.Debug("skipping unrecognized catalog file", "path", path)
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan catalog %s: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Variable != entries[j].Variable {
			return entries[i].Variable < entries[j].Variable
		}
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries, nil
}

// parseName extracts (variable, period, date) from a catalog file name.
// The variable token may itself contain underscores (chlor_a), so the name
// is split from the right.
func parseName(path string) (Entry, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".asc") {
		return Entry{}, false
	}
	stem := strings.TrimSuffix(base, ".asc")

	i := strings.LastIndexByte(stem, '_')
	if i < 0 {
		return Entry{}, false
	}
	dateTok := stem[i+1:]
	rest := stem[:i]

	j := strings.LastIndexByte(rest, '_')
	if j < 0 {
		return Entry{}, false
	}
	period := rest[j+1:]
	variable := rest[:j]
	if variable == "" || period == "" {
		return Entry{}, false
	}

	date, err := time.Parse("2006-01", dateTok)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Variable: variable, Period: period, Date: date, Path: path}, true
}

// Filter selects entries with the given variable and period whose date falls
// in the inclusive [from, to] range. Input order is preserved.
func Filter(entries []Entry, variable, period string, from, to time.Time) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Variable != variable || e.Period != period {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}
