package domain

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Sample labels.
const (
	BackgroundLabel = 0
	PresenceLabel   = 1
)

// Sample is one row of the presence/background table.
type Sample struct {
	Lon   float64
	Lat   float64
	Label int
	Key   string
}

// DedupKey builds the deduplication key for a coordinate pair. Presence and
// background rows must use this single constructor so keys are always
// formatted identically; six decimals is ~0.1 m, well below any cell size.
func DedupKey(lon, lat float64) string {
	return fmt.Sprintf("%.6f|%.6f", lon, lat)
}

// ExclusionRule is a named data-cleaning rule removing known-erroneous
// presence rows. The zero value excludes nothing.
type ExclusionRule struct {
	Enabled     bool
	MaxLatitude float64
	Reason      string
}

// Excludes reports whether the rule removes the sample. Only presence rows
// are subject to exclusion.
func (r ExclusionRule) Excludes(s Sample) bool {
	return r.Enabled && s.Label == PresenceLabel && s.Lat > r.MaxLatitude
}

// ErrNoPresence signals an empty presence set after spatial and temporal
// filtering; fitting a model on it would fail downstream, so the run aborts
// here with the offending filter parameters attached.
var ErrNoPresence = errors.New("no presence records after filtering")

// BuildParams configures sample assembly.
type BuildParams struct {
	Bounds         Bounds
	Month          time.Month
	BackgroundSize int
	Exclusion      ExclusionRule
	Rand           *rand.Rand
}

// BuildResult is the assembled sample table plus bookkeeping counts.
type BuildResult struct {
	Table             []Sample
	Presence          int
	Background        int
	DroppedCollision  int // background rows colliding with a presence key
	DroppedNoData     int // background rows over missing cells
	DroppedDuplicate  int // presence rows repeating an earlier key
	ExcludedPresences int // presence rows removed by the exclusion rule
}

// Shortfall reports how many requested background rows were not produced.
func (r BuildResult) Shortfall(requested int) int {
	if r.Background >= requested {
		return 0
	}
	return requested - r.Background
}

// BuildSamples assembles the presence/background table from occurrence
// records and a reference layer.
//
// Occurrences are subset to the bounding box and target month and labeled 1;
// rows repeating a dedup key, falling over a no-data cell, or caught by the
// exclusion rule are dropped. Background rows are a random draw without
// replacement of valid cell centers from ref, labeled 0; draws colliding
// with a presence key are dropped. If fewer valid cells exist than
// requested, the background set silently shrinks; callers surface the
// shortfall as a warning.
func BuildSamples(recs []Occurrence, ref *Layer, p BuildParams) (BuildResult, error) {
	var res BuildResult

	subset := FilterOccurrences(recs, p.Bounds, p.Month)

	seen := make(map[string]struct{}, len(subset))
	for _, occ := range subset {
		s := Sample{Lon: occ.Lon, Lat: occ.Lat, Label: PresenceLabel, Key: DedupKey(occ.Lon, occ.Lat)}
		if _, dup := seen[s.Key]; dup {
			res.DroppedDuplicate++
			continue
		}
		if _, ok := ref.ValueAt(s.Lon, s.Lat); !ok {
			res.DroppedNoData++
			continue
		}
		if p.Exclusion.Excludes(s) {
			res.ExcludedPresences++
			continue
		}
		seen[s.Key] = struct{}{}
		res.Table = append(res.Table, s)
		res.Presence++
	}

	if res.Presence == 0 {
		return res, fmt.Errorf("%w: bounds=%+v month=%s", ErrNoPresence, p.Bounds, p.Month)
	}

	valid := ref.ValidCells()
	p.Rand.Shuffle(len(valid), func(i, j int) { valid[i], valid[j] = valid[j], valid[i] })

	for _, flat := range valid {
		if res.Background >= p.BackgroundSize {
			break
		}
		ix, iy := flat%ref.Grid.Nx, flat/ref.Grid.Nx
		lon, lat := ref.Grid.CellCenter(ix, iy)
		key := DedupKey(lon, lat)
		if _, collides := seen[key]; collides {
			res.DroppedCollision++
			continue
		}
		seen[key] = struct{}{}
		res.Table = append(res.Table, Sample{Lon: lon, Lat: lat, Label: BackgroundLabel, Key: key})
		res.Background++
	}

	return res, nil
}
