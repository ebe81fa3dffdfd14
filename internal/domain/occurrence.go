package domain

import (
	"time"

	"github.com/golang/geo/s2"
)

// Occurrence is one observed sighting of a species. Records are immutable
// once fetched; downstream stages filter, never mutate.
type Occurrence struct {
	TaxonID        string    `json:"taxon_id"`
	ScientificName string    `json:"scientific_name"`
	Lon            float64   `json:"lon"`
	Lat            float64   `json:"lat"`
	EventDate      time.Time `json:"event_date"`
}

// Month returns the calendar month of the observation.
func (o Occurrence) Month() time.Month {
	return o.EventDate.Month()
}

// Bounds is a lon/lat bounding box, inclusive on all edges.
type Bounds struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// rect builds the equivalent s2 rectangle.
func (b Bounds) rect() s2.Rect {
	r := s2.RectFromLatLng(s2.LatLngFromDegrees(b.YMin, b.XMin))
	return r.AddPoint(s2.LatLngFromDegrees(b.YMax, b.XMax))
}

// Contains reports whether the coordinate falls inside the box.
func (b Bounds) Contains(lon, lat float64) bool {
	return b.rect().ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}

// FilterOccurrences returns the records inside bounds whose event month
// equals month. Input order is preserved.
func FilterOccurrences(recs []Occurrence, bounds Bounds, month time.Month) []Occurrence {
	rect := bounds.rect()
	out := make([]Occurrence, 0, len(recs))
	for _, r := range recs {
		if r.Month() != month {
			continue
		}
		if !rect.ContainsLatLng(s2.LatLngFromDegrees(r.Lat, r.Lon)) {
			continue
		}
		out = append(out, r)
	}
	return out
}
