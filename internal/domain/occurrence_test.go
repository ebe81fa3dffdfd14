package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func occ(lon, lat float64, month time.Month) Occurrence {
	return Occurrence{
		TaxonID:        "159244",
		ScientificName: "Centropristis striata",
		Lon:            lon,
		Lat:            lat,
		EventDate:      time.Date(2023, month, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestFilterOccurrences(t *testing.T) {
	bounds := Bounds{XMin: -80, XMax: -60, YMin: 30, YMax: 50}

	recs := []Occurrence{
		occ(-70, 40, time.June),     // kept
		occ(-70, 40, time.July),     // wrong month
		occ(-55, 40, time.June),     // east of the box
		occ(-70, 55, time.June),     // north of the box
		occ(-80, 30, time.June),     // on the corner, inclusive
		occ(-65.5, 48.2, time.June), // kept
	}

	subset := FilterOccurrences(recs, bounds, time.June)

	assert.Len(t, subset, 3)
	for _, r := range subset {
		assert.Equal(t, time.June, r.Month())
		assert.GreaterOrEqual(t, r.Lon, bounds.XMin)
		assert.LessOrEqual(t, r.Lon, bounds.XMax)
		assert.GreaterOrEqual(t, r.Lat, bounds.YMin)
		assert.LessOrEqual(t, r.Lat, bounds.YMax)
	}
}

func TestFilterOccurrences_Empty(t *testing.T) {
	bounds := Bounds{XMin: -80, XMax: -60, YMin: 30, YMax: 50}

	subset := FilterOccurrences(nil, bounds, time.June)
	assert.Empty(t, subset)

	subset = FilterOccurrences([]Occurrence{occ(-70, 40, time.July)}, bounds, time.June)
	assert.Empty(t, subset)
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{XMin: -80, XMax: -60, YMin: 30, YMax: 50}

	tests := []struct {
		name     string
		lon, lat float64
		want     bool
	}{
		{"center", -70, 40, true},
		{"west edge", -80, 40, true},
		{"east edge", -60, 40, true},
		{"south edge", -70, 30, true},
		{"north edge", -70, 50, true},
		{"west of box", -80.1, 40, false},
		{"north of box", -70, 50.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Contains(tt.lon, tt.lat))
		})
	}
}
