// Command gendata generates a synthetic raster catalog and an occurrence
// fixture for local development and the validate command. It uses the real
// domain and rastercat packages so fixtures match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/gendata -out data/catalog -occ-out data/occurrences.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/sdm-pipeline/internal/adapter/rastercat"
	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

// The synthetic domain: the north-west Atlantic shelf at quarter-degree
// resolution.
var genGrid = domain.Grid{X0: -80, Y0: 30, Dx: 0.25, Dy: 0.25, Nx: 80, Ny: 80}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for raster catalog files")
	occOut := flag.String("occ-out", "", "output path for the occurrence fixture JSON")
	year := flag.Int("year", 2023, "catalog year")
	seed := flag.Int64("seed", 42, "random seed")
	count := flag.Int("occurrences", 400, "fixture occurrence count")
	flag.Parse()

	if *outDir == "" || *occOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -occ-out")
	}

	// Fix the clock for reproducible fixture stamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(*year, time.December, 31, 12, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))

	for month := time.January; month <= time.December; month++ {
		date := time.Date(*year, month, 1, 0, 0, 0, 0, time.UTC)
		label := date.Format("Jan 2006")

		sst := sstLayer(label, month)
		chl := chlLayer(label, month, rng)

		sstPath := filepath.Join(*outDir, fmt.Sprintf("sst_monthly_%s.asc", date.Format("2006-01")))
		if err := rastercat.WriteASC(sstPath, sst); err != nil {
			return err
		}
		chlPath := filepath.Join(*outDir, fmt.Sprintf("chlor_a_monthly_%s.asc", date.Format("2006-01")))
		if err := rastercat.WriteASC(chlPath, chl); err != nil {
			return err
		}
		log.Printf("%s: wrote sst and chlor_a layers", label)
	}

	occs := occurrences(rng, *year, *count)
	data, err := json.MarshalIndent(occs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*occOut, data, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %d occurrences to %s", len(occs), *occOut)
	return nil
}

// land reports whether a cell center is on the synthetic landmass: a wedge
// in the north-east of the domain.
func land(lon, lat float64) bool {
	return lat > 42 && lon > -71+(lat-42)
}

// lake reports whether a cell sits in one of the synthetic inland lakes.
// Lakes are no-data in SST but carry (bogus) values in chlorophyll, which is
// what the cross-variable mask exists to remove.
func lake(lon, lat float64) bool {
	return lat > 45 && lat < 46.5 && lon > -66 && lon < -64
}

// sstLayer builds a smooth latitude gradient with a seasonal cycle.
// Land and lake cells are no-data.
func sstLayer(label string, month time.Month) *domain.Layer {
	l := domain.NewLayer(genGrid, label)
	season := math.Sin((float64(month) - 3) * math.Pi / 6)
	for iy := 0; iy < genGrid.Ny; iy++ {
		for ix := 0; ix < genGrid.Nx; ix++ {
			lon, lat := genGrid.CellCenter(ix, iy)
			if land(lon, lat) || lake(lon, lat) {
				continue
			}
			l.Set(ix, iy, 26-0.6*(lat-30)+4*season)
		}
	}
	return l
}

// chlLayer builds a noisy coastal-enhanced chlorophyll field. Only land is
// no-data; lakes deliberately carry values.
func chlLayer(label string, month time.Month, rng *rand.Rand) *domain.Layer {
	l := domain.NewLayer(genGrid, label)
	season := math.Cos((float64(month) - 4) * math.Pi / 6)
	for iy := 0; iy < genGrid.Ny; iy++ {
		for ix := 0; ix < genGrid.Nx; ix++ {
			lon, lat := genGrid.CellCenter(ix, iy)
			if land(lon, lat) {
				continue
			}
			coastal := math.Max(0, 3-math.Abs(lon+70)) // plume near 70W
			l.Set(ix, iy, 0.3+coastal+0.8*season+0.2*rng.Float64())
		}
	}
	return l
}

// occurrences draws fixture sightings biased toward mid-range SST, with a
// few deliberately bad records: on-land points and inland-lake points above
// the latitude guard, so the sample builder's drops are exercised.
func occurrences(rng *rand.Rand, year, count int) []domain.Occurrence {
	out := make([]domain.Occurrence, 0, count)
	for len(out) < count {
		lon := genGrid.X0 + rng.Float64()*float64(genGrid.Nx)*genGrid.Dx
		lat := genGrid.Y0 + rng.Float64()*float64(genGrid.Ny)*genGrid.Dy

		// Bad records, ~5% of the fixture.
		if rng.Float64() > 0.05 {
			if land(lon, lat) {
				continue
			}
			// Bias toward the 12-20 degree SST band in June.
			if lat < 36 || lat > 46 {
				continue
			}
		}

		month := time.June
		if rng.Float64() < 0.3 {
			month = time.Month(1 + rng.Intn(12))
		}
		day := 1 + rng.Intn(28)

		out = append(out, domain.Occurrence{
			TaxonID:        "159244",
			ScientificName: "Centropristis striata",
			Lon:            lon,
			Lat:            lat,
			EventDate:      time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}
