// Command validate performs end-to-end data integrity checks across a
// raster catalog, an occurrence fixture, and a completed run's projection
// output. It verifies catalog naming and grid alignment, cross-variable
// mask consistency, occurrence subset invariants, and the projection's
// probability-scale contract.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -catalog-dir data/catalog \
//	  -occ-json data/occurrences.json \
//	  -proj "data/out/Centropristis.striata/proj_current/proj_current_Centropristis.striata.asc"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/sdm-pipeline/internal/adapter/rastercat"
	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	catalogDir := flag.String("catalog-dir", "", "raster catalog directory")
	occJSON := flag.String("occ-json", "", "path to occurrence fixture JSON")
	projPath := flag.String("proj", "", "path to a projection .asc output (optional)")
	month := flag.Int("month", 6, "target month for the occurrence subset check")
	flag.Parse()

	if *catalogDir == "" || *occJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*catalogDir, *occJSON, *projPath, time.Month(*month)); code != 0 {
		os.Exit(code)
	}
}

func run(catalogDir, occJSONPath, projPath string, month time.Month) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Println("=== SDM Data Integrity Validation ===")
	fmt.Println()

	entries, err := rastercat.Scan(catalogDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: scan catalog: %v\n", err)
		return 1
	}

	occs, err := loadOccurrences(occJSONPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load occurrence fixture: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCatalog(entries),
		validateMasking(entries),
		validateOccurrenceSubset(entries, occs, month),
	}
	if projPath != "" {
		phases = append(phases, validateProjectionScale(projPath))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Printf("       - %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println()
	fmt.Println("all phases passed")
	return 0
}

func loadOccurrences(path string) ([]domain.Occurrence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var occs []domain.Occurrence
	if err := json.Unmarshal(data, &occs); err != nil {
		return nil, err
	}
	return occs, nil
}

// validateCatalog loads every catalog entry and checks that all layers of a
// variable share one grid.
func validateCatalog(entries []rastercat.Entry) *phase {
	p := &phase{name: "catalog naming and grid alignment"}
	if len(entries) == 0 {
		p.errorf("no recognized catalog entries")
		return p
	}

	grids := map[string]domain.Grid{}
	for _, e := range entries {
		layer, err := rastercat.ReadASC(e.Path, e.Label())
		if err != nil {
			p.errorf("%s: %v", e.Path, err)
			continue
		}
		if g, ok := grids[e.Variable]; ok && !g.Equal(layer.Grid) {
			p.errorf("%s: grid differs from earlier %s layers", e.Path, e.Variable)
		}
		grids[e.Variable] = layer.Grid
	}

	fmt.Printf("catalog: %d entries across %d variables\n", len(entries), len(grids))
	return p
}

// validateMasking cross-masks every variable pair and checks the result is
// symmetric: after masking, all variables agree on the valid cell set.
func validateMasking(entries []rastercat.Entry) *phase {
	p := &phase{name: "cross-variable mask consistency"}

	byVar := map[string][]rastercat.Entry{}
	for _, e := range entries {
		byVar[e.Variable] = append(byVar[e.Variable], e)
	}
	if len(byVar) < 2 {
		p.errorf("need at least two variables, have %d", len(byVar))
		return p
	}

	var stacks []*domain.Stack
	for variable, group := range byVar {
		stack, err := rastercat.LoadStack(variable, group)
		if err != nil {
			p.errorf("%v", err)
			return p
		}
		stacks = append(stacks, stack)
	}

	for i := 1; i < len(stacks); i++ {
		if _, err := stacks[i].MaskBy(stacks[0]); err != nil {
			p.errorf("%v", err)
			return p
		}
		if _, err := stacks[0].MaskBy(stacks[i]); err != nil {
			p.errorf("%v", err)
			return p
		}
	}

	ref := stacks[0]
	for _, s := range stacks[1:] {
		for li, l := range s.Layers {
			want := len(ref.Layers[li].ValidCells())
			got := len(l.ValidCells())
			if want != got {
				p.errorf("%s layer %q: %d valid cells, %s has %d",
					s.Variable, l.Label, got, ref.Variable, want)
			}
		}
	}
	return p
}

// validateOccurrenceSubset checks the bounding-box/month filter invariant
// against the fixture.
func validateOccurrenceSubset(entries []rastercat.Entry, occs []domain.Occurrence, month time.Month) *phase {
	p := &phase{name: "occurrence subset invariants"}
	if len(entries) == 0 {
		p.errorf("no catalog entries to derive bounds from")
		return p
	}

	layer, err := rastercat.ReadASC(entries[0].Path, entries[0].Label())
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	bounds := layer.Grid.Bounds()

	subset := domain.FilterOccurrences(occs, bounds, month)
	if len(subset) == 0 {
		p.errorf("empty subset for month %s in %+v", month, bounds)
		return p
	}
	for _, occ := range subset {
		if occ.Month() != month {
			p.errorf("record at (%.4f, %.4f) has month %s", occ.Lon, occ.Lat, occ.Month())
		}
		if !bounds.Contains(occ.Lon, occ.Lat) {
			p.errorf("record at (%.4f, %.4f) outside bounds", occ.Lon, occ.Lat)
		}
	}
	fmt.Printf("occurrences: %d total, %d in %s subset\n", len(occs), len(subset), month)
	return p
}

// validateProjectionScale checks the raw-value contract of a projection
// raster: every valid cell decodes to a probability in [0,1].
func validateProjectionScale(path string) *phase {
	p := &phase{name: "projection probability scale"}

	layer, err := rastercat.ReadASC(path, "projection")
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	valid := 0
	for _, raw := range layer.Cells {
		if math.IsNaN(raw) {
			continue
		}
		valid++
		prob := domain.DecodeProb(raw)
		if prob < 0 || prob > 1 {
			p.errorf("raw value %g decodes to %g, outside [0,1]", raw, prob)
		}
	}
	if valid == 0 {
		p.errorf("projection has no valid cells")
	}
	fmt.Printf("projection: %d valid cells checked\n", valid)
	return p
}
