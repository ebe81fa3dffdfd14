package sdm

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

// Projection is the addressable artifact of applying a model over a
// covariate domain. Layer holds ProbScale-encoded integer probabilities.
type Projection struct {
	Species   string
	Name      string
	Bands     []string
	Layer     *domain.Layer
	CreatedAt time.Time
}

// SpeciesToken converts a scientific name into its artifact-path token,
// e.g. "Centropristis striata" -> "Centropristis.striata".
func SpeciesToken(species string) string {
	return strings.Join(strings.Fields(species), ".")
}

// ProjectionPath returns the deterministic output location
// <outDir>/<species>/proj_<name>/proj_<name>_<species>.asc.
func ProjectionPath(outDir, species, name string) string {
	tok := SpeciesToken(species)
	return filepath.Join(outDir, tok, "proj_"+name, fmt.Sprintf("proj_%s_%s.asc", name, tok))
}

// BandName returns the per-run probability band label
// <species>_AllData_RUN<k>_<algorithm>.
func BandName(species string, run int, algorithm string) string {
	return fmt.Sprintf("%s_AllData_RUN%d_%s", SpeciesToken(species), run, algorithm)
}

// Project applies the fitted model over every valid cell of the covariate
// set, which may differ from the training covariates (forecast/backcast).
// The returned layer carries ProbScale-encoded values; no-data cells stay
// no-data.
func Project(m *Model, cov *domain.CovariateSet, name string) (*Projection, error) {
	if len(cov.Names) != len(m.CovNames) {
		return nil, fmt.Errorf("project: model wants %d covariates, set has %d",
			len(m.CovNames), len(cov.Names))
	}
	for i, n := range m.CovNames {
		if cov.Names[i] != n {
			return nil, fmt.Errorf("project: covariate %d is %q, model wants %q", i, cov.Names[i], n)
		}
	}

	g := cov.Grid()
	out := domain.NewLayer(g, name)
	vals := make([]float64, len(cov.Layers))

	for iy := 0; iy < g.Ny; iy++ {
		for ix := 0; ix < g.Nx; ix++ {
			valid := true
			for j, l := range cov.Layers {
				v := l.At(ix, iy)
				if math.IsNaN(v) {
					valid = false
					break
				}
				vals[j] = v
			}
			if !valid {
				continue
			}
			out.Set(ix, iy, domain.EncodeProb(m.PredictRow(vals)))
		}
	}

	bands := make([]string, 0, len(m.Evals))
	for _, e := range m.Evals {
		bands = append(bands, BandName(m.Species, e.Run, e.Algorithm))
	}

	return &Projection{
		Species:   m.Species,
		Name:      name,
		Bands:     bands,
		Layer:     out,
		CreatedAt: domain.Now(),
	}, nil
}
