// Package render draws the projected probability surface for visual
// validation: a continuous heatmap of decoded probabilities, the no-data
// (land) mask as a flat underlay standing in for a coastline basemap, and
// the presence points on top. Output is presentational only; nothing
// downstream consumes it.
package render

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

// Renderer writes probability-surface plots to disk.
type Renderer struct {
	logger *slog.Logger
}

// New creates a Renderer.
func New(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// Render draws the encoded probability layer with presence points overlaid
// and writes a PNG to path.
func (r *Renderer) Render(path, title string, prob *domain.Layer, presences []domain.Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	// Land underlay: every no-data cell painted a flat gray. The explicit
	// range matters: landGrid emits a single value, and heatmaps over a
	// zero-width range cannot index their palette.
	land := plotter.NewHeatMap(landGrid{prob}, singleColor{color.Gray{Y: 0xB0}})
	land.Min, land.Max = 0, 1
	p.Add(land)

	heat := plotter.NewHeatMap(probGrid{prob}, moreland.SmoothBlueRed().Palette(255))
	heat.Min, heat.Max = 0, 1
	p.Add(heat)

	pts := make(plotter.XYs, 0, len(presences))
	for _, s := range presences {
		if s.Label != domain.PresenceLabel {
			continue
		}
		pts = append(pts, plotter.XY{X: s.Lon, Y: s.Lat})
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	scatter.GlyphStyle = draw.GlyphStyle{
		Color:  color.Black,
		Radius: vg.Points(1.5),
		Shape:  draw.CircleGlyph{},
	}
	p.Add(scatter)

	if err := p.Save(10*vg.Inch, 7*vg.Inch, path); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	r.logger.Info("projection plot written", "path", path, "presences", len(pts))
	return nil
}

// probGrid adapts an encoded probability layer to plotter.GridXYZ, decoding
// the ProbScale integers back to [0,1]. No-data cells stay NaN and are not
// drawn.
type probGrid struct {
	l *domain.Layer
}

func (g probGrid) Dims() (c, r int) { return g.l.Grid.Nx, g.l.Grid.Ny }

func (g probGrid) Z(c, r int) float64 {
	v := g.l.At(c, r)
	if math.IsNaN(v) {
		return v
	}
	return domain.DecodeProb(v)
}

func (g probGrid) X(c int) float64 {
	lon, _ := g.l.Grid.CellCenter(c, 0)
	return lon
}

func (g probGrid) Y(r int) float64 {
	_, lat := g.l.Grid.CellCenter(0, r)
	return lat
}

// landGrid inverts the layer's mask: 1 over no-data cells, NaN elsewhere.
type landGrid struct {
	l *domain.Layer
}

func (g landGrid) Dims() (c, r int) { return g.l.Grid.Nx, g.l.Grid.Ny }

func (g landGrid) Z(c, r int) float64 {
	if math.IsNaN(g.l.At(c, r)) {
		return 1
	}
	return math.NaN()
}

func (g landGrid) X(c int) float64 {
	lon, _ := g.l.Grid.CellCenter(c, 0)
	return lon
}

func (g landGrid) Y(r int) float64 {
	_, lat := g.l.Grid.CellCenter(0, r)
	return lat
}

// singleColor is a one-entry palette for flat fills.
type singleColor struct {
	c color.Color
}

func (s singleColor) Colors() []color.Color { return []color.Color{s.c} }

var _ palette.Palette = singleColor{}
