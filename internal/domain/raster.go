package domain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ProbScale is the on-disk integer scale for projected probabilities.
// A raw cell value of 732 decodes to 0.732.
const ProbScale = 1000

// EncodeProb scales a [0,1] probability to its integer disk representation.
func EncodeProb(p float64) float64 {
	return math.Round(p * ProbScale)
}

// DecodeProb recovers a [0,1] probability from a raw scaled cell value.
func DecodeProb(raw float64) float64 {
	return raw / ProbScale
}

// Grid describes a regular lon/lat cell grid. X0, Y0 is the lower-left
// (south-west) corner of the extent; cell (0,0) sits in the south-west.
type Grid struct {
	X0, Y0 float64 // lower-left corner, degrees
	Dx, Dy float64 // cell size, degrees
	Nx, Ny int
}

// Equal reports whether two grids describe the same cells.
func (g Grid) Equal(o Grid) bool {
	const eps = 1e-9
	return g.Nx == o.Nx && g.Ny == o.Ny &&
		math.Abs(g.X0-o.X0) < eps && math.Abs(g.Y0-o.Y0) < eps &&
		math.Abs(g.Dx-o.Dx) < eps && math.Abs(g.Dy-o.Dy) < eps
}

// Bounds returns the outer extent of the grid.
func (g Grid) Bounds() Bounds {
	return Bounds{
		XMin: g.X0,
		XMax: g.X0 + float64(g.Nx)*g.Dx,
		YMin: g.Y0,
		YMax: g.Y0 + float64(g.Ny)*g.Dy,
	}
}

// CellIndex maps a coordinate to cell indices. ok is false outside the extent.
func (g Grid) CellIndex(lon, lat float64) (ix, iy int, ok bool) {
	ix = int(math.Floor((lon - g.X0) / g.Dx))
	iy = int(math.Floor((lat - g.Y0) / g.Dy))
	if ix < 0 || ix >= g.Nx || iy < 0 || iy >= g.Ny {
		return 0, 0, false
	}
	return ix, iy, true
}

// CellCenter returns the center coordinate of cell (ix, iy).
func (g Grid) CellCenter(ix, iy int) (lon, lat float64) {
	return g.X0 + (float64(ix)+0.5)*g.Dx, g.Y0 + (float64(iy)+0.5)*g.Dy
}

// Layer is one gridded time slice of a variable. Cells are row-major with
// iy*Nx+ix indexing; NaN marks no-data.
type Layer struct {
	Grid  Grid
	Label string // human-readable time label, e.g. "Jun 2023"
	Cells []float64
}

// NewLayer allocates a layer with every cell set to no-data.
func NewLayer(g Grid, label string) *Layer {
	cells := make([]float64, g.Nx*g.Ny)
	for i := range cells {
		cells[i] = math.NaN()
	}
	return &Layer{Grid: g, Label: label, Cells: cells}
}

// At returns the value of cell (ix, iy). No bounds check; callers index
// through Grid.CellIndex.
func (l *Layer) At(ix, iy int) float64 {
	return l.Cells[iy*l.Grid.Nx+ix]
}

// Set writes the value of cell (ix, iy).
func (l *Layer) Set(ix, iy int, v float64) {
	l.Cells[iy*l.Grid.Nx+ix] = v
}

// ValueAt looks up the cell containing the coordinate. ok is false outside
// the extent or over a no-data cell.
func (l *Layer) ValueAt(lon, lat float64) (v float64, ok bool) {
	ix, iy, ok := l.Grid.CellIndex(lon, lat)
	if !ok {
		return 0, false
	}
	v = l.At(ix, iy)
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ValidCells returns the flat indices of all non-missing cells, in grid order.
func (l *Layer) ValidCells() []int {
	idx := make([]int, 0, len(l.Cells))
	for i, v := range l.Cells {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Min and Max return the value range over valid cells, NaN when empty.
func (l *Layer) Min() float64 { return rangeOf(l.Cells, floats.Min) }

func (l *Layer) Max() float64 { return rangeOf(l.Cells, floats.Max) }

func rangeOf(cells []float64, f func([]float64) float64) float64 {
	valid := make([]float64, 0, len(cells))
	for _, v := range cells {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	return f(valid)
}

// MaskBy forces cells that are no-data in other to no-data here, returning
// the number of cells newly masked. Grids must match.
func (l *Layer) MaskBy(other *Layer) (int, error) {
	if !l.Grid.Equal(other.Grid) {
		return 0, errors.New("mask: grids differ")
	}
	masked := 0
	for i, v := range other.Cells {
		if math.IsNaN(v) && !math.IsNaN(l.Cells[i]) {
			l.Cells[i] = math.NaN()
			masked++
		}
	}
	return masked, nil
}

// Stack is an ordered set of co-registered layers of one variable, one per
// time slice.
type Stack struct {
	Variable string
	Layers   []*Layer
}

// NewStack builds a stack, enforcing the shared-grid invariant.
func NewStack(variable string, layers ...*Layer) (*Stack, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("stack %s: no layers", variable)
	}
	g := layers[0].Grid
	for _, l := range layers[1:] {
		if !l.Grid.Equal(g) {
			return nil, fmt.Errorf("stack %s: layer %q grid differs", variable, l.Label)
		}
	}
	return &Stack{Variable: variable, Layers: layers}, nil
}

// Grid returns the common grid of the stack.
func (s *Stack) Grid() Grid {
	return s.Layers[0].Grid
}

// Layer returns the layer with the given label, or nil.
func (s *Stack) Layer(label string) *Layer {
	for _, l := range s.Layers {
		if l.Label == label {
			return l
		}
	}
	return nil
}

// MaskBy propagates other's no-data cells onto this stack slice by slice,
// keeping the two variables co-registered. Stacks must have the same number
// of layers on the same grid. Returns the total cells masked.
func (s *Stack) MaskBy(other *Stack) (int, error) {
	if len(s.Layers) != len(other.Layers) {
		return 0, fmt.Errorf("mask %s by %s: %d vs %d layers",
			s.Variable, other.Variable, len(s.Layers), len(other.Layers))
	}
	total := 0
	for i, l := range s.Layers {
		n, err := l.MaskBy(other.Layers[i])
		if err != nil {
			return total, fmt.Errorf("mask %s layer %q: %w", s.Variable, l.Label, err)
		}
		total += n
	}
	return total, nil
}

// CovariateSet holds one layer per model covariate on a common grid, in a
// fixed order.
type CovariateSet struct {
	Names  []string
	Layers []*Layer
}

// NewCovariateSet builds a covariate set, enforcing the shared-grid invariant.
func NewCovariateSet(names []string, layers []*Layer) (*CovariateSet, error) {
	if len(names) != len(layers) || len(names) == 0 {
		return nil, errors.New("covariates: names and layers mismatch")
	}
	g := layers[0].Grid
	for i, l := range layers[1:] {
		if !l.Grid.Equal(g) {
			return nil, fmt.Errorf("covariates: %s grid differs", names[i+1])
		}
	}
	return &CovariateSet{Names: names, Layers: layers}, nil
}

// Grid returns the common grid of the set.
func (c *CovariateSet) Grid() Grid {
	return c.Layers[0].Grid
}

// Reference returns the layer used for background sampling and validity
// checks: the first covariate.
func (c *CovariateSet) Reference() *Layer {
	return c.Layers[0]
}

// ValuesAt looks up every covariate at the coordinate. ok is false if any
// covariate is missing there.
func (c *CovariateSet) ValuesAt(lon, lat float64) (vals []float64, ok bool) {
	vals = make([]float64, len(c.Layers))
	for i, l := range c.Layers {
		v, ok := l.ValueAt(lon, lat)
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}
