package rastercat

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

// noDataValue is the on-disk sentinel for missing cells.
const noDataValue = -9999

// ReadASC reads an ESRI ASCII grid file into a layer. Rows in the file run
// north to south; in-memory rows run south to north.
func ReadASC(path, label string) (*domain.Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	header := map[string]float64{}
	var nodata float64 = noDataValue

	// Six header lines, then cell rows.
	for len(header) < 5 {
		if !sc.Scan() {
			return nil, fmt.Errorf("read raster %s: truncated header", path)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			return nil, fmt.Errorf("read raster %s: malformed header line %q", path, sc.Text())
		}
		key := strings.ToLower(fields[0])
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("read raster %s: header %s: %w", path, key, err)
		}
		if key == "nodata_value" {
			nodata = v
			continue
		}
		header[key] = v
	}
	// NODATA_value may follow the five geometry keys.
	for _, key := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if _, ok := header[key]; !ok {
			return nil, fmt.Errorf("read raster %s: missing header %s", path, key)
		}
	}

	g := domain.Grid{
		X0: header["xllcorner"],
		Y0: header["yllcorner"],
		Dx: header["cellsize"],
		Dy: header["cellsize"],
		Nx: int(header["ncols"]),
		Ny: int(header["nrows"]),
	}
	if g.Nx <= 0 || g.Ny <= 0 || g.Dx <= 0 {
		return nil, fmt.Errorf("read raster %s: invalid grid header", path)
	}

	layer := domain.NewLayer(g, label)
	row := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line[0] == 'n' || line[0] == 'N' {
			// NODATA_value line placed after the geometry keys.
			fields := strings.Fields(line)
			if len(fields) == 2 && strings.EqualFold(fields[0], "nodata_value") {
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					nodata = v
					continue
				}
			}
		}
		if row >= g.Ny {
			return nil, fmt.Errorf("read raster %s: more than %d rows", path, g.Ny)
		}
		fields := strings.Fields(line)
		if len(fields) != g.Nx {
			return nil, fmt.Errorf("read raster %s: row %d has %d cells, want %d", path, row, len(fields), g.Nx)
		}
		iy := g.Ny - 1 - row // file rows are north-first
		for ix, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("read raster %s: cell (%d,%d): %w", path, ix, row, err)
			}
			if v == nodata {
				continue // stays NaN
			}
			layer.Set(ix, iy, v)
		}
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read raster %s: %w", path, err)
	}
	if row != g.Ny {
		return nil, fmt.Errorf("read raster %s: got %d rows, want %d", path, row, g.Ny)
	}
	return layer, nil
}

// WriteASC writes a layer as an ESRI ASCII grid file. The grid must have
// square cells; NaN cells become the no-data sentinel.
func WriteASC(path string, layer *domain.Layer) error {
	g := layer.Grid
	if math.Abs(g.Dx-g.Dy) > 1e-9 {
		return fmt.Errorf("write raster %s: non-square cells (%g x %g)", path, g.Dx, g.Dy)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create raster: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ncols %d\n", g.Nx)
	fmt.Fprintf(w, "nrows %d\n", g.Ny)
	fmt.Fprintf(w, "xllcorner %g\n", g.X0)
	fmt.Fprintf(w, "yllcorner %g\n", g.Y0)
	fmt.Fprintf(w, "cellsize %g\n", g.Dx)
	fmt.Fprintf(w, "NODATA_value %d\n", noDataValue)

	for row := 0; row < g.Ny; row++ {
		iy := g.Ny - 1 - row
		for ix := 0; ix < g.Nx; ix++ {
			if ix > 0 {
				if err := w.WriteByte(' '); err != nil {
					return fmt.Errorf("write raster %s: %w", path, err)
				}
			}
			v := layer.At(ix, iy)
			if math.IsNaN(v) {
				fmt.Fprintf(w, "%d", noDataValue)
			} else {
				fmt.Fprintf(w, "%g", v)
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write raster %s: %w", path, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write raster %s: %w", path, err)
	}
	return nil
}
