package domain

import "fmt"

// Dataset is the formatted model input: one row per sample binding the
// label, the coordinate, and the covariate values drawn from the stack at
// that coordinate.
type Dataset struct {
	CovNames   []string
	Labels     []float64 // 0 or 1, parallel to Rows
	Lons, Lats []float64
	Rows       [][]float64 // covariate values, one slice per sample
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Labels)
}

// Presences counts label-1 rows.
func (d Dataset) Presences() int {
	n := 0
	for _, l := range d.Labels {
		if l == PresenceLabel {
			n++
		}
	}
	return n
}

// FormatDataset spatially joins the sample table to the covariate set.
// Every sample must map to non-missing covariates; the sample builder
// guarantees validity against the reference layer, and cross-stack masking
// guarantees the other covariates agree, so a miss here is a programming
// error surfaced loudly.
func FormatDataset(table []Sample, cov *CovariateSet) (Dataset, error) {
	ds := Dataset{
		CovNames: cov.Names,
		Labels:   make([]float64, 0, len(table)),
		Lons:     make([]float64, 0, len(table)),
		Lats:     make([]float64, 0, len(table)),
		Rows:     make([][]float64, 0, len(table)),
	}
	for _, s := range table {
		vals, ok := cov.ValuesAt(s.Lon, s.Lat)
		if !ok {
			return Dataset{}, fmt.Errorf("format dataset: no covariate data at (%.4f, %.4f)", s.Lon, s.Lat)
		}
		ds.Labels = append(ds.Labels, float64(s.Label))
		ds.Lons = append(ds.Lons, s.Lon)
		ds.Lats = append(ds.Lats, s.Lat)
		ds.Rows = append(ds.Rows, vals)
	}
	if ds.Len() == 0 {
		return Dataset{}, fmt.Errorf("format dataset: empty sample table")
	}
	return ds, nil
}
