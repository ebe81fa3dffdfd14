// Package domain models presence/background species distribution data.
//
// # Data Sources
//
// Occurrence records come from the OBIS v3 occurrence API
// (https://api.obis.org/v3/occurrence), queried by scientific name. Each
// record carries decimal WGS-84 coordinates and an event date; the month of
// the event date drives the temporal subset.
//
// Environmental covariates come from a local catalog of gridded rasters
// (sea-surface temperature, chlorophyll-a concentration) in ESRI ASCII grid
// format, one file per variable per time slice. Layers of one variable form a
// Stack; all layers in a stack share a single regular lon/lat Grid.
//
// # No-Data Convention
//
// Undefined cells (land, lakes, missing satellite retrievals) are NaN in
// memory and -9999 on disk. Because ocean-only variables sometimes disagree
// on the coastline (chlorophyll products include lakes that SST products do
// not), no-data cells are propagated across co-registered stacks with MaskBy
// so every covariate agrees on the valid domain.
//
// # Sample Table
//
// Presence rows (label 1) are occurrence records inside the raster extent
// with the target month. Background rows (label 0) are a random draw of grid
// cell centers from a reference layer. Rows are deduplicated by a key built
// from the formatted coordinate pair; see [DedupKey]. A background row whose
// key collides with a presence row is dropped, as is any row over a no-data
// cell. Named exclusion rules remove known-erroneous presences (for this
// dataset, inland sightings above a configured latitude).
//
// # Probability Encoding
//
// Projected occurrence probabilities are stored on disk as integers scaled
// by [ProbScale] (1000), following the biomod storage convention. Consumers
// decode with [DecodeProb]; the division lives here and nowhere else.
package domain
