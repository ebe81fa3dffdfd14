package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	// Occurrence fetch.
	OBISBaseURL string
	OBISTimeout time.Duration
	Species     string
	CachePath   string // SQLite occurrence cache; empty disables

	// Raster catalog selection.
	CatalogDir  string
	SSTVariable string
	ChlVariable string
	Period      string
	DateStart   time.Time // inclusive, YYYY-MM
	DateEnd     time.Time // inclusive, YYYY-MM

	// Sample building.
	TargetMonth        time.Month
	BackgroundSize     int
	RandomSeed         int64
	LatExclusionOn     bool
	LatExclusionMax    float64
	LatExclusionReason string

	// Model fitting.
	NbRunEval int
	DataSplit int // train percentage, e.g. 70

	// Outputs.
	OutputDir string
	ProjName  string
	PlotPath  string // empty disables rendering

	// Ops surface.
	HTTPAddr        string // empty disables the ops HTTP server
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	// Best effort; absence of a .env file is the normal case.
	_ = godotenv.Load()

	obisTimeout, err := parseDuration("OBIS_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	dateStart, err := parseMonth("DATE_START", "2023-01")
	if err != nil {
		return nil, err
	}
	dateEnd, err := parseMonth("DATE_END", "2023-12")
	if err != nil {
		return nil, err
	}

	targetMonth, err := parseIntRange("TARGET_MONTH", 6, 1, 12)
	if err != nil {
		return nil, err
	}
	backgroundSize, err := parseIntRange("BACKGROUND_SIZE", 500, 1, 100000)
	if err != nil {
		return nil, err
	}
	nbRunEval, err := parseIntRange("NB_RUN_EVAL", 3, 1, 100)
	if err != nil {
		return nil, err
	}
	dataSplit, err := parseIntRange("DATA_SPLIT", 70, 1, 99)
	if err != nil {
		return nil, err
	}

	seed := int64(0)
	if s := os.Getenv("RANDOM_SEED"); s != "" {
		seed, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.New("invalid RANDOM_SEED")
		}
	}

	latExclusionOn := true
	latExclusionMax := 45.5
	if s := os.Getenv("LAT_EXCLUSION_MAX"); s != "" {
		if s == "off" {
			latExclusionOn = false
		} else {
			latExclusionMax, err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.New("invalid LAT_EXCLUSION_MAX")
			}
		}
	}

	cfg := &Config{
		OBISBaseURL: envOrDefault("OBIS_BASE_URL", "https://api.obis.org"),
		OBISTimeout: obisTimeout,
		Species:     envOrDefault("SPECIES", "Centropristis striata"),
		CachePath:   os.Getenv("CACHE_PATH"),

		CatalogDir:  envOrDefault("CATALOG_DIR", "data/catalog"),
		SSTVariable: envOrDefault("SST_VARIABLE", "sst"),
		ChlVariable: envOrDefault("CHL_VARIABLE", "chlor_a"),
		Period:      envOrDefault("PERIOD", "monthly"),
		DateStart:   dateStart,
		DateEnd:     dateEnd,

		TargetMonth:        time.Month(targetMonth),
		BackgroundSize:     backgroundSize,
		RandomSeed:         seed,
		LatExclusionOn:     latExclusionOn,
		LatExclusionMax:    latExclusionMax,
		LatExclusionReason: envOrDefault("LAT_EXCLUSION_REASON", "inland contamination in source data"),

		NbRunEval: nbRunEval,
		DataSplit: dataSplit,

		OutputDir: envOrDefault("OUTPUT_DIR", "data/out"),
		ProjName:  envOrDefault("PROJ_NAME", "current"),
		PlotPath:  envOrDefault("PLOT_PATH", "data/out/projection.png"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.Species == "" {
		return nil, errors.New("SPECIES is required")
	}
	if cfg.CatalogDir == "" {
		return nil, errors.New("CATALOG_DIR is required")
	}
	if cfg.DateEnd.Before(cfg.DateStart) {
		return nil, errors.New("DATE_END is before DATE_START")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseMonth(key, def string) (time.Time, error) {
	t, err := time.Parse("2006-01", envOrDefault(key, def))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: want YYYY-MM", key)
	}
	return t, nil
}

func parseIntRange(key string, def, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: want integer in [%d,%d]", key, min, max)
	}
	return n, nil
}
