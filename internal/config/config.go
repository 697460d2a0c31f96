// Package config loads scanner settings from a YAML file and CARDSCAN_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"card-scanner/internal/boundary"
	"card-scanner/internal/capture"
	"card-scanner/internal/catalog"
	"card-scanner/internal/ocr"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/preprocess"
	"card-scanner/internal/scanerr"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config holds every scanner setting.
type Config struct {
	// Auto-capture
	DetectionInterval   time.Duration `yaml:"detection_interval"`
	MinConfidence       float64       `yaml:"min_confidence"`
	MinArea             float64       `yaml:"min_area"`
	StabilizationFrames int           `yaml:"stabilization_frames"`
	CornerTolerance     float64       `yaml:"corner_tolerance"`
	Cooldown            time.Duration `yaml:"cooldown"`
	AutoCapture         bool          `yaml:"auto_capture"`
	CameraDevice        string        `yaml:"camera_device"`

	// Pipeline
	PreprocessStrategy string        `yaml:"preprocess_strategy"`
	PipelineTimeout    time.Duration `yaml:"pipeline_timeout"`
	AutoAdd            bool          `yaml:"auto_add"`
	OCRLanguage        string        `yaml:"ocr_language"`
	OCRMinConfidence   float64       `yaml:"ocr_min_confidence"`

	// Catalog
	CatalogDriver string  `yaml:"catalog_driver"`
	CatalogDSN    string  `yaml:"catalog_dsn"`
	SearchLimit   int     `yaml:"search_limit"`
	SearchRate    float64 `yaml:"search_rate"` // Queries per second; 0 is unlimited
	SearchBurst   int     `yaml:"search_burst"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DetectionInterval:   500 * time.Millisecond,
		MinConfidence:       0.7,
		MinArea:             50000,
		StabilizationFrames: 3,
		CornerTolerance:     20,
		Cooldown:            2 * time.Second,
		AutoCapture:         true,
		CameraDevice:        "0",

		PreprocessStrategy: string(preprocess.Light),
		PipelineTimeout:    45 * time.Second,
		OCRLanguage:        "eng",
		OCRMinConfidence:   30,

		CatalogDriver: catalog.SQLite,
		CatalogDSN:    "data/catalog.db",
		SearchLimit:   20,
		SearchBurst:   1,
	}
}

// WithCatalog returns a copy of c using a different catalog database.
func (c Config) WithCatalog(driver, dsn string) Config {
	c.CatalogDriver = driver
	c.CatalogDSN = dsn
	return c
}

// WithStrategy returns a copy of c with a different preprocess strategy.
func (c Config) WithStrategy(s preprocess.Strategy) Config {
	c.PreprocessStrategy = string(s)
	return c
}

// WithCameraDevice returns a copy of c reading from a different camera.
func (c Config) WithCameraDevice(device string) Config {
	c.CameraDevice = device
	return c
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path or a missing file skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, scanerr.NewConfigError("failed to parse %s: %v", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting as INVALID_CONFIGURATION.
func (c Config) Validate() error {
	switch {
	case c.DetectionInterval <= 0:
		return scanerr.NewConfigError("detection_interval must be positive, got %v", c.DetectionInterval)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return scanerr.NewConfigError("min_confidence must be within [0,1], got %v", c.MinConfidence)
	case c.MinArea < 0:
		return scanerr.NewConfigError("min_area must not be negative, got %v", c.MinArea)
	case c.StabilizationFrames < 1:
		return scanerr.NewConfigError("stabilization_frames must be at least 1, got %d", c.StabilizationFrames)
	case c.CornerTolerance <= 0:
		return scanerr.NewConfigError("corner_tolerance must be positive, got %v", c.CornerTolerance)
	case c.Cooldown < 0:
		return scanerr.NewConfigError("cooldown must not be negative, got %v", c.Cooldown)
	case c.PipelineTimeout <= 0:
		return scanerr.NewConfigError("pipeline_timeout must be positive, got %v", c.PipelineTimeout)
	case c.SearchLimit < 1:
		return scanerr.NewConfigError("search_limit must be at least 1, got %d", c.SearchLimit)
	case c.SearchRate < 0:
		return scanerr.NewConfigError("search_rate must not be negative, got %v", c.SearchRate)
	case c.SearchRate > 0 && c.SearchBurst < 1:
		return scanerr.NewConfigError("search_burst must be at least 1, got %d", c.SearchBurst)
	case c.CatalogDriver != catalog.SQLite && c.CatalogDriver != catalog.Postgres:
		return scanerr.NewConfigError("catalog_driver must be %s or %s, got %q", catalog.SQLite, catalog.Postgres, c.CatalogDriver)
	case c.CatalogDSN == "":
		return scanerr.NewConfigError("catalog_dsn is required")
	}
	if _, err := preprocess.ParseStrategy(c.PreprocessStrategy); err != nil {
		return scanerr.NewConfigError("preprocess_strategy: %v", err)
	}
	return nil
}

// Strategy returns the parsed preprocess strategy. Call after Validate.
func (c Config) Strategy() preprocess.Strategy {
	s, _ := preprocess.ParseStrategy(c.PreprocessStrategy)
	return s
}

// BoundaryParams returns the detector settings.
func (c Config) BoundaryParams() boundary.Params {
	return boundary.DefaultParams().
		WithMinArea(c.MinArea).
		WithMinConfidence(c.MinConfidence)
}

// CaptureParams returns the auto-capture state machine settings.
func (c Config) CaptureParams() capture.Params {
	p := capture.DefaultParams()
	p.StabilizationFrames = c.StabilizationFrames
	p.CornerTolerance = c.CornerTolerance
	p.MinConfidence = c.MinConfidence
	p.Cooldown = c.Cooldown
	return p
}

// PipelineOptions returns the per-run options.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Strategy:    c.Strategy(),
		Timeout:     c.PipelineTimeout,
		SearchLimit: c.SearchLimit,
		AutoAdd:     c.AutoAdd,
	}
}

// OCRParams returns the text recognition settings.
func (c Config) OCRParams() ocr.Params {
	return ocr.Params{Language: c.OCRLanguage, MinConfidence: c.OCRMinConfidence}
}

// Limiter returns the catalog search throttle, or nil when unlimited.
func (c Config) Limiter() *rate.Limiter {
	if c.SearchRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.SearchRate), c.SearchBurst)
}
