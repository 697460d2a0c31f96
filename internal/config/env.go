package config

import (
	"os"
	"strconv"
	"time"

	"card-scanner/internal/scanerr"
)

const envPrefix = "CARDSCAN_"

// envReader applies overrides and keeps the first parse failure.
type envReader struct {
	err error
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = scanerr.NewConfigError("%s%s=%q: %v", envPrefix, key, value, err)
	}
}

func (r *envReader) str(key string, dst *string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = n
}

func (r *envReader) float(key string, dst *float64) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = f
}

func (r *envReader) boolean(key string, dst *bool) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = b
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = d
}

func (c *Config) applyEnv() error {
	var r envReader
	r.duration("DETECTION_INTERVAL", &c.DetectionInterval)
	r.float("MIN_CONFIDENCE", &c.MinConfidence)
	r.float("MIN_AREA", &c.MinArea)
	r.integer("STABILIZATION_FRAMES", &c.StabilizationFrames)
	r.float("CORNER_TOLERANCE", &c.CornerTolerance)
	r.duration("COOLDOWN", &c.Cooldown)
	r.boolean("AUTO_CAPTURE", &c.AutoCapture)
	r.str("CAMERA_DEVICE", &c.CameraDevice)

	r.str("PREPROCESS_STRATEGY", &c.PreprocessStrategy)
	r.duration("PIPELINE_TIMEOUT", &c.PipelineTimeout)
	r.boolean("AUTO_ADD", &c.AutoAdd)
	r.str("OCR_LANGUAGE", &c.OCRLanguage)
	r.float("OCR_MIN_CONFIDENCE", &c.OCRMinConfidence)

	r.str("CATALOG_DRIVER", &c.CatalogDriver)
	r.str("CATALOG_DSN", &c.CatalogDSN)
	r.integer("SEARCH_LIMIT", &c.SearchLimit)
	r.float("SEARCH_RATE", &c.SearchRate)
	r.integer("SEARCH_BURST", &c.SearchBurst)
	if r.err != nil {
		return r.err
	}
	return nil
}
