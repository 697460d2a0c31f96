package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"card-scanner/internal/preprocess"
	"card-scanner/internal/scanerr"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cardscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
detection_interval: 250ms
stabilization_frames: 5
preprocess_strategy: enhanced
auto_capture: false
catalog_dsn: /tmp/cards.db
search_rate: 2.5
search_burst: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, cfg.DetectionInterval)
	require.Equal(t, 5, cfg.StabilizationFrames)
	require.Equal(t, preprocess.Enhanced, cfg.Strategy())
	require.False(t, cfg.AutoCapture)
	require.Equal(t, "/tmp/cards.db", cfg.CatalogDSN)
	// Untouched keys keep their defaults.
	require.Equal(t, 0.7, cfg.MinConfidence)

	l := cfg.Limiter()
	require.NotNil(t, l)
	require.Equal(t, 2, l.Burst())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "stabilization_frames: 5\n")
	t.Setenv("CARDSCAN_STABILIZATION_FRAMES", "4")
	t.Setenv("CARDSCAN_PIPELINE_TIMEOUT", "10s")
	t.Setenv("CARDSCAN_AUTO_ADD", "true")
	t.Setenv("CARDSCAN_CATALOG_DRIVER", "postgres")
	t.Setenv("CARDSCAN_CATALOG_DSN", "postgres://localhost/cards")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.StabilizationFrames)
	require.Equal(t, 10*time.Second, cfg.PipelineTimeout)
	require.True(t, cfg.AutoAdd)
	require.Equal(t, "postgres", cfg.CatalogDriver)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{"zero frames", "stabilization_frames: 0\n", nil},
		{"bad strategy", "preprocess_strategy: extreme\n", nil},
		{"bad driver", "catalog_driver: mysql\n", nil},
		{"confidence above one", "min_confidence: 1.5\n", nil},
		{"bad yaml", "detection_interval: [\n", nil},
		{"bad env int", "", map[string]string{"CARDSCAN_SEARCH_LIMIT": "many"}},
		{"bad env duration", "", map[string]string{"CARDSCAN_COOLDOWN": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := Load(path)
			require.Error(t, err)
			require.True(t, scanerr.Is(err, scanerr.InvalidConfiguration), "%v", err)
		})
	}
}

func TestDerivedParams(t *testing.T) {
	cfg := Default().WithStrategy(preprocess.None).WithCatalog("postgres", "dsn").WithCameraDevice("1")
	cfg.MinArea = 1234
	cfg.Cooldown = time.Second
	cfg.AutoAdd = true

	require.Equal(t, 1234.0, cfg.BoundaryParams().MinArea)
	require.Equal(t, 0.7, cfg.BoundaryParams().MinConfidence)

	cp := cfg.CaptureParams()
	require.Equal(t, 3, cp.StabilizationFrames)
	require.Equal(t, time.Second, cp.Cooldown)

	po := cfg.PipelineOptions()
	require.Equal(t, preprocess.None, po.Strategy)
	require.True(t, po.AutoAdd)
	require.Equal(t, 20, po.SearchLimit)

	require.Equal(t, "eng", cfg.OCRParams().Language)
	require.Nil(t, cfg.Limiter())
	require.Equal(t, "1", cfg.CameraDevice)
	require.Equal(t, "postgres", cfg.CatalogDriver)
}
