package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Fractal.NSamples)
	assert.Equal(t, 2, cfg.Fractal.Stride)
	assert.Equal(t, 0.0, cfg.Fractal.Subsample)
	assert.Equal(t, []string{"t1", "t1ce", "t2", "flair"}, cfg.Batch.Modalities)
	assert.Equal(t, 0.01, cfg.Batch.SubsampleIntensity)
	assert.Equal(t, 255, cfg.Batch.IntensityLevels)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
fractal:
  n_samples: 12
  disjoint: true
  histogram: true
  bins: sturges
batch:
  modalities: [t1, flair]
  save_plots: false
output:
  verbose: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Fractal.NSamples)
	assert.True(t, cfg.Fractal.Disjoint)
	assert.Equal(t, "sturges", cfg.Fractal.Bins)
	assert.Equal(t, []string{"t1", "flair"}, cfg.Batch.Modalities)
	assert.False(t, cfg.Batch.SavePlots)
	assert.True(t, cfg.Output.Verbose)

	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Fractal.Stride)
	assert.Equal(t, 255, cfg.Batch.IntensityLevels)
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[fractal]
stride = 3
seed = 42

[batch]
plot_format = "jpeg"
confidence = 90.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Fractal.Stride)
	assert.Equal(t, uint64(42), cfg.Fractal.Seed)
	assert.Equal(t, "jpeg", cfg.Batch.PlotFormat)
	assert.Equal(t, 90.0, cfg.Batch.Confidence)
	assert.Equal(t, 100, cfg.Fractal.NSamples)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fractal: [1, 2"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.Fractal.NSamples = 7
			cfg.Fractal.Workers = 3
			cfg.Batch.Modalities = []string{"t2"}
			cfg.Output.Quiet = true
			require.NoError(t, SaveConfig(cfg, path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fracnd.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fractal.NSamples = 0
	assert.ErrorContains(t, cfg.Validate(), "fractal")

	cfg = DefaultConfig()
	cfg.Batch.PlotFormat = "bmp"
	assert.ErrorContains(t, cfg.Validate(), "batch")

	cfg = DefaultConfig()
	cfg.Output.Verbose, cfg.Output.Quiet = true, true
	assert.Error(t, cfg.Validate())
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("FRACND_N_SAMPLES", "9")
	t.Setenv("FRACND_STRIDE", "4")
	t.Setenv("FRACND_SUBSAMPLE", "0.5")
	t.Setenv("FRACND_SEED", "7")
	t.Setenv("FRACND_HISTOGRAM", "1")
	t.Setenv("FRACND_BINS", "fd")
	t.Setenv("FRACND_MODALITIES", "t1, t2 ,,flair")
	t.Setenv("FRACND_SAVE_PLOTS", "false")
	t.Setenv("FRACND_VERBOSE", "true")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnvConfig(cfg, map[string]bool{FlagStride: true}))

	assert.Equal(t, 9, cfg.Fractal.NSamples)
	assert.Equal(t, 2, cfg.Fractal.Stride, "explicit flag wins over the environment")
	assert.Equal(t, 0.5, cfg.Fractal.Subsample)
	assert.Equal(t, uint64(7), cfg.Fractal.Seed)
	assert.True(t, cfg.Fractal.Histogram)
	assert.Equal(t, "fd", cfg.Fractal.Bins)
	assert.Equal(t, []string{"t1", "t2", "flair"}, cfg.Batch.Modalities)
	assert.False(t, cfg.Batch.SavePlots)
	assert.True(t, cfg.Output.Verbose)
}

func TestApplyEnvConfigInvalid(t *testing.T) {
	for env, value := range map[string]string{
		"FRACND_N_SAMPLES":  "many",
		"FRACND_WORKERS":    "-2",
		"FRACND_CONFIDENCE": "high",
		"FRACND_SEED":       "-1",
	} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, value)
			assert.Error(t, ApplyEnvConfig(DefaultConfig(), nil))
		})
	}
}
