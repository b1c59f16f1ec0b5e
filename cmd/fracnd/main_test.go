package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracnd/internal/models"
	"fracnd/pkg/config"
	"fracnd/pkg/volumeio"
)

func run(t *testing.T, args ...string) (*app, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	a := newApp()
	root := a.rootCommand()
	root.SetArgs(args)
	return a, root.ExecuteContext(context.Background())
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fracnd.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("fractal:\n  n_samples: 7\n  stride: 3\n"), 0644))

	a, err := run(t, "config", "init", filepath.Join(dir, "a.yaml"), "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 7, a.cfg.Fractal.NSamples)
	assert.Equal(t, 3, a.cfg.Fractal.Stride)

	t.Setenv("FRACND_N_SAMPLES", "5")
	a, err = run(t, "config", "init", filepath.Join(dir, "b.yaml"), "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 5, a.cfg.Fractal.NSamples)

	a, err = run(t, "config", "init", filepath.Join(dir, "c.toml"), "--config", cfgPath, "--n-samples", "9", "-m", "t1,t2")
	require.NoError(t, err)
	assert.Equal(t, 9, a.cfg.Fractal.NSamples)
	assert.Equal(t, 3, a.cfg.Fractal.Stride)
	assert.Equal(t, []string{"t1", "t2"}, a.cfg.Batch.Modalities)

	written, err := config.LoadConfig(filepath.Join(dir, "c.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), written)
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fracnd.yaml")
	_, err := run(t, "config", "init", path)
	require.NoError(t, err)

	_, err = run(t, "config", "init", path)
	assert.Error(t, err)

	_, err = run(t, "config", "init", path, "--force")
	assert.NoError(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	vol := models.NewVolume(16, 16, 16)
	for i := 0; i < 16; i++ {
		vol.Set(1, i, i, i)
		vol.Set(2, i, 8, 3)
	}
	path := filepath.Join(dir, "sample_seg.fvol.gz")
	require.NoError(t, volumeio.Save(path, vol, volumeio.SaveOptions{}))

	plots := filepath.Join(dir, "plots")
	_, err := run(t, "analyze", path, "--n-samples", "4", "--stride", "1", "--plots-dir", plots, "--crop", "-q")
	require.NoError(t, err)

	for _, name := range []string{"sample_seg_FD.png", "sample_seg_LD.png"} {
		_, err := os.Stat(filepath.Join(plots, name))
		assert.NoError(t, err, name)
	}
}

func TestAnalyzeCommandInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.fvol")
	require.NoError(t, volumeio.Save(path, models.NewVolume(4, 4), volumeio.SaveOptions{}))

	_, err := run(t, "analyze", path, "--n-samples", "0")
	assert.Error(t, err)
}
