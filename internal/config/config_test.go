package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lmharness/internal/errs"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20_000, cfg.Train.NumBatches)
	assert.Equal(t, 2, cfg.Data.BatchSize)
	assert.Equal(t, 4, cfg.Train.GradientAccumulateEvery)
	assert.Equal(t, 1e-4, cfg.Optimizer.LR)
	assert.Equal(t, 50, cfg.Train.ValidateEvery)
	assert.Equal(t, 100, cfg.Train.GenerateEvery)
	assert.Equal(t, 512, cfg.Train.GenerateLength)
	assert.Equal(t, 4096, cfg.Data.SeqLen)
	assert.Equal(t, 1, cfg.Run.Hashes)
	assert.Equal(t, "LSH", cfg.Run.AttnMode)
	assert.Equal(t, "./data/enwik8.gz", cfg.Data.Path)
	assert.Equal(t, 95_000_000, cfg.Data.TotalBytes)
	assert.Equal(t, 90_000_000, cfg.Data.SplitOffset)
	assert.Equal(t, 0.5, cfg.Train.ClipNorm)
	assert.Equal(t, "saved_figures", cfg.Run.OutputDir)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
data:
  path: corpus.zst
  seq_len: 128
train:
  num_batches: 10
model:
  hidden: 64
  sampling:
    temperature: 0.8
optimizer:
  name: sgd
  momentum: 0.9
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "corpus.zst", cfg.Data.Path)
	assert.Equal(t, 128, cfg.Data.SeqLen)
	assert.Equal(t, 2, cfg.Data.BatchSize, "unset fields keep defaults")
	assert.Equal(t, 10, cfg.Train.NumBatches)
	assert.Equal(t, 4, cfg.Train.GradientAccumulateEvery)
	assert.Equal(t, 64, cfg.Model.Hidden)
	assert.Equal(t, 8, cfg.Model.Context)
	assert.Equal(t, 0.8, cfg.Model.Sampling.Temperature)
	assert.Equal(t, 0.9, cfg.Model.Sampling.FilterThres)
	assert.Equal(t, "sgd", cfg.Optimizer.Name)
	assert.Equal(t, 1e-4, cfg.Optimizer.LR)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, errs.ErrIO)

	_, err = Load(writeConfig(t, "data:\n  seqlen: 5\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Load(writeConfig(t, "data: [1, 2"))
	assert.Error(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Train.NumBatches = 7

	out, err := cfg.YAML()
	require.NoError(t, err)

	loaded, err := Load(writeConfig(t, out))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"split beyond total", func(c *Config) { c.Data.SplitOffset = c.Data.TotalBytes + 1 }},
		{"zero seq len", func(c *Config) { c.Data.SeqLen = 0 }},
		{"zero batch", func(c *Config) { c.Data.BatchSize = 0 }},
		{"empty path", func(c *Config) { c.Data.Path = "" }},
		{"zero accumulation", func(c *Config) { c.Train.GradientAccumulateEvery = 0 }},
		{"negative cadence", func(c *Config) { c.Train.GenerateEvery = -1 }},
		{"unknown optimizer", func(c *Config) { c.Optimizer.Name = "lamb" }},
		{"zero lr", func(c *Config) { c.Optimizer.LR = 0 }},
		{"momentum one", func(c *Config) { c.Optimizer.Momentum = 1 }},
		{"bad model", func(c *Config) { c.Model.Dim = 0 }},
		{"zero hashes", func(c *Config) { c.Run.Hashes = 0 }},
		{"no output dir", func(c *Config) { c.Run.OutputDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), errs.ErrRange)
		})
	}
}
