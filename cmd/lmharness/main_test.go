package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrainFlagsDefaults(t *testing.T) {
	cfg, err := parseTrainFlags(nil)
	require.NoError(t, err)

	assert.Equal(t, "./data/enwik8.gz", cfg.Data.Path)
	assert.True(t, cfg.Run.Checkpoint)
	assert.True(t, cfg.Run.Progress)
}

func TestParseTrainFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  seq_len: 64
train:
  num_batches: 10
  validate_every: 5
run:
  progress: false
`), 0o600))

	cfg, err := parseTrainFlags([]string{"-config", path, "-batches", "30", "-no-checkpoint"})
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Data.SeqLen, "file value kept")
	assert.Equal(t, 30, cfg.Train.NumBatches, "flag beats file")
	assert.Equal(t, 5, cfg.Train.ValidateEvery)
	assert.False(t, cfg.Run.Checkpoint)
	assert.False(t, cfg.Run.Progress, "file value kept when the flag is absent")
	assert.Equal(t, 2, cfg.Data.BatchSize, "defaults fill the rest")
}

func TestParseTrainFlagsErrors(t *testing.T) {
	_, err := parseTrainFlags([]string{"-batches", "many"})
	assert.Error(t, err)

	_, err = parseTrainFlags([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
