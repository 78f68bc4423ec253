// Package config holds the settings of a training run.
//
// Default returns the enwik8 experiment; a YAML file overlays it field by
// field, and command-line flags override both.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/lmharness/internal/bytelm"
	"github.com/born-ml/lmharness/internal/errs"
	"github.com/born-ml/lmharness/internal/train"
)

// Config is the complete run configuration.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Train     train.Config    `yaml:"train"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Model     bytelm.Config   `yaml:"model"`
	Run       RunConfig       `yaml:"run"`
}

// DataConfig selects the corpus and how it is cut into batches.
type DataConfig struct {
	Path        string `yaml:"path"`         // gzip, zstd or raw corpus file
	TotalBytes  int    `yaml:"total_bytes"`  // bytes read from the start of the corpus
	SplitOffset int    `yaml:"split_offset"` // train/validation boundary
	SeqLen      int    `yaml:"seq_len"`
	BatchSize   int    `yaml:"batch_size"`
	Seed        uint64 `yaml:"seed"` // window sampling seed
}

// OptimizerConfig selects the optimizer.
type OptimizerConfig struct {
	Name     string  `yaml:"name"` // "adam" or "sgd"
	LR       float64 `yaml:"lr"`
	Momentum float64 `yaml:"momentum"` // sgd only
}

// RunConfig holds run labels and output locations.
type RunConfig struct {
	AttnMode   string `yaml:"attn_mode"`  // label only
	Hashes     int    `yaml:"hashes"`     // label only
	OutputDir  string `yaml:"output_dir"` // plot, history and checkpoint directory
	Checkpoint bool   `yaml:"checkpoint"` // save the model at the end of the run
	Ledger     string `yaml:"ledger"`     // SQLite run ledger path, empty disables it
	LogLevel   string `yaml:"log_level"`
	Progress   bool   `yaml:"progress"` // show a progress bar
}

// Default returns the enwik8 experiment settings.
func Default() Config {
	return Config{
		Data: DataConfig{
			Path:        "./data/enwik8.gz",
			TotalBytes:  95_000_000,
			SplitOffset: 90_000_000,
			SeqLen:      4096,
			BatchSize:   2,
			Seed:        0,
		},
		Train: train.DefaultConfig(),
		Optimizer: OptimizerConfig{
			Name: "adam",
			LR:   1e-4,
		},
		Model: bytelm.DefaultConfig(),
		Run: RunConfig{
			AttnMode:   "LSH",
			Hashes:     1,
			OutputDir:  "saved_figures",
			Checkpoint: true,
			LogLevel:   "info",
			Progress:   true,
		},
	}
}

// Load reads a YAML file on top of Default. Fields absent from the file keep
// their default values; unknown fields are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	//nolint:gosec // G304: config path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errs.IO("read config", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// YAML renders the configuration for run records.
func (c Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}

// Validate checks the configuration for values the run cannot use.
func (c Config) Validate() error {
	d := c.Data
	switch {
	case d.Path == "":
		return errs.Rangef("data.path is empty")
	case d.TotalBytes <= 0:
		return errs.Rangef("data.total_bytes must be positive, got %d", d.TotalBytes)
	case d.SplitOffset < 0 || d.SplitOffset > d.TotalBytes:
		return errs.Rangef("data.split_offset %d outside [0, %d]", d.SplitOffset, d.TotalBytes)
	case d.SeqLen <= 0:
		return errs.Rangef("data.seq_len must be positive, got %d", d.SeqLen)
	case d.BatchSize <= 0:
		return errs.Rangef("data.batch_size must be positive, got %d", d.BatchSize)
	}

	if err := c.Train.Validate(); err != nil {
		return err
	}

	switch c.Optimizer.Name {
	case "adam", "sgd":
	default:
		return errs.Rangef("optimizer.name must be adam or sgd, got %q", c.Optimizer.Name)
	}
	if c.Optimizer.LR <= 0 {
		return errs.Rangef("optimizer.lr must be positive, got %g", c.Optimizer.LR)
	}
	if c.Optimizer.Momentum < 0 || c.Optimizer.Momentum >= 1 {
		return errs.Rangef("optimizer.momentum %g outside [0, 1)", c.Optimizer.Momentum)
	}

	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrRange, err)
	}

	if c.Run.Hashes < 1 {
		return errs.Rangef("run.hashes must be at least 1, got %d", c.Run.Hashes)
	}
	if c.Run.OutputDir == "" {
		return errs.Rangef("run.output_dir is empty")
	}
	return nil
}
