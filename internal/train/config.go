package train

import "github.com/born-ml/lmharness/internal/errs"

// Config controls the training loop cadence.
type Config struct {
	NumBatches              int     `yaml:"num_batches"`
	GradientAccumulateEvery int     `yaml:"gradient_accumulate_every"`
	ClipNorm                float64 `yaml:"clip_norm"`       // max global gradient norm, 0 disables clipping
	ValidateEvery           int     `yaml:"validate_every"`  // 0 disables validation
	GenerateEvery           int     `yaml:"generate_every"`  // 0 disables generation
	GenerateLength          int     `yaml:"generate_length"` // bytes generated per sample
}

// DefaultConfig returns the enwik8 experiment settings.
func DefaultConfig() Config {
	return Config{
		NumBatches:              20_000,
		GradientAccumulateEvery: 4,
		ClipNorm:                0.5,
		ValidateEvery:           50,
		GenerateEvery:           100,
		GenerateLength:          512,
	}
}

// Validate rejects settings the loop cannot run with.
func (c Config) Validate() error {
	switch {
	case c.NumBatches < 0:
		return errs.Rangef("num_batches must be non-negative, got %d", c.NumBatches)
	case c.GradientAccumulateEvery < 1:
		return errs.Rangef("gradient_accumulate_every must be at least 1, got %d", c.GradientAccumulateEvery)
	case c.ClipNorm < 0:
		return errs.Rangef("clip_norm must be non-negative, got %g", c.ClipNorm)
	case c.ValidateEvery < 0, c.GenerateEvery < 0:
		return errs.Rangef("cadences must be non-negative, got validate=%d generate=%d", c.ValidateEvery, c.GenerateEvery)
	case c.GenerateLength < 0:
		return errs.Rangef("generate_length must be non-negative, got %d", c.GenerateLength)
	}
	return nil
}
