// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package harness

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/lmharness/internal/bytelm"
	"github.com/born-ml/lmharness/internal/config"
	"github.com/born-ml/lmharness/internal/dataset"
	"github.com/born-ml/lmharness/internal/errs"
	"github.com/born-ml/lmharness/internal/experiment"
	"github.com/born-ml/lmharness/internal/generate"
	"github.com/born-ml/lmharness/internal/model"
	"github.com/born-ml/lmharness/internal/nn"
	"github.com/born-ml/lmharness/internal/report"
	"github.com/born-ml/lmharness/internal/train"
)

// Model contract

// Model is a next-byte language model driven by the harness.
type Model = model.Model

// Mode selects training or evaluation behavior.
type Mode = model.Mode

// Model modes.
const (
	Train = model.Train
	Eval  = model.Eval
)

// Loss is a scalar loss with an optional backward pass.
type Loss = model.Loss

// NewLoss creates a loss. backward may be nil for losses computed without
// gradient tracking.
func NewLoss(value float64, backward func() error) *Loss {
	return model.NewLoss(value, backward)
}

// Parameter is a trainable matrix with its accumulated gradient.
type Parameter = nn.Parameter

// NewParameter creates a parameter with the given initial value.
func NewParameter(name string, value *mat.Dense) *Parameter {
	return nn.NewParameter(name, value)
}

// Batch is a stack of equally long byte windows.
type Batch = dataset.Batch

// Configuration

// Config is the complete run configuration.
type Config = config.Config

// DefaultConfig returns the enwik8 experiment settings.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// ModelConfig configures the reference byte model.
type ModelConfig = bytelm.Config

// SamplingConfig configures generation.
type SamplingConfig = generate.SamplingConfig

// Running

// Options customizes a run beyond its configuration.
type Options = experiment.Options

// Result describes a finished run.
type Result = experiment.Result

// History is the recorded validation loss.
type History = train.History

// Reporter receives training progress.
type Reporter = train.Reporter

// Run executes a training job.
func Run(ctx context.Context, cfg Config, opts Options) (*Result, error) {
	return experiment.Run(ctx, cfg, opts)
}

// NewReferenceModel creates the built-in byte model.
func NewReferenceModel(cfg ModelConfig) (*bytelm.Model, error) {
	return bytelm.New(cfg)
}

// LoadModel rebuilds the reference model from a checkpoint.
func LoadModel(path string, sampling SamplingConfig) (*bytelm.Model, error) {
	m, _, err := experiment.LoadModel(path, sampling)
	return m, err
}

// Continue generates length bytes after prompt.
func Continue(m Model, prompt string, length int) (string, error) {
	return experiment.Continue(m, prompt, length)
}

// ReadHistory loads a loss history written at the end of a run.
func ReadHistory(path string) (*History, error) {
	saved, err := report.ReadHistory(path)
	if err != nil {
		return nil, err
	}
	return saved.History, nil
}

// Errors

// Error categories, matched with errors.Is.
var (
	ErrIO        = errs.ErrIO
	ErrRange     = errs.ErrRange
	ErrNoGrad    = model.ErrNoGrad
	ErrShape     = model.ErrShape
	ErrDiverged  = train.ErrDiverged
	ErrEmptyData = dataset.ErrEmptySource
)
