// Package train runs the gradient-accumulating training loop with periodic
// validation and sample generation.
//
// Each iteration:
//
//  1. runs GradientAccumulateEvery forward/backward passes on training
//     batches, summing gradients in the parameters;
//  2. clips the global gradient norm;
//  3. takes one optimizer step and clears the gradients;
//  4. on validation steps, records one validation loss in the History;
//  5. on generation steps, continues a validation window and reports it.
package train

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/lmharness/internal/dataset"
	"github.com/born-ml/lmharness/internal/model"
	"github.com/born-ml/lmharness/internal/nn"
	"github.com/born-ml/lmharness/internal/optim"
	"github.com/born-ml/lmharness/internal/tokenizer"
)

// ErrDiverged is returned when a training or validation loss is NaN or infinite.
var ErrDiverged = errors.New("loss diverged")

// BatchSource yields batches forever. dataset.Cycle[dataset.Batch] is the
// usual implementation.
type BatchSource interface {
	Next() (dataset.Batch, error)
}

// WindowSampler draws one fresh window of seqLen+1 bytes.
type WindowSampler interface {
	Sample() []byte
}

// Trainer drives a model through a fixed number of optimizer steps.
type Trainer struct {
	model     model.Model
	optimizer optim.Optimizer
	train     BatchSource
	val       BatchSource
	prompts   WindowSampler
	history   *History
	reporter  Reporter
	cfg       Config

	step int // iterations completed
}

// New creates a trainer. prompts supplies the validation windows used to
// prime generation and may be nil when GenerateEvery is 0. A nil reporter
// discards progress.
func New(
	m model.Model,
	opt optim.Optimizer,
	train, val BatchSource,
	prompts WindowSampler,
	history *History,
	reporter Reporter,
	cfg Config,
) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil || opt == nil || train == nil || history == nil {
		return nil, errors.New("train: model, optimizer, training source and history are required")
	}
	if cfg.ValidateEvery > 0 && val == nil {
		return nil, errors.New("train: validation enabled without a validation source")
	}
	if cfg.GenerateEvery > 0 && prompts == nil {
		return nil, errors.New("train: generation enabled without a prompt sampler")
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	return &Trainer{
		model:     m,
		optimizer: opt,
		train:     train,
		val:       val,
		prompts:   prompts,
		history:   history,
		reporter:  reporter,
		cfg:       cfg,
	}, nil
}

// Run executes exactly cfg.NumBatches iterations.
//
// Any failure aborts the run; the returned error names the iteration.
func (t *Trainer) Run() error {
	for i := range t.cfg.NumBatches {
		if err := t.iteration(i); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		t.step = i + 1
	}
	return nil
}

// Steps returns the number of completed iterations.
func (t *Trainer) Steps() int {
	return t.step
}

// History returns the validation history the trainer records into.
func (t *Trainer) History() *History {
	return t.history
}

func (t *Trainer) iteration(i int) error {
	t.model.SetMode(model.Train)

	var last float64
	for range t.cfg.GradientAccumulateEvery {
		batch, err := t.train.Next()
		if err != nil {
			return fmt.Errorf("next training batch: %w", err)
		}
		loss, err := t.model.Forward(batch)
		if err != nil {
			return fmt.Errorf("forward: %w", err)
		}
		if err := checkFinite("training", loss.Value); err != nil {
			return err
		}
		if err := loss.Backward(); err != nil {
			return fmt.Errorf("backward: %w", err)
		}
		last = loss.Value
	}
	t.reporter.TrainLoss(i, last)

	if t.cfg.ClipNorm > 0 {
		nn.ClipGradNorm(t.model.Parameters(), t.cfg.ClipNorm)
	}
	t.optimizer.Step()
	t.optimizer.ZeroGrad()

	if t.cfg.ValidateEvery > 0 && i%t.cfg.ValidateEvery == 0 {
		if err := t.validate(i); err != nil {
			return err
		}
	}
	if t.cfg.GenerateEvery > 0 && i%t.cfg.GenerateEvery == 0 {
		if err := t.generate(i); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) validate(i int) error {
	t.model.SetMode(model.Eval)

	batch, err := t.val.Next()
	if err != nil {
		return fmt.Errorf("next validation batch: %w", err)
	}
	loss, err := t.model.Forward(batch)
	if err != nil {
		return fmt.Errorf("validation forward: %w", err)
	}
	if err := checkFinite("validation", loss.Value); err != nil {
		return err
	}

	t.history.Record(i, loss.Value)
	t.reporter.Validation(i, loss.Value)
	return nil
}

func (t *Trainer) generate(i int) error {
	t.model.SetMode(model.Eval)

	window := t.prompts.Sample()
	prime := window[:len(window)-1]

	out, err := t.model.Generate(prime, t.cfg.GenerateLength)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	t.reporter.Sample(i, tokenizer.DecodeTokens(prime), tokenizer.DecodeTokens(out))
	return nil
}

func checkFinite(what string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s loss is %v", ErrDiverged, what, v)
	}
	return nil
}
