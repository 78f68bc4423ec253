// Package experiment runs one complete training job from a configuration:
// load the corpus, build the samplers and batch sources, train, and write
// the artifacts.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/born-ml/lmharness/internal/bytelm"
	"github.com/born-ml/lmharness/internal/config"
	"github.com/born-ml/lmharness/internal/corpus"
	"github.com/born-ml/lmharness/internal/dataset"
	"github.com/born-ml/lmharness/internal/model"
	"github.com/born-ml/lmharness/internal/optim"
	"github.com/born-ml/lmharness/internal/report"
	"github.com/born-ml/lmharness/internal/runlog"
	"github.com/born-ml/lmharness/internal/train"
)

// Options customizes a run beyond its configuration.
type Options struct {
	// Model replaces the reference byte model built from cfg.Model.
	Model model.Model

	// Logger receives structured progress; nil discards it.
	Logger *log.Logger

	// Out receives the progress bar and rendered samples; nil discards them.
	Out io.Writer

	// Reporter replaces the console reporter.
	Reporter train.Reporter

	// Now returns the run start time; defaults to time.Now.
	Now func() time.Time
}

// Result describes a finished run.
type Result struct {
	ID         report.RunID
	LedgerID   uuid.UUID // uuid.Nil without a ledger
	Artifacts  report.Artifacts
	Checkpoint string // empty when checkpointing is disabled
	Steps      int
	History    *train.History
}

// FinalLoss returns the last validation loss, or NaN if none was recorded.
func (r *Result) FinalLoss() float64 {
	_, v, ok := r.History.Last()
	if !ok {
		return math.NaN()
	}
	return v
}

// Run executes the training job described by cfg.
func Run(ctx context.Context, cfg config.Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = withDefaults(opts)
	logger := opts.Logger

	res := &Result{
		ID: report.RunID{
			AttnMode: cfg.Run.AttnMode,
			Hashes:   cfg.Run.Hashes,
			Started:  opts.Now(),
		},
		History: train.NewHistory(),
	}

	var ledger *runlog.Ledger
	if cfg.Run.Ledger != "" {
		var err error
		if ledger, err = startLedger(ctx, cfg, res); err != nil {
			return nil, err
		}
		defer ledger.Close()
	}

	err := run(cfg, opts, res)
	if ledger != nil {
		out := runlog.Outcome{
			Steps:       res.Steps,
			FinalLoss:   res.FinalLoss(),
			PlotPath:    res.Artifacts.Plot,
			HistoryPath: res.Artifacts.History,
			ModelPath:   res.Checkpoint,
			Err:         err,
		}
		if lerr := ledger.Finish(ctx, res.LedgerID, out, opts.Now()); lerr != nil {
			err = errors.Join(err, lerr)
		}
	}
	if err != nil {
		logger.Error("run failed", "run", res.ID, "steps", res.Steps, "err", err)
		return res, err
	}

	logger.Info("run finished", "run", res.ID, "steps", res.Steps, "final_loss", res.FinalLoss())
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

func startLedger(ctx context.Context, cfg config.Config, res *Result) (*runlog.Ledger, error) {
	ledger, err := runlog.Open(ctx, cfg.Run.Ledger)
	if err != nil {
		return nil, err
	}
	cfgYAML, err := cfg.YAML()
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	id, err := ledger.Start(ctx, res.ID.String(), cfg.Train.NumBatches, cfgYAML, res.ID.Started)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	res.LedgerID = id
	return ledger, nil
}

func run(cfg config.Config, opts Options, res *Result) error {
	logger := opts.Logger

	c, err := corpus.Load(cfg.Data.Path, cfg.Data.TotalBytes, cfg.Data.SplitOffset)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded", "path", cfg.Data.Path, "bytes", c.Len(),
		"train", len(c.Train()), "val", len(c.Val()))

	//nolint:gosec // window sampling is not security-sensitive
	rng := rand.New(rand.NewPCG(cfg.Data.Seed, 0x5eed))
	trainDS, err := dataset.NewTextSampler(c.Train(), cfg.Data.SeqLen, rng)
	if err != nil {
		return fmt.Errorf("train segment: %w", err)
	}
	valDS, err := dataset.NewTextSampler(c.Val(), cfg.Data.SeqLen, rng)
	if err != nil {
		return fmt.Errorf("validation segment: %w", err)
	}
	trainLoader, err := dataset.NewLoader(trainDS, cfg.Data.BatchSize)
	if err != nil {
		return fmt.Errorf("train loader: %w", err)
	}
	valLoader, err := dataset.NewLoader(valDS, cfg.Data.BatchSize)
	if err != nil {
		return fmt.Errorf("validation loader: %w", err)
	}

	m := opts.Model
	if m == nil {
		if m, err = bytelm.New(cfg.Model); err != nil {
			return err
		}
	}
	opt, err := optim.New(cfg.Optimizer.Name, m.Parameters(), cfg.Optimizer.LR, cfg.Optimizer.Momentum)
	if err != nil {
		return err
	}

	reporter := opts.Reporter
	if reporter == nil {
		total := 0
		if cfg.Run.Progress {
			total = cfg.Train.NumBatches
		}
		console := report.NewConsole(logger, opts.Out, total)
		defer console.Close()
		reporter = console
	}

	trainer, err := train.New(m, opt,
		dataset.CycleBatches(trainLoader), dataset.CycleBatches(valLoader), valDS,
		res.History, reporter, cfg.Train)
	if err != nil {
		return err
	}

	logger.Info("training", "run", res.ID, "batches", cfg.Train.NumBatches,
		"optimizer", cfg.Optimizer.Name, "lr", cfg.Optimizer.LR)
	trainErr := trainer.Run()
	res.Steps = trainer.Steps()
	if trainErr != nil {
		return trainErr
	}

	if res.Artifacts, err = report.Finalize(res.History, cfg.Run.OutputDir, res.ID, cfg.Train.ValidateEvery); err != nil {
		return err
	}
	logger.Info("artifacts written", "plot", res.Artifacts.Plot, "history", res.Artifacts.History)

	if cfg.Run.Checkpoint {
		res.Checkpoint, err = report.SaveCheckpoint(cfg.Run.OutputDir, res.ID, m, opt, report.Checkpoint{
			Step:      res.Steps,
			Loss:      res.FinalLoss(),
			Optimizer: cfg.Optimizer.Name,
			Metadata:  modelMetadata(m),
		})
		if err != nil {
			return err
		}
		logger.Info("checkpoint written", "path", res.Checkpoint)
	}
	return nil
}

// Checkpoint metadata keys describing the reference model.
const (
	metaModelContext = "model.context"
	metaModelDim     = "model.dim"
	metaModelHidden  = "model.hidden"
)

func modelMetadata(m model.Model) map[string]string {
	bm, ok := m.(*bytelm.Model)
	if !ok {
		return nil
	}
	c := bm.Config()
	return map[string]string{
		metaModelContext: strconv.Itoa(c.Context),
		metaModelDim:     strconv.Itoa(c.Dim),
		metaModelHidden:  strconv.Itoa(c.Hidden),
	}
}
