// Package main provides the lmharness CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/born-ml/lmharness/internal/config"
	"github.com/born-ml/lmharness/internal/experiment"
	"github.com/born-ml/lmharness/internal/generate"
	"github.com/born-ml/lmharness/internal/report"
	"github.com/born-ml/lmharness/internal/runlog"
)

const version = "v0.1.0"

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "lmharness",
	})

	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "train":
		err = trainCmd(logger, args)
	case "sample":
		err = sampleCmd(args)
	case "history":
		err = historyCmd(args)
	case "runs":
		err = runsCmd(args)
	case "version":
		fmt.Printf("lmharness %s\n", version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("command failed", "cmd", os.Args[1], "err", err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "lmharness - byte-level language model training harness")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  train      Train a model (see 'lmharness train -h')")
	fmt.Fprintln(w, "  sample     Continue a prompt with a saved checkpoint")
	fmt.Fprintln(w, "  history    Print a saved loss history")
	fmt.Fprintln(w, "  runs       List runs recorded in a ledger")
	fmt.Fprintln(w, "  version    Show version")
}

// trainFlags are command-line overrides for the run configuration.
type trainFlags struct {
	configPath string
	cfg        config.Config
	noCkpt     bool
	noProgress bool
}

func parseTrainFlags(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	f := trainFlags{cfg: config.Default()}
	c := &f.cfg

	fs.StringVar(&f.configPath, "config", "", "YAML configuration file (flags override it)")
	fs.StringVar(&c.Data.Path, "data", c.Data.Path, "corpus file (gzip, zstd or raw)")
	fs.IntVar(&c.Data.TotalBytes, "total-bytes", c.Data.TotalBytes, "bytes read from the corpus")
	fs.IntVar(&c.Data.SplitOffset, "split", c.Data.SplitOffset, "train/validation split offset")
	fs.IntVar(&c.Data.SeqLen, "seq-len", c.Data.SeqLen, "window length")
	fs.IntVar(&c.Data.BatchSize, "batch-size", c.Data.BatchSize, "windows per batch")
	fs.Uint64Var(&c.Data.Seed, "seed", c.Data.Seed, "window sampling seed")
	fs.IntVar(&c.Train.NumBatches, "batches", c.Train.NumBatches, "optimizer steps")
	fs.IntVar(&c.Train.GradientAccumulateEvery, "accumulate", c.Train.GradientAccumulateEvery, "batches per optimizer step")
	fs.Float64Var(&c.Train.ClipNorm, "clip", c.Train.ClipNorm, "max gradient norm (0 disables)")
	fs.IntVar(&c.Train.ValidateEvery, "validate-every", c.Train.ValidateEvery, "validation cadence (0 disables)")
	fs.IntVar(&c.Train.GenerateEvery, "generate-every", c.Train.GenerateEvery, "generation cadence (0 disables)")
	fs.IntVar(&c.Train.GenerateLength, "generate-length", c.Train.GenerateLength, "bytes per sample")
	fs.StringVar(&c.Optimizer.Name, "optimizer", c.Optimizer.Name, "adam or sgd")
	fs.Float64Var(&c.Optimizer.LR, "lr", c.Optimizer.LR, "learning rate")
	fs.Float64Var(&c.Optimizer.Momentum, "momentum", c.Optimizer.Momentum, "sgd momentum")
	fs.StringVar(&c.Run.AttnMode, "attn-mode", c.Run.AttnMode, "attention mode label")
	fs.IntVar(&c.Run.Hashes, "hashes", c.Run.Hashes, "hash count label")
	fs.StringVar(&c.Run.OutputDir, "out", c.Run.OutputDir, "artifact directory")
	fs.StringVar(&c.Run.Ledger, "ledger", c.Run.Ledger, "SQLite run ledger (empty disables)")
	fs.StringVar(&c.Run.LogLevel, "log-level", c.Run.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&f.noCkpt, "no-checkpoint", false, "skip the final checkpoint")
	fs.BoolVar(&f.noProgress, "no-progress", false, "hide the progress bar")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if f.configPath == "" {
		return applyBoolFlags(f), nil
	}

	// Load the file, then re-apply only the flags given explicitly.
	loaded, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	f.cfg = loaded
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if !set["no-checkpoint"] {
		f.noCkpt = false
	}
	if !set["no-progress"] {
		f.noProgress = false
	}
	return applyBoolFlags(f), nil
}

func applyBoolFlags(f trainFlags) config.Config {
	if f.noCkpt {
		f.cfg.Run.Checkpoint = false
	}
	if f.noProgress {
		f.cfg.Run.Progress = false
	}
	return f.cfg
}

func trainCmd(logger *log.Logger, args []string) error {
	cfg, err := parseTrainFlags(args)
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.Run.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	res, err := experiment.Run(context.Background(), cfg, experiment.Options{
		Logger: logger,
		Out:    os.Stdout,
	})
	if err != nil {
		return err
	}

	fmt.Printf("plot:       %s\n", res.Artifacts.Plot)
	fmt.Printf("history:    %s\n", res.Artifacts.History)
	if res.Checkpoint != "" {
		fmt.Printf("checkpoint: %s\n", res.Checkpoint)
	}
	return nil
}

func sampleCmd(args []string) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	sampling := generate.DefaultSamplingConfig()

	ckpt := fs.String("checkpoint", "", "checkpoint written by 'lmharness train'")
	prompt := fs.String("prompt", "", "text to continue")
	length := fs.Int("length", 512, "bytes to generate")
	fs.Float64Var(&sampling.Temperature, "temperature", sampling.Temperature, "sampling temperature (0 = greedy)")
	fs.IntVar(&sampling.TopK, "top-k", sampling.TopK, "keep the k most likely bytes (0 = use -filter-thres)")
	fs.Float64Var(&sampling.FilterThres, "filter-thres", sampling.FilterThres, "drop this fraction of the vocabulary")
	fs.Float64Var(&sampling.TopP, "top-p", sampling.TopP, "nucleus sampling threshold")
	fs.Int64Var(&sampling.Seed, "seed", sampling.Seed, "sampling seed (-1 = random)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ckpt == "" {
		return fmt.Errorf("sample: -checkpoint is required")
	}

	m, ck, err := experiment.LoadModel(*ckpt, sampling)
	if err != nil {
		return err
	}
	text, err := experiment.Continue(m, *prompt, *length)
	if err != nil {
		return err
	}

	fmt.Printf("checkpoint step %d, validation loss %.4f\n\n", ck.Step, ck.Loss)
	fmt.Println(report.RenderSample(*prompt, text))
	return nil
}

func historyCmd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: lmharness history <loss_*.lmt>")
	}

	saved, err := report.ReadHistory(args[0])
	if err != nil {
		return err
	}

	for _, key := range []string{"run_id", "attn_mode", "hashes", "validate_every", "started"} {
		if v, ok := saved.Metadata[key]; ok {
			fmt.Printf("%-15s %s\n", key+":", v)
		}
	}
	fmt.Println()
	fmt.Printf("%8s  %s\n", "step", "loss")
	steps, values := saved.Steps(), saved.Values()
	for i := range values {
		fmt.Printf("%8d  %.6f\n", steps[i], values[i])
	}
	return nil
}

func runsCmd(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("n", 20, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lmharness runs [-n N] <ledger.sqlite3>")
	}

	ctx := context.Background()
	ledger, err := runlog.Open(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.Recent(ctx, *limit)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-9s  %7s  %10s  %s\n", "id", "status", "steps", "final_loss", "label")
	for _, r := range runs {
		fmt.Printf("%-36s  %-9s  %7d  %10.4f  %s\n", r.ID, r.Status, r.Steps, r.FinalLoss, r.Label)
		if r.Error != "" {
			fmt.Printf("  error: %s\n", strings.TrimSpace(r.Error))
		}
	}
	return nil
}
