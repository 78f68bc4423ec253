// Package report turns a finished run into files on disk: the validation
// loss curve as a PNG, the raw loss history as a .lmt blob, and optionally
// a model checkpoint.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/born-ml/lmharness/internal/errs"
	"github.com/born-ml/lmharness/internal/serialization"
	"github.com/born-ml/lmharness/internal/train"
)

// Tensor and metadata keys of a history file.
const (
	stepsTensor = "steps"
	lossTensor  = "loss"

	metaAttnMode      = "attn_mode"
	metaHashes        = "hashes"
	metaStarted       = "started"
	metaValidateEvery = "validate_every"
	metaRunID         = "run_id"
)

const timestampLayout = "20060102_150405"

// RunID labels the artifacts of one run.
type RunID struct {
	AttnMode string
	Hashes   int
	Started  time.Time
}

// String returns "<mode>_hash=<n>_<YYYYMMDD_HHMMSS>".
func (id RunID) String() string {
	return fmt.Sprintf("%s_hash=%d_%s", id.AttnMode, id.Hashes, id.Started.Format(timestampLayout))
}

// Artifacts lists the files written by Finalize.
type Artifacts struct {
	Plot    string
	History string
}

// Finalize writes the loss plot and the raw history for a run into dir,
// creating dir if needed.
func Finalize(h *train.History, dir string, id RunID, validateEvery int) (Artifacts, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Artifacts{}, errs.IO("create output directory", err)
	}

	art := Artifacts{
		Plot:    filepath.Join(dir, "loss_graph_"+id.String()+".png"),
		History: filepath.Join(dir, "loss_"+id.String()+".lmt"),
	}

	if err := savePlot(h, art.Plot, id); err != nil {
		return Artifacts{}, errs.IO("write loss plot", err)
	}
	if err := saveHistory(h, art.History, id, validateEvery); err != nil {
		return Artifacts{}, errs.IO("write loss history", err)
	}
	return art, nil
}

func savePlot(h *train.History, path string, id RunID) error {
	p := plot.New()
	p.Title.Text = "Validation loss (" + id.String() + ")"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())

	steps, values := h.Steps(), h.Values()
	if len(values) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	} else {
		pts := make(plotter.XYs, len(values))
		for i := range values {
			pts[i].X = float64(steps[i])
			pts[i].Y = values[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		p.Add(line)
	}

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

func saveHistory(h *train.History, path string, id RunID, validateEvery int) error {
	steps := h.Steps()
	stepValues := make([]float64, len(steps))
	for i, s := range steps {
		stepValues[i] = float64(s)
	}

	return serialization.WriteFile(path, map[string]serialization.Tensor{
		stepsTensor: serialization.Vector(stepValues),
		lossTensor:  serialization.Vector(h.Values()),
	}, serialization.Header{
		Kind: serialization.KindHistory,
		Metadata: map[string]string{
			metaRunID:         id.String(),
			metaAttnMode:      id.AttnMode,
			metaHashes:        strconv.Itoa(id.Hashes),
			metaStarted:       id.Started.UTC().Format(time.RFC3339),
			metaValidateEvery: strconv.Itoa(validateEvery),
		},
	})
}

// SavedHistory is a loss history read back from disk.
type SavedHistory struct {
	*train.History
	Metadata map[string]string
}

// ReadHistory loads a history written by Finalize.
func ReadHistory(path string) (*SavedHistory, error) {
	tensors, header, err := serialization.ReadFile(path)
	if err != nil {
		return nil, errs.IO("read loss history", err)
	}
	if header.Kind != serialization.KindHistory {
		return nil, fmt.Errorf("%s: %w", path, errNotHistory(header.Kind))
	}

	steps, okSteps := tensors[stepsTensor]
	loss, okLoss := tensors[lossTensor]
	if !okSteps || !okLoss || len(steps.Data) != len(loss.Data) {
		return nil, errs.Rangef("%s: steps and loss tensors missing or of different length", path)
	}

	h := train.NewHistory()
	for i, v := range loss.Data {
		h.Record(int(steps.Data[i]), v)
	}
	return &SavedHistory{History: h, Metadata: header.Metadata}, nil
}

func errNotHistory(kind string) error {
	return errors.New("file holds a " + strconv.Quote(kind) + " blob, not a loss history")
}
