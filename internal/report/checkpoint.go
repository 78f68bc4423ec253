package report

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/lmharness/internal/errs"
	"github.com/born-ml/lmharness/internal/nn"
	"github.com/born-ml/lmharness/internal/optim"
	"github.com/born-ml/lmharness/internal/serialization"
)

// optimizerPrefixes mark optimizer buffers inside a checkpoint.
var optimizerPrefixes = []string{"adam.", "sgd."}

// Checkpoint describes the training state saved alongside the weights.
type Checkpoint struct {
	Step      int
	Loss      float64
	Optimizer string
	Metadata  map[string]string // model hyperparameters and run labels
}

// SaveCheckpoint writes the parameters of m, plus the optimizer buffers when
// opt exposes them, to model_<id>.lmt in dir.
func SaveCheckpoint(dir string, id RunID, m nn.Module, opt optim.Optimizer, ck Checkpoint) (string, error) {
	path := filepath.Join(dir, "model_"+id.String()+".lmt")

	tensors := make(map[string]serialization.Tensor)
	for name, v := range nn.StateDict(m) {
		tensors[name] = serialization.FromDense(v)
	}

	optConfig := map[string]any{"lr": opt.GetLR()}
	if st, ok := opt.(optim.Stateful); ok {
		for name, v := range st.StateDict() {
			tensors[name] = serialization.FromDense(v)
		}
		optConfig["timestep"] = st.Timestep()
	}

	meta := map[string]string{metaRunID: id.String()}
	maps.Copy(meta, ck.Metadata)

	err := serialization.WriteFile(path, tensors, serialization.Header{
		Kind:     serialization.KindCheckpoint,
		Metadata: meta,
		CheckpointMeta: &serialization.CheckpointMeta{
			Step:            ck.Step,
			Loss:            ck.Loss,
			OptimizerType:   ck.Optimizer,
			OptimizerConfig: optConfig,
		},
	})
	if err != nil {
		return "", errs.IO("write checkpoint", err)
	}
	return path, nil
}

// LoadCheckpoint reads the model parameters of a checkpoint. Optimizer
// buffers are skipped.
func LoadCheckpoint(path string) (map[string]*mat.Dense, Checkpoint, error) {
	tensors, header, err := serialization.ReadFile(path)
	if err != nil {
		return nil, Checkpoint{}, errs.IO("read checkpoint", err)
	}
	if header.Kind != serialization.KindCheckpoint {
		return nil, Checkpoint{}, fmt.Errorf("%s: file holds a %q blob, not a checkpoint", path, header.Kind)
	}

	state := make(map[string]*mat.Dense, len(tensors))
	for name, t := range tensors {
		if isOptimizerBuffer(name) {
			continue
		}
		d, err := t.Dense()
		if err != nil {
			return nil, Checkpoint{}, fmt.Errorf("%s: tensor %s: %w", path, name, err)
		}
		state[name] = d
	}

	ck := Checkpoint{Metadata: header.Metadata}
	if cm := header.CheckpointMeta; cm != nil {
		ck.Step = cm.Step
		ck.Loss = cm.Loss
		ck.Optimizer = cm.OptimizerType
	}
	return state, ck, nil
}

func isOptimizerBuffer(name string) bool {
	for _, p := range optimizerPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
