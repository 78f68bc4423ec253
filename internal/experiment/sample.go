package experiment

import (
	"fmt"
	"strconv"

	"github.com/born-ml/lmharness/internal/bytelm"
	"github.com/born-ml/lmharness/internal/generate"
	"github.com/born-ml/lmharness/internal/model"
	"github.com/born-ml/lmharness/internal/report"
	"github.com/born-ml/lmharness/internal/tokenizer"
)

// LoadModel rebuilds the reference model saved in a checkpoint.
func LoadModel(path string, sampling generate.SamplingConfig) (*bytelm.Model, report.Checkpoint, error) {
	state, ck, err := report.LoadCheckpoint(path)
	if err != nil {
		return nil, report.Checkpoint{}, err
	}

	cfg := bytelm.DefaultConfig()
	cfg.Sampling = sampling
	for key, dst := range map[string]*int{
		metaModelContext: &cfg.Context,
		metaModelDim:     &cfg.Dim,
		metaModelHidden:  &cfg.Hidden,
	} {
		v, err := strconv.Atoi(ck.Metadata[key])
		if err != nil {
			return nil, report.Checkpoint{}, fmt.Errorf("%s: metadata %s: %w", path, key, err)
		}
		*dst = v
	}

	m, err := bytelm.New(cfg)
	if err != nil {
		return nil, report.Checkpoint{}, err
	}
	if err := m.LoadStateDict(state); err != nil {
		return nil, report.Checkpoint{}, fmt.Errorf("%s: %w", path, err)
	}
	m.SetMode(model.Eval)
	return m, ck, nil
}

// Continue generates length bytes after prompt and returns them decoded.
func Continue(m model.Model, prompt string, length int) (string, error) {
	var tok tokenizer.ByteTokenizer

	m.SetMode(model.Eval)
	out, err := m.Generate(tok.Encode(prompt), length)
	if err != nil {
		return "", err
	}
	return tok.Decode(out), nil
}
