// Package bytelm implements a small byte-level language model: each byte is
// predicted from an embedding of the Context bytes before it, passed
// through one tanh hidden layer.
//
// Architecture:
//
//	x      = concat(emb[b_{t-C+1}], ..., emb[b_t])   // [C*Dim]
//	h      = tanh(x·W1 + b1)                        // [Hidden], dropout in train mode
//	logits = h·W2 + b2                              // [256]
//
// Positions before the start of a window read the padding byte 0.
// The layers come from package nn and carry their own backward passes.
package bytelm

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/lmharness/internal/dataset"
	"github.com/born-ml/lmharness/internal/generate"
	"github.com/born-ml/lmharness/internal/model"
	"github.com/born-ml/lmharness/internal/nn"
	"github.com/born-ml/lmharness/internal/tokenizer"
)

// padToken fills context positions before the start of a window.
const padToken = 0

// Config holds the model hyperparameters.
type Config struct {
	Context int     `yaml:"context"` // bytes of left context per prediction
	Dim     int     `yaml:"dim"`     // embedding width
	Hidden  int     `yaml:"hidden"`  // hidden layer width
	Dropout float64 `yaml:"dropout"` // dropout on the hidden layer in train mode
	Seed    uint64  `yaml:"seed"`    // initialization and dropout seed

	Sampling generate.SamplingConfig `yaml:"sampling"`
}

// DefaultConfig returns a model small enough to train on a CPU.
func DefaultConfig() Config {
	return Config{
		Context:  8,
		Dim:      32,
		Hidden:   256,
		Dropout:  0.1,
		Seed:     1,
		Sampling: generate.DefaultSamplingConfig(),
	}
}

// Validate checks that the hyperparameters describe a buildable model.
func (c Config) Validate() error {
	if c.Context <= 0 || c.Dim <= 0 || c.Hidden <= 0 {
		return fmt.Errorf("bytelm: context, dim and hidden must be positive (got %d, %d, %d)", c.Context, c.Dim, c.Hidden)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("bytelm: dropout %g outside [0, 1)", c.Dropout)
	}
	return nil
}

// Model is the context-window byte language model.
type Model struct {
	cfg  Config
	mode model.Mode

	emb     *nn.Embedding // [256, Dim]
	hidden  *nn.Linear    // [Context*Dim, Hidden]
	act     nn.Tanh
	dropout *nn.Dropout
	out     *nn.Linear // [Hidden, 256]

	sampler *generate.Sampler
}

var _ model.Model = (*Model)(nil)

// New creates a model with freshly initialized weights in Train mode.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src := rand.NewPCG(cfg.Seed, 0)
	emb := nn.NewEmbedding("emb", tokenizer.VocabSize, cfg.Dim, 0.02, src)
	hidden := nn.NewLinear("hidden", cfg.Context*cfg.Dim, cfg.Hidden, src)
	out := nn.NewLinear("out", cfg.Hidden, tokenizer.VocabSize, src)

	return &Model{
		cfg:     cfg,
		mode:    model.Train,
		emb:     emb,
		hidden:  hidden,
		dropout: nn.NewDropout(cfg.Dropout, rand.NewPCG(cfg.Seed, 1)),
		out:     out,
		sampler: generate.NewSampler(cfg.Sampling),
	}, nil
}

// Config returns the model hyperparameters.
func (m *Model) Config() Config {
	return m.cfg
}

// Parameters returns all trainable parameters.
func (m *Model) Parameters() []*nn.Parameter {
	params := m.emb.Parameters()
	params = append(params, m.hidden.Parameters()...)
	return append(params, m.out.Parameters()...)
}

// SetMode switches dropout and gradient tracking on (Train) or off (Eval).
func (m *Model) SetMode(mode model.Mode) {
	m.mode = mode
}

// Mode returns the current mode.
func (m *Model) Mode() model.Mode {
	return m.mode
}

// LoadStateDict copies parameter values from state.
//
// Every parameter must be present with matching dimensions; extra entries
// (such as optimizer buffers) are ignored.
func (m *Model) LoadStateDict(state map[string]*mat.Dense) error {
	for _, p := range m.Parameters() {
		src, ok := state[p.Name()]
		if !ok {
			return fmt.Errorf("bytelm: missing parameter %q", p.Name())
		}
		r, c := p.Value().Dims()
		sr, sc := src.Dims()
		if r != sr || c != sc {
			return fmt.Errorf("bytelm: parameter %q is %dx%d, checkpoint has %dx%d", p.Name(), r, c, sr, sc)
		}
		p.Value().Copy(src)
	}
	return nil
}

// activations holds the forward-pass intermediates needed for backward.
type activations struct {
	contexts [][]byte   // per row: Context token ids
	x        *mat.Dense // [N, Context*Dim]
	h        *mat.Dense // tanh output before dropout
	mask     *mat.Dense // inverted-dropout mask, nil when disabled
	hd       *mat.Dense // hidden after dropout
	logits   *mat.Dense // [N, 256]
}

// Forward computes the mean next-byte cross-entropy over every position of
// every window in the batch.
func (m *Model) Forward(batch dataset.Batch) (*model.Loss, error) {
	contexts, targets, err := m.rows(batch)
	if err != nil {
		return nil, err
	}

	train := m.mode == model.Train
	act := m.forward(contexts, train)

	loss, dLogits, err := nn.CrossEntropy(act.logits, targets)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return nil, fmt.Errorf("bytelm: non-finite loss %v", loss)
	}

	if !train {
		return model.NewLoss(loss, nil), nil
	}
	return model.NewLoss(loss, func() error {
		m.backward(act, dLogits)
		return nil
	}), nil
}

// rows flattens a batch into one context/target pair per predicted position.
func (m *Model) rows(batch dataset.Batch) ([][]byte, []byte, error) {
	if batch.Size() == 0 {
		return nil, nil, fmt.Errorf("%w: empty batch", model.ErrShape)
	}
	seqLen := batch.SeqLen()
	if seqLen < 1 {
		return nil, nil, fmt.Errorf("%w: windows need at least 2 bytes", model.ErrShape)
	}

	contexts := make([][]byte, 0, batch.Size()*seqLen)
	targets := make([]byte, 0, batch.Size()*seqLen)
	for i, w := range batch.Windows {
		if len(w) != seqLen+1 {
			return nil, nil, fmt.Errorf("%w: window %d has %d bytes, want %d", model.ErrShape, i, len(w), seqLen+1)
		}
		inputs := batch.Inputs(i)
		for t := range seqLen {
			contexts = append(contexts, m.context(inputs[:t+1]))
		}
		targets = append(targets, batch.Targets(i)...)
	}
	return contexts, targets, nil
}

// context returns the last Context bytes of history, left-padded.
func (m *Model) context(history []byte) []byte {
	ctx := make([]byte, m.cfg.Context)
	n := min(len(history), m.cfg.Context)
	for i := range ctx[:m.cfg.Context-n] {
		ctx[i] = padToken
	}
	copy(ctx[m.cfg.Context-n:], history[len(history)-n:])
	return ctx
}

func (m *Model) forward(contexts [][]byte, train bool) *activations {
	x := m.emb.Forward(contexts)
	h := m.act.Forward(m.hidden.Forward(x))

	act := &activations{contexts: contexts, x: x, h: h}
	if train {
		rows, cols := h.Dims()
		act.mask = m.dropout.Mask(rows, cols)
	}
	act.hd = nn.Apply(h, act.mask)
	act.logits = m.out.Forward(act.hd)
	return act
}

func (m *Model) backward(act *activations, dLogits *mat.Dense) {
	dH := nn.Apply(m.out.Backward(act.hd, dLogits), act.mask)
	dPre := m.act.Backward(act.h, dH)
	dX := m.hidden.Backward(act.x, dPre)
	m.emb.Backward(act.contexts, dX)
}

// Generate samples length bytes continuing prefix.
//
// Dropout is never applied during generation, whatever the current mode.
// An empty prefix starts from padding.
func (m *Model) Generate(prefix []byte, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative generation length %d", model.ErrShape, length)
	}

	history := append([]byte(nil), prefix...)
	out := make([]byte, 0, length)
	for range length {
		act := m.forward([][]byte{m.context(history)}, false)
		tok := byte(m.sampler.Sample(act.logits.RawRowView(0), history))
		history = append(history, tok)
		out = append(out, tok)
	}
	return out, nil
}
