package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/lmharness/internal/errs"
	"github.com/born-ml/lmharness/internal/nn"
	"github.com/born-ml/lmharness/internal/optim"
	"github.com/born-ml/lmharness/internal/train"
)

func testID() RunID {
	return RunID{
		AttnMode: "LSH",
		Hashes:   1,
		Started:  time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
	}
}

func testHistory() *train.History {
	h := train.NewHistory()
	h.Record(0, 5.5)
	h.Record(50, 3.0)
	h.Record(100, 2.25)
	return h
}

func TestRunIDString(t *testing.T) {
	assert.Equal(t, "LSH_hash=1_20240309_140507", testID().String())

	id := RunID{AttnMode: "full", Hashes: 4, Started: time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)}
	assert.Equal(t, "full_hash=4_20231231_235959", id.String())
}

func TestFinalize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saved_figures")

	art, err := Finalize(testHistory(), dir, testID(), 50)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "loss_graph_LSH_hash=1_20240309_140507.png"), art.Plot)
	assert.Equal(t, filepath.Join(dir, "loss_LSH_hash=1_20240309_140507.lmt"), art.History)

	png, err := os.ReadFile(art.Plot)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "plot should be a PNG")

	saved, err := ReadHistory(art.History)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 50, 100}, saved.Steps())
	assert.Equal(t, []float64{5.5, 3.0, 2.25}, saved.Values())
	assert.Equal(t, "50", saved.Metadata["validate_every"])
	assert.Equal(t, "LSH", saved.Metadata["attn_mode"])
	assert.Equal(t, "1", saved.Metadata["hashes"])
}

func TestFinalizeEmptyHistory(t *testing.T) {
	art, err := Finalize(train.NewHistory(), t.TempDir(), testID(), 0)
	require.NoError(t, err)

	saved, err := ReadHistory(art.History)
	require.NoError(t, err)
	assert.Zero(t, saved.Len())
}

func TestFinalizeIOError(t *testing.T) {
	// A regular file where the output directory should be.
	blocker := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := Finalize(testHistory(), blocker, testID(), 50)
	assert.ErrorIs(t, err, errs.ErrIO)

	_, err = Finalize(testHistory(), filepath.Join(blocker, "sub"), testID(), 50)
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestReadHistoryErrors(t *testing.T) {
	_, err := ReadHistory(filepath.Join(t.TempDir(), "missing.lmt"))
	assert.ErrorIs(t, err, errs.ErrIO)

	dir := t.TempDir()
	path, err := SaveCheckpoint(dir, testID(), newModule(), optim.NewSGD(nil, optim.SGDConfig{LR: 0.1}), Checkpoint{})
	require.NoError(t, err)
	_, err = ReadHistory(path)
	assert.Error(t, err, "a checkpoint is not a history")
}

type module struct {
	params []*nn.Parameter
}

func (m *module) Parameters() []*nn.Parameter { return m.params }

func newModule() *module {
	return &module{params: []*nn.Parameter{
		nn.NewParameter("hidden.weight", mat.NewDense(2, 2, []float64{1, 2, 3, 4})),
		nn.NewParameter("out.bias", mat.NewDense(1, 3, []float64{0.5, 0, -0.5})),
	}}
}

func TestCheckpointRoundTrip(t *testing.T) {
	m := newModule()
	opt := optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: 1e-3})
	for _, p := range m.Parameters() {
		r, c := p.Value().Dims()
		p.AccumulateGrad(mat.NewDense(r, c, nil))
	}
	opt.Step()

	dir := t.TempDir()
	path, err := SaveCheckpoint(dir, testID(), m, opt, Checkpoint{
		Step:      100,
		Loss:      2.5,
		Optimizer: "adam",
		Metadata:  map[string]string{"model.context": "8"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model_LSH_hash=1_20240309_140507.lmt"), path)

	state, ck, err := LoadCheckpoint(path)
	require.NoError(t, err)

	assert.Len(t, state, 2, "optimizer buffers are skipped")
	assert.True(t, mat.Equal(m.params[0].Value(), state["hidden.weight"]))
	assert.True(t, mat.Equal(m.params[1].Value(), state["out.bias"]))
	assert.Equal(t, 100, ck.Step)
	assert.Equal(t, 2.5, ck.Loss)
	assert.Equal(t, "adam", ck.Optimizer)
	assert.Equal(t, "8", ck.Metadata["model.context"])
	assert.Equal(t, testID().String(), ck.Metadata["run_id"])
}

func TestLoadCheckpointRejectsHistory(t *testing.T) {
	art, err := Finalize(testHistory(), t.TempDir(), testID(), 50)
	require.NoError(t, err)

	_, _, err = LoadCheckpoint(art.History)
	assert.Error(t, err)
}

func TestConsoleWithoutProgress(t *testing.T) {
	var logs, out bytes.Buffer
	c := NewConsole(log.New(&logs), &out, 0)

	c.TrainLoss(3, 4.25)
	c.Validation(50, 3.5)
	c.Sample(100, "prime text", "generated text")
	require.NoError(t, c.Close())

	assert.Contains(t, logs.String(), "training")
	assert.Contains(t, logs.String(), "validation")
	assert.Contains(t, out.String(), "prime text")
	assert.Contains(t, out.String(), "generated text")
	assert.Contains(t, out.String(), sampleRule)
}

func TestConsoleWithProgress(t *testing.T) {
	var logs, out bytes.Buffer
	c := NewConsole(log.New(&logs), &out, 3)

	for i := range 3 {
		c.TrainLoss(i, 1.0)
	}
	require.NoError(t, c.Close())

	assert.Equal(t, 3, strings.Count(logs.String(), "training"), "every step is logged alongside the bar")
	assert.Contains(t, logs.String(), "loss=1")
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("terminal gone") }

func TestConsoleProgressWriteFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := log.New(&logs)
	logger.SetLevel(log.DebugLevel)
	c := NewConsole(logger, brokenWriter{}, 2)

	assert.NotPanics(t, func() {
		c.TrainLoss(0, 2.5)
		c.TrainLoss(1, 2.0)
	})
	assert.Equal(t, 2, strings.Count(logs.String(), "INFO training"))
	assert.NotContains(t, logs.String(), "ERRO", "bar failures are never reported above debug")
}
