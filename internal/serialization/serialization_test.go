package serialization

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

func sampleTensors() map[string]Tensor {
	return map[string]Tensor{
		"steps":         Vector([]float64{0, 50, 100}),
		"loss":          Vector([]float64{5.5, 3.25, 2.125}),
		"hidden.weight": FromDense(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})),
	}
}

func encode(t *testing.T, header Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, sampleTensors(), header); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return buf.Bytes()
}

// TestRoundTrip writes and reads back tensors and metadata.
func TestRoundTrip(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := encode(t, Header{
		Kind:      KindHistory,
		CreatedAt: created,
		Metadata:  map[string]string{"attn_mode": "LSH"},
	})

	// The float64 payload follows the aligned header.
	dataSize := 0
	for _, tensor := range sampleTensors() {
		dataSize += tensor.NumElements() * 8
	}
	if dataSize != 96 {
		t.Fatalf("sample data size: got %d bytes, want 96", dataSize)
	}
	if (len(raw)-dataSize)%HeaderAlignment != 0 {
		t.Errorf("tensor data should start on a %d-byte boundary", HeaderAlignment)
	}

	r, err := Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	h := r.Header()
	if h.Kind != KindHistory || h.FormatVersion != FormatVersion || h.Producer != producerName {
		t.Errorf("unexpected header: %+v", h)
	}
	if !h.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt: got %v, want %v", h.CreatedAt, created)
	}
	if r.Metadata()["attn_mode"] != "LSH" {
		t.Errorf("metadata lost: %v", r.Metadata())
	}
	if r.Flags()&FlagHasMetadata == 0 {
		t.Error("metadata flag should be set")
	}

	names := r.TensorNames()
	want := []string{"hidden.weight", "loss", "steps"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tensor order: got %v, want %v", names, want)
			break
		}
	}

	loss, err := r.Tensor("loss")
	if err != nil {
		t.Fatalf("Tensor(loss): %v", err)
	}
	for i, v := range []float64{5.5, 3.25, 2.125} {
		if loss.Data[i] != v {
			t.Errorf("loss[%d]: got %v, want %v", i, loss.Data[i], v)
		}
	}

	w, err := r.Tensor("hidden.weight")
	if err != nil {
		t.Fatalf("Tensor(hidden.weight): %v", err)
	}
	dense, err := w.Dense()
	if err != nil {
		t.Fatalf("Dense: %v", err)
	}
	if dense.At(1, 2) != 6 {
		t.Errorf("hidden.weight[1,2]: got %v, want 6", dense.At(1, 2))
	}

	if _, err := r.Tensor("missing"); !errors.Is(err, ErrTensorNotFound) {
		t.Errorf("expected ErrTensorNotFound, got: %v", err)
	}
}

// TestCorruptionDetected flips a byte in the data section.
func TestCorruptionDetected(t *testing.T) {
	raw := encode(t, Header{Kind: KindHistory})
	raw[len(raw)-1] ^= 0xff

	if _, err := Decode(bytes.NewReader(raw)); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got: %v", err)
	}
}

// TestTruncatedData reports a short data section.
func TestTruncatedData(t *testing.T) {
	raw := encode(t, Header{Kind: KindHistory})

	if _, err := Decode(bytes.NewReader(raw[:len(raw)-8])); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got: %v", err)
	}
}

// TestInvalidMagic rejects foreign files.
func TestInvalidMagic(t *testing.T) {
	raw := encode(t, Header{Kind: KindHistory})
	copy(raw, "BORN")

	if _, err := Decode(bytes.NewReader(raw)); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("expected ErrInvalidMagic, got: %v", err)
	}
}

// TestUnsupportedVersion rejects other format versions.
func TestUnsupportedVersion(t *testing.T) {
	raw := encode(t, Header{Kind: KindHistory})
	raw[4] = 9

	if _, err := Decode(bytes.NewReader(raw)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got: %v", err)
	}
}

// TestEncodeRejectsBadTensors validates names and shapes before writing.
func TestEncodeRejectsBadTensors(t *testing.T) {
	var buf bytes.Buffer

	err := Encode(&buf, map[string]Tensor{"a/b": Vector([]float64{1})}, Header{})
	if !errors.Is(err, ErrInvalidTensorName) {
		t.Errorf("expected ErrInvalidTensorName, got: %v", err)
	}

	err = Encode(&buf, map[string]Tensor{"w": {Shape: []int{2, 2}, Data: []float64{1}}}, Header{})
	if !errors.Is(err, ErrInvalidShape) {
		t.Errorf("expected ErrInvalidShape, got: %v", err)
	}
}

// TestCheckpointFlag marks files that carry optimizer state.
func TestCheckpointFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.lmt")
	err := WriteFile(path, sampleTensors(), Header{
		Kind:           KindCheckpoint,
		CheckpointMeta: &CheckpointMeta{Step: 100, Loss: 1.5, OptimizerType: "adam"},
	})
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if r.Flags()&FlagHasOptimizer == 0 {
		t.Error("optimizer flag should be set")
	}
	if meta := r.Header().CheckpointMeta; meta == nil || meta.Step != 100 {
		t.Errorf("checkpoint meta lost: %+v", meta)
	}
}

// TestWriteFileErrors returns the create error and leaves nothing behind.
func TestWriteFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "loss.lmt")
	if err := WriteFile(path, sampleTensors(), Header{}); err == nil {
		t.Error("expected an error for a missing directory")
	}

	dir := t.TempDir()
	path = filepath.Join(dir, "bad.lmt")
	err := WriteFile(path, map[string]Tensor{"": Vector(nil)}, Header{})
	if !errors.Is(err, ErrInvalidTensorName) {
		t.Errorf("expected ErrInvalidTensorName, got: %v", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("partial file should be removed, stat: %v", statErr)
	}
}

// TestReadFile loads every tensor at once.
func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.lmt")
	if err := WriteFile(path, sampleTensors(), Header{Kind: KindHistory}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tensors, header, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(tensors) != 3 || header.Kind != KindHistory {
		t.Errorf("got %d tensors, kind %q", len(tensors), header.Kind)
	}
	if tensors["steps"].NumElements() != 3 {
		t.Errorf("steps: got %d elements", tensors["steps"].NumElements())
	}
}

// TestChecksum covers the SHA-256 helpers.
func TestChecksum(t *testing.T) {
	a := ComputeChecksum([]byte("test data"))
	b := ComputeChecksum([]byte("different data"))
	if a == b {
		t.Error("checksums should differ for different data")
	}
	if err := ValidateChecksum(a, a); err != nil {
		t.Errorf("expected match, got: %v", err)
	}
	if err := ValidateChecksum(a, b); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got: %v", err)
	}
}
