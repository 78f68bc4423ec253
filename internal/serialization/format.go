package serialization

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Format constants.
const (
	MagicBytes       = "LMHT"
	FormatVersion    = 2
	HeaderAlignment  = 64   // Align tensor data to 64 bytes
	FixedHeaderSize  = 64   // Fixed header size (0x40 bytes)
	ChecksumSize     = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset   = 0x20 // Checksum offset in the fixed header
	bytesPerElement  = 8    // float64
	DTypeFloat64     = "float64"
	producerName     = "lmharness"
	headerSizeOffset = 0x10
	dataSizeOffset   = 0x18
)

// Flags for the .lmt format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// File kinds.
const (
	KindHistory    = "history"
	KindCheckpoint = "checkpoint"
)

// Header represents the JSON header in a .lmt file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .lmt format
	Producer       string            `json:"producer"`             // Program that wrote the file
	Kind           string            `json:"kind"`                 // KindHistory or KindCheckpoint
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Checkpoint metadata (optional)
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Step            int            `json:"step"`             // Completed optimizer steps
	Loss            float64        `json:"loss"`             // Last validation loss
	OptimizerType   string         `json:"optimizer_type"`   // "adam" or "sgd"
	OptimizerConfig map[string]any `json:"optimizer_config"` // Optimizer hyperparameters
}

// TensorMeta describes a tensor in the .lmt file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "hidden.weight")
	DType  string `json:"dtype"`  // Always "float64"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// Tensor is a dense float64 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Vector returns a 1-D tensor over values.
func Vector(values []float64) Tensor {
	return Tensor{Shape: []int{len(values)}, Data: values}
}

// FromDense copies a gonum matrix into a 2-D tensor.
func FromDense(m mat.Matrix) Tensor {
	r, c := m.Dims()
	d := mat.DenseCopyOf(m)
	return Tensor{Shape: []int{r, c}, Data: d.RawMatrix().Data}
}

// Dense returns a 2-D tensor as a gonum matrix sharing its data.
func (t Tensor) Dense() (*mat.Dense, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("%w: want 2 dimensions, got shape %v", ErrInvalidShape, t.Shape)
	}
	if t.Shape[0]*t.Shape[1] != len(t.Data) || len(t.Data) == 0 {
		return nil, fmt.Errorf("%w: shape %v holds %d values", ErrInvalidShape, t.Shape, len(t.Data))
	}
	return mat.NewDense(t.Shape[0], t.Shape[1], t.Data), nil
}

// NumElements returns the product of the shape dimensions.
func (t Tensor) NumElements() int {
	return numElements(t.Shape)
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func alignedDataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
