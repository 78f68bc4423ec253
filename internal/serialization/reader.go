package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
)

// Reader gives access to the tensors of a decoded .lmt file.
type Reader struct {
	header Header
	flags  uint32
	data   []byte // checksum-verified data section
}

// Decode reads a complete .lmt stream from r and verifies it.
func Decode(r io.Reader) (*Reader, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[headerSizeOffset : headerSizeOffset+8])
	dataSize := binary.LittleEndian.Uint64(fixed[dataSizeOffset : dataSizeOffset+8])
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize above
	padding := alignedDataOffset(int64(headerSize)) - int64(FixedHeaderSize) - int64(headerSize)
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, fmt.Errorf("failed to read padding: %w", err)
	}

	// Read through a limit so a corrupt size cannot force a huge allocation.
	var data bytes.Buffer
	//nolint:gosec // G115: sizes beyond int64 fail the bounds check below
	n, err := io.Copy(&data, io.LimitReader(r, int64(dataSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if uint64(n) != dataSize {
		return nil, &ValidationError{
			Err:     ErrOutOfBounds,
			Details: fmt.Sprintf("data section truncated: %d of %d bytes", n, dataSize),
		}
	}

	if err := ValidateChecksum(ComputeChecksum(data.Bytes()), stored); err != nil {
		return nil, err
	}
	if err := ValidateHeader(&header, n); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &Reader{header: header, flags: flags, data: data.Bytes()}, nil
}

// Open reads and verifies the .lmt file at path.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// ReadFile reads every tensor and the header of the file at path.
func ReadFile(path string) (map[string]Tensor, Header, error) {
	r, err := Open(path)
	if err != nil {
		return nil, Header{}, err
	}
	tensors, err := r.ReadAll()
	if err != nil {
		return nil, Header{}, err
	}
	return tensors, r.Header(), nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Flags returns the flag bits of the fixed header.
func (r *Reader) Flags() uint32 {
	return r.flags
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns a list of all tensor names in the file.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// Tensor decodes the named tensor.
func (r *Reader) Tensor(name string) (Tensor, error) {
	idx := slices.IndexFunc(r.header.Tensors, func(m TensorMeta) bool { return m.Name == name })
	if idx < 0 {
		return Tensor{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	meta := r.header.Tensors[idx]

	raw := r.data[meta.Offset : meta.Offset+meta.Size]
	values := make([]float64, len(raw)/bytesPerElement)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*bytesPerElement:]))
	}
	return Tensor{Shape: slices.Clone(meta.Shape), Data: values}, nil
}

// ReadAll decodes every tensor into a map keyed by name.
func (r *Reader) ReadAll() (map[string]Tensor, error) {
	out := make(map[string]Tensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.Tensor(meta.Name)
		if err != nil {
			return nil, err
		}
		out[meta.Name] = t
	}
	return out, nil
}
