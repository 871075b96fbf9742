// Package checkpoint provides the native .cgds format for saving and
// restoring optimizer state.
//
// Format structure:
//
//	[4 bytes: Magic "CGDS"]
//	[4 bytes: Version (uint32 LE)]
//	[8 bytes: Header Size (uint64 LE)]
//	[Header: JSON metadata, includes SHA-256 of the data section]
//	[Data section: float64 LE tensor buffers]
package checkpoint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/cgds-ml/cgds/internal/tensor"
)

// Format constants.
const (
	magicBytes    = "CGDS"
	formatVersion = 1
)

// Common errors.
var (
	ErrInvalidMagic       = errors.New("checkpoint: invalid magic bytes")
	ErrUnsupportedVersion = errors.New("checkpoint: unsupported format version")
	ErrChecksumMismatch   = errors.New("checkpoint: checksum mismatch, file may be corrupted")
	ErrOutOfBounds        = errors.New("checkpoint: tensor extends beyond data section")
)

// State is a snapshot of an optimizer's training state: the step counter
// plus its named tensor buffers.
type State struct {
	Step    int64
	Tensors map[string]*tensor.Tensor
}

// header is the JSON metadata block of a .cgds file.
type header struct {
	FormatVersion int          `json:"format_version"`
	CreatedAt     time.Time    `json:"created_at"`
	Step          int64        `json:"step"`
	DataChecksum  string       `json:"data_checksum"` // SHA-256 of the data section, hex
	Tensors       []tensorMeta `json:"tensors"`
}

// tensorMeta describes one tensor buffer in the data section.
type tensorMeta struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from start of the data section
	Size   int64  `json:"size"`   // bytes
}

// Save writes the state to path atomically: the file is written to a
// temporary sibling first and renamed into place.
func Save(path string, state State) error {
	names := make([]string, 0, len(state.Tensors))
	for name := range state.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	hdr := header{
		FormatVersion: formatVersion,
		CreatedAt:     time.Now().UTC(),
		Step:          state.Step,
	}

	var data []byte
	for _, name := range names {
		t := state.Tensors[name]
		size := int64(8 * t.Len())
		hdr.Tensors = append(hdr.Tensors, tensorMeta{
			Name:   name,
			Shape:  t.Shape(),
			Offset: int64(len(data)),
			Size:   size,
		})
		buf := make([]byte, size)
		for i, v := range t.Data() {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
		}
		data = append(data, buf...)
	}

	sum := sha256.Sum256(data)
	hdr.DataChecksum = hex.EncodeToString(sum[:])

	hdrBytes, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("checkpoint: encoding header: %w", err)
	}

	out := make([]byte, 0, 16+len(hdrBytes)+len(data))
	out = append(out, magicBytes...)
	out = binary.LittleEndian.AppendUint32(out, formatVersion)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(hdrBytes)))
	out = append(out, hdrBytes...)
	out = append(out, data...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("checkpoint: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: renaming into place: %w", err)
	}
	return nil
}

// Load reads a state previously written by Save, validating the magic,
// version and data checksum.
func Load(path string) (State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("checkpoint: reading %s: %w", path, err)
	}
	if len(raw) < 16 || string(raw[:4]) != magicBytes {
		return State{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(raw[4:8]); v != formatVersion {
		return State{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	hdrSize := binary.LittleEndian.Uint64(raw[8:16])
	if 16+hdrSize > uint64(len(raw)) {
		return State{}, ErrOutOfBounds
	}

	var hdr header
	if err := json.Unmarshal(raw[16:16+hdrSize], &hdr); err != nil {
		return State{}, fmt.Errorf("checkpoint: decoding header: %w", err)
	}

	data := raw[16+hdrSize:]
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != hdr.DataChecksum {
		return State{}, ErrChecksumMismatch
	}

	state := State{
		Step:    hdr.Step,
		Tensors: make(map[string]*tensor.Tensor, len(hdr.Tensors)),
	}
	for _, meta := range hdr.Tensors {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(data)) {
			return State{}, fmt.Errorf("%w: tensor %q", ErrOutOfBounds, meta.Name)
		}
		shape := tensor.Shape(meta.Shape)
		if int64(8*shape.Size()) != meta.Size {
			return State{}, fmt.Errorf("checkpoint: tensor %q: shape %v does not match %d bytes", meta.Name, shape, meta.Size)
		}
		buf := data[meta.Offset : meta.Offset+meta.Size]
		values := make([]float64, meta.Size/8)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
		state.Tensors[meta.Name] = tensor.New(values, shape)
	}
	return state, nil
}
