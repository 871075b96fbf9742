// Package tensor implements the flat float64 tensors the solver operates on.
//
// Every tensor is a contiguous []float64 buffer plus a shape. The competitive
// gradient engine only ever needs dense vectors and per-parameter buffers, so
// there is no stride/view machinery: reshaping is free and all math is BLAS-1.
package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Device represents the compute device a tensor is tagged with.
//
// The engine executes on the CPU; the tag is carried through so callers can
// route buffers produced here to an accelerator-backed outer loop.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// Tensor is a dense float64 tensor with a contiguous backing buffer.
type Tensor struct {
	shape  Shape
	data   []float64
	device Device
}

// New creates a tensor from an existing buffer. The buffer is used directly,
// not copied. Panics if the buffer length does not match the shape.
func New(data []float64, shape Shape) *Tensor {
	if len(data) != shape.Size() {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v (size %d)",
			len(data), shape, shape.Size()))
	}
	return &Tensor{shape: shape, data: data}
}

// FromSlice creates a tensor by copying the given values.
func FromSlice(data []float64, shape Shape) *Tensor {
	buf := make([]float64, len(data))
	copy(buf, data)
	return New(buf, shape)
}

// Vector creates a 1-D tensor by copying the given values.
func Vector(data ...float64) *Tensor {
	return FromSlice(data, Shape{len(data)})
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor {
	return &Tensor{shape: shape, data: make([]float64, shape.Size())}
}

// ZerosLike creates a zero tensor with the same shape and device as t.
func ZerosLike(t *Tensor) *Tensor {
	out := Zeros(t.shape)
	out.device = t.device
	return out
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a tensor filled with the given value.
func Full(shape Shape, value float64) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// RandN creates a tensor with standard normal entries drawn from rng.
func RandN(shape Shape, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = rng.NormFloat64()
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape { return t.shape }

// Device returns the device tag.
func (t *Tensor) Device() Device { return t.device }

// To returns t tagged with the given device. The data is shared, not moved;
// execution stays on the CPU.
func (t *Tensor) To(d Device) *Tensor {
	return &Tensor{shape: t.shape, data: t.data, device: d}
}

// Len returns the total number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Data returns the backing buffer. Mutations are visible to the tensor.
func (t *Tensor) Data() []float64 { return t.data }

// At returns the i-th element in flat order.
func (t *Tensor) At(i int) float64 { return t.data[i] }

// Set assigns the i-th element in flat order.
func (t *Tensor) Set(i int, v float64) { t.data[i] = v }

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{shape: t.shape.Clone(), data: make([]float64, len(t.data)), device: t.device}
	copy(out.data, t.data)
	return out
}

// Flatten returns a 1-D tensor sharing t's buffer.
func (t *Tensor) Flatten() *Tensor {
	return &Tensor{shape: Shape{len(t.data)}, data: t.data, device: t.device}
}

// HasNaN reports whether any element is NaN.
func (t *Tensor) HasNaN() bool {
	for _, v := range t.data {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// String renders the tensor for debugging.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, data=%v)", t.shape, t.data)
}
