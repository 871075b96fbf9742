// Copyright 2025 CGDS ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensors used throughout CGDS.
//
// Tensors are flat, contiguous buffers with a shape and a device tag. The
// solver treats every tensor as a flat vector; shapes exist so parameter
// buffers keep their layout across flattening and unflattening.
//
// Example:
//
//	b := tensor.Vector(1, 2, 3)
//	x := tensor.Zeros(tensor.Shape{3})
//	x.AddScaled(0.5, b)
package tensor

import (
	"math/rand"

	"github.com/cgds-ml/cgds/internal/tensor"
)

// Tensor is a dense float64 tensor with a contiguous backing buffer.
type Tensor = tensor.Tensor

// Shape describes the dimensions of a tensor.
type Shape = tensor.Shape

// Device represents the compute device a tensor is tagged with.
type Device = tensor.Device

// Supported compute devices.
const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	Vulkan = tensor.Vulkan
	Metal  = tensor.Metal
	WebGPU = tensor.WebGPU
)

// New creates a tensor from an existing buffer without copying.
func New(data []float64, shape Shape) *Tensor { return tensor.New(data, shape) }

// FromSlice creates a tensor by copying the given values.
func FromSlice(data []float64, shape Shape) *Tensor { return tensor.FromSlice(data, shape) }

// Vector creates a 1-D tensor by copying the given values.
func Vector(data ...float64) *Tensor { return tensor.Vector(data...) }

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor { return tensor.Zeros(shape) }

// ZerosLike creates a zero tensor with the same shape and device as t.
func ZerosLike(t *Tensor) *Tensor { return tensor.ZerosLike(t) }

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor { return tensor.Ones(shape) }

// Full creates a tensor filled with the given value.
func Full(shape Shape, value float64) *Tensor { return tensor.Full(shape, value) }

// RandN creates a tensor with standard normal entries drawn from rng.
func RandN(shape Shape, rng *rand.Rand) *Tensor { return tensor.RandN(shape, rng) }

// Concat concatenates the given tensors, in order, into one flat vector.
func Concat(tensors ...*Tensor) *Tensor { return tensor.Concat(tensors...) }
