// Copyright 2025 CGDS ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation with
// higher-order support.
//
// Backward rules build graph nodes, so a gradient produced with CreateGraph
// can be differentiated again — the mechanism behind Hessian-vector
// products.
//
// Example:
//
//	x := autodiff.NewLeaf(2)
//	y := autodiff.NewLeaf(3)
//	f := autodiff.Dot(x, y)
//
//	// ∇x f, still attached to the graph
//	gx := autodiff.Grad(f, []*autodiff.Variable{x}, autodiff.GradOptions{
//	    CreateGraph: true,
//	})[0]
//
//	// ∂(∇x f)/∂y contracted with a probe: a Hessian-vector product
//	hv := autodiff.Grad(gx, []*autodiff.Variable{y}, autodiff.GradOptions{
//	    GradOutputs: tensor.Vector(1),
//	})[0]
package autodiff

import (
	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// Variable is a node in the computation graph.
type Variable = autodiff.Variable

// GradOptions configures a call to Grad.
type GradOptions = autodiff.GradOptions

// NewVariable creates a leaf variable holding the given tensor.
func NewVariable(t *tensor.Tensor) *Variable { return autodiff.NewVariable(t) }

// NewLeaf creates a leaf variable from a copy of the given values.
func NewLeaf(data ...float64) *Variable { return autodiff.NewLeaf(data...) }

// Grad differentiates output with respect to inputs. See the internal
// package for the full contract.
func Grad(output *Variable, inputs []*Variable, opts GradOptions) []*Variable {
	return autodiff.Grad(output, inputs, opts)
}

// Backward differentiates output and accumulates into the inputs' gradient
// buffers.
func Backward(output *Variable, gradOutput *tensor.Tensor, inputs []*Variable, retainGraph bool) {
	autodiff.Backward(output, gradOutput, inputs, retainGraph)
}

// ZeroGrad clears the gradient buffers of all given variables.
func ZeroGrad(params []*Variable) { autodiff.ZeroGrad(params) }

// Graph operations.

// Add returns a + b elementwise.
func Add(a, b *Variable) *Variable { return autodiff.Add(a, b) }

// Sub returns a - b elementwise.
func Sub(a, b *Variable) *Variable { return autodiff.Sub(a, b) }

// Mul returns a * b elementwise.
func Mul(a, b *Variable) *Variable { return autodiff.Mul(a, b) }

// Div returns a / b elementwise.
func Div(a, b *Variable) *Variable { return autodiff.Div(a, b) }

// Neg returns -a.
func Neg(a *Variable) *Variable { return autodiff.Neg(a) }

// Scale returns c * a for a constant scalar c.
func Scale(a *Variable, c float64) *Variable { return autodiff.Scale(a, c) }

// Sqrt returns the elementwise square root of a.
func Sqrt(a *Variable) *Variable { return autodiff.Sqrt(a) }

// Sum reduces a to a single-element variable.
func Sum(a *Variable) *Variable { return autodiff.Sum(a) }

// Expand broadcasts a single-element variable to a vector of length n.
func Expand(a *Variable, n int) *Variable { return autodiff.Expand(a, n) }

// Dot returns the inner product of a and b as a single-element variable.
func Dot(a, b *Variable) *Variable { return autodiff.Dot(a, b) }

// Concat concatenates variables, in order, into one flat vector.
func Concat(vs ...*Variable) *Variable { return autodiff.Concat(vs...) }

// Slice returns the elements of a in the half-open range [lo, hi).
func Slice(a *Variable, lo, hi int) *Variable { return autodiff.Slice(a, lo, hi) }

// MatVec returns m·x for a constant matrix m.
func MatVec(m mat.Matrix, x *Variable) *Variable { return autodiff.MatVec(m, x) }

// VariablesSize returns the total flattened element count of a parameter set.
func VariablesSize(params []*Variable) int { return autodiff.VariablesSize(params) }
