// Copyright 2025 CGDS ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cgd solves the implicit linear systems at the heart of competitive
// gradient descent.
//
// The operator (I + M), with M the product of the two players' cross-Hessian
// blocks, is never materialized: it is accessed only through Hessian-vector
// products obtained by differentiating one player's gradient with respect to
// the other player's parameters.
//
// Example:
//
//	// f = x·y over two scalar players
//	x := autodiff.NewLeaf(2)
//	y := autodiff.NewLeaf(3)
//	f := autodiff.Dot(x, y)
//
//	gradX := autodiff.Grad(f, []*autodiff.Variable{x}, autodiff.GradOptions{CreateGraph: true})[0]
//	gradY := autodiff.Grad(f, []*autodiff.Variable{y}, autodiff.GradOptions{CreateGraph: true})[0]
//
//	// Solve (I + D_xy·D_yx) sol = b, here 2·sol = 1
//	sol, iters, err := cgd.ConjugateGradient(
//	    gradX, gradY,
//	    []*autodiff.Variable{x}, []*autodiff.Variable{y},
//	    tensor.Vector(1),
//	    cgd.SolveOptions{},
//	)
package cgd

import (
	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/cgd"
	"github.com/cgds-ml/cgds/internal/tensor"
)

// Sentinel errors for the fatal failure modes of a solve.
var (
	ErrNonFiniteInput  = cgd.ErrNonFiniteInput
	ErrNonFiniteResult = cgd.ErrNonFiniteResult
	ErrShapeMismatch   = cgd.ErrShapeMismatch
)

// Mode selects how the Hvp oracle acquires gradients.
type Mode = cgd.Mode

// Graph returns the pure, non-mutating oracle mode.
func Graph() Mode { return cgd.Graph() }

// Accumulate returns the backward-accumulation oracle mode used with
// distributed gradient reduction.
func Accumulate(trigger *autodiff.Variable, reducer Reducer, rebuild bool) Mode {
	return cgd.Accumulate(trigger, reducer, rebuild)
}

// Reducer is the distributed gradient-reduction collaborator.
type Reducer = cgd.Reducer

// Preconditioner scales the probe vector around the chained Hvp calls.
type Preconditioner = cgd.Preconditioner

// ScalarLR returns the unscaled preconditioner of the basic solver variant.
func ScalarLR(lrX, lrY float64) Preconditioner { return cgd.ScalarLR(lrX, lrY) }

// SplitLR returns the sqrt-split preconditioner of the general variant.
func SplitLR(lrX, lrY *tensor.Tensor) Preconditioner { return cgd.SplitLR(lrX, lrY) }

// SolveOptions configures a conjugate-gradient solve.
type SolveOptions = cgd.SolveOptions

// HvpVec computes a Hessian-vector product through the autodiff graph.
func HvpVec(gradVec *autodiff.Variable, params []*autodiff.Variable, vec *tensor.Tensor, mode Mode, retainGraph bool) (*tensor.Tensor, error) {
	return cgd.HvpVec(gradVec, params, vec, mode, retainGraph)
}

// VectorizeGrad flattens and clears the accumulated gradient buffers of a
// parameter set.
func VectorizeGrad(params []*autodiff.Variable) *tensor.Tensor {
	return cgd.VectorizeGrad(params)
}

// ConjugateGradient solves (I + M) x = b for the implicit cross-Hessian
// operator M.
func ConjugateGradient(gradX, gradY *autodiff.Variable, xParams, yParams []*autodiff.Variable, b *tensor.Tensor, opts SolveOptions) (*tensor.Tensor, int, error) {
	return cgd.ConjugateGradient(gradX, gradY, xParams, yParams, b, opts)
}
