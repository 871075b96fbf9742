// Copyright 2025 CGDS ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cgd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgds-ml/cgds/autodiff"
	"github.com/cgds-ml/cgds/cgd"
	"github.com/cgds-ml/cgds/tensor"
)

// The doc-comment scenario end to end: f = x·y over two scalar players,
// where the implicit operator collapses to I + 1 = 2.
func TestSolveScalarGame(t *testing.T) {
	x := autodiff.NewLeaf(2)
	y := autodiff.NewLeaf(3)
	f := autodiff.Dot(x, y)

	gradX := autodiff.Grad(f, []*autodiff.Variable{x}, autodiff.GradOptions{CreateGraph: true})[0]
	gradY := autodiff.Grad(f, []*autodiff.Variable{y}, autodiff.GradOptions{CreateGraph: true})[0]

	sol, iters, err := cgd.ConjugateGradient(
		gradX, gradY,
		[]*autodiff.Variable{x}, []*autodiff.Variable{y},
		tensor.Vector(1),
		cgd.SolveOptions{},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sol.At(0), 1e-12)
	assert.LessOrEqual(t, iters, 2)
}

func TestHvpVecThroughPublicAPI(t *testing.T) {
	x := autodiff.NewLeaf(1, 1)
	y := autodiff.NewLeaf(2, 5)
	f := autodiff.Dot(x, y)
	gradX := autodiff.Grad(f, []*autodiff.Variable{x}, autodiff.GradOptions{CreateGraph: true})[0]

	// gradX = y, so the product with a probe v is just v.
	hvp, err := cgd.HvpVec(gradX, []*autodiff.Variable{y}, tensor.Vector(3, -4), cgd.Graph(), false)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, -4}, hvp.Data())
}

func TestVectorizeGradThroughPublicAPI(t *testing.T) {
	a := autodiff.NewLeaf(1, 2)
	out := autodiff.Sum(autodiff.Scale(a, 3))
	autodiff.Backward(out, nil, []*autodiff.Variable{a}, false)

	vec := cgd.VectorizeGrad([]*autodiff.Variable{a})
	assert.Equal(t, []float64{3, 3}, vec.Data())
	assert.Nil(t, a.Grad(), "vectorizing consumes the buffers")
}
