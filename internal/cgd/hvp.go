package cgd

import (
	"fmt"

	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/tensor"
)

// Mode selects how the Hvp oracle acquires gradients.
//
// Graph mode differentiates through the retained graph and is pure.
// Accumulate mode runs a backward pass into the parameters' gradient
// buffers; it is the only mode that drives a distributed reducer and must be
// used whenever one is present, because graph mode bypasses gradient
// synchronization entirely.
type Mode struct {
	accumulate bool
	trigger    *autodiff.Variable
	reducer    Reducer
	rebuild    bool
}

// Graph returns the pure, non-mutating oracle mode.
func Graph() Mode {
	return Mode{}
}

// Accumulate returns the backward-accumulation oracle mode.
//
// trigger is an opaque scalar that is folded into the backward graph with
// zero weight so the reducer's communication hook fires deterministically.
// reducer may be nil for single-process accumulation. rebuild requests the
// reducer's one-time bucket construction and should be true only for the
// first operator application of a training step.
func Accumulate(trigger *autodiff.Variable, reducer Reducer, rebuild bool) Mode {
	return Mode{accumulate: true, trigger: trigger, reducer: reducer, rebuild: rebuild}
}

// IsAccumulate reports whether the mode runs backward accumulation.
func (m Mode) IsAccumulate() bool { return m.accumulate }

// HvpVec computes a Hessian-vector product: the derivative of gradVec with
// respect to params, contracted with the probe vector vec.
//
// gradVec must still be attached to a live graph (differentiate the loss with
// CreateGraph). The probe seeds the backward pass, so its length must equal
// gradVec's; the result's length equals the total flattened size of params.
// Parameters gradVec does not depend on contribute zeros: a structurally-zero
// cross-Hessian block is a valid state, not an error.
//
// Fails with ErrNonFiniteInput when gradVec or vec contains NaN, and with
// ErrNonFiniteResult when the product does — the latter typically signals
// upstream divergence.
func HvpVec(gradVec *autodiff.Variable, params []*autodiff.Variable, vec *tensor.Tensor, mode Mode, retainGraph bool) (*tensor.Tensor, error) {
	if gradVec.Data().HasNaN() {
		return nil, fmt.Errorf("%w: gradient vector contains NaN", ErrNonFiniteInput)
	}
	if vec.HasNaN() {
		return nil, fmt.Errorf("%w: probe vector contains NaN", ErrNonFiniteInput)
	}
	if vec.Len() != gradVec.Len() {
		panic(fmt.Sprintf("cgd: probe vector length %d does not match gradient vector length %d",
			vec.Len(), gradVec.Len()))
	}

	var hvp *tensor.Tensor
	if mode.accumulate {
		hvp = hvpAccumulate(gradVec, params, vec, mode, retainGraph)
	} else {
		hvp = hvpGraph(gradVec, params, vec, retainGraph)
	}

	if hvp.HasNaN() {
		return nil, fmt.Errorf("%w: Hessian-vector product contains NaN", ErrNonFiniteResult)
	}
	return hvp, nil
}

// hvpGraph is the pure path: a second differentiation pass through the
// retained graph, with no gradient-buffer mutation.
func hvpGraph(gradVec *autodiff.Variable, params []*autodiff.Variable, vec *tensor.Tensor, retainGraph bool) *tensor.Tensor {
	grads := autodiff.Grad(gradVec, params, autodiff.GradOptions{
		GradOutputs: vec,
		RetainGraph: retainGraph,
		AllowUnused: true,
	})
	pieces := make([]*tensor.Tensor, len(params))
	for i, g := range grads {
		if g == nil {
			pieces[i] = tensor.Zeros(tensor.Shape{params[i].Len()})
		} else {
			pieces[i] = g.Data().Flatten()
		}
	}
	return tensor.Concat(pieces...)
}

// hvpAccumulate is the backward path: gradients land in the parameters'
// buffers, the reducer observes the pass, and the buffers are vectorized
// and cleared afterwards.
func hvpAccumulate(gradVec *autodiff.Variable, params []*autodiff.Variable, vec *tensor.Tensor, mode Mode, retainGraph bool) *tensor.Tensor {
	autodiff.ZeroGrad(params)

	if mode.reducer != nil {
		if mode.rebuild {
			if err := mode.reducer.RebuildBuckets(); err != nil {
				panic(fmt.Sprintf("cgd: reducer bucket rebuild failed: %v", err))
			}
		}
		mode.reducer.PrepareForBackward(nil)
	}

	seed := gradVec
	if mode.trigger != nil {
		// Algebraically inert: 0·trigger keeps the trigger scalar in the
		// backward graph so the reduction hook fires.
		seed = autodiff.Add(gradVec, autodiff.Scale(autodiff.Expand(mode.trigger, gradVec.Len()), 0))
	}

	autodiff.Backward(seed, vec, params, retainGraph)
	return VectorizeGrad(params)
}
