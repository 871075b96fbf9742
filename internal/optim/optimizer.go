// Package optim implements the competitive (two-player) optimizers that
// drive the cgd solver.
//
// Both optimizers follow the zero-sum convention of competitive gradient
// descent: the x player minimizes the loss, the y player maximizes it, and
// each player's update anticipates the other's through the cross-Hessian
// terms solved for by conjugate gradient.
//
// Example usage:
//
//	opt := optim.NewACGD(xParams, yParams, optim.ACGDConfig{LR: 0.01})
//
//	for step := 0; step < steps; step++ {
//	    loss := buildLoss(xParams, yParams) // autodiff graph
//	    if err := opt.Step(loss); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"gonum.org/v1/gonum/floats"

	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/tensor"
)

// Optimizer is the interface shared by the competitive optimizers.
type Optimizer interface {
	// Step performs one simultaneous update of both players given the
	// current loss, which must be a single-element graph variable.
	Step(loss *autodiff.Variable) error

	// ZeroGrad clears any gradient buffers left on the parameters.
	ZeroGrad()

	// GetLR returns the base learning rate.
	GetLR() float64
}

// flatGrad differentiates loss with respect to params and concatenates the
// per-parameter gradients into one flat graph variable. The result stays
// attached to the graph so it can be differentiated again by the Hvp oracle.
// Parameters the loss does not depend on contribute zeros.
func flatGrad(loss *autodiff.Variable, params []*autodiff.Variable) *autodiff.Variable {
	grads := autodiff.Grad(loss, params, autodiff.GradOptions{
		CreateGraph: true,
		AllowUnused: true,
	})
	pieces := make([]*autodiff.Variable, len(grads))
	for i, g := range grads {
		if g == nil {
			pieces[i] = autodiff.NewVariable(tensor.Zeros(tensor.Shape{params[i].Len()}))
		} else {
			pieces[i] = g
		}
	}
	return autodiff.Concat(pieces...)
}

// applyUpdate adds sign * delta to the parameter values, consuming delta
// segment by segment in parameter order.
func applyUpdate(params []*autodiff.Variable, delta *tensor.Tensor, sign float64) {
	offset := 0
	for _, p := range params {
		n := p.Len()
		floats.AddScaled(p.Data().Data(), sign, delta.Data()[offset:offset+n])
		offset += n
	}
}
