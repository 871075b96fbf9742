package cgd

import (
	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/tensor"
)

// VectorizeGrad flattens the accumulated gradient buffers of a parameter set
// into one contiguous vector, in parameter order.
//
// A parameter without a gradient buffer contributes zeros of matching size;
// models with partially-unused parameters are legitimate, so absence is not
// an error. Every inspected buffer is cleared so repeated calls never
// double-count.
func VectorizeGrad(params []*autodiff.Variable) *tensor.Tensor {
	pieces := make([]*tensor.Tensor, len(params))
	for i, p := range params {
		if g := p.Grad(); g != nil {
			pieces[i] = g.Flatten()
			p.ClearGrad()
		} else {
			pieces[i] = tensor.Zeros(tensor.Shape{p.Len()})
		}
	}
	return tensor.Concat(pieces...)
}
