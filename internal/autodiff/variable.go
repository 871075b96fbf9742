// Package autodiff implements reverse-mode automatic differentiation with
// support for higher-order derivatives.
//
// Unlike a plain gradient tape, backward rules here are expressed in terms of
// graph operations themselves: the gradient of a Variable is another Variable
// attached to the graph. Differentiating a gradient a second time is therefore
// an ordinary backward pass, which is what a Hessian-vector product is.
package autodiff

import (
	"fmt"

	"github.com/cgds-ml/cgds/internal/tensor"
)

// Variable is a node in the computation graph.
//
// Leaf variables hold parameters or constants; interior nodes additionally
// carry the operation that produced them and a vector-Jacobian-product rule
// used during the backward pass. The vjp rule builds Variables, so gradients
// remain differentiable.
type Variable struct {
	data   *tensor.Tensor
	grad   *tensor.Tensor // accumulated by Backward; nil until first write
	op     string
	inputs []*Variable
	vjp    func(g *Variable) []*Variable
	freed  bool
}

// NewVariable creates a leaf variable holding the given tensor.
// The tensor is used directly, not copied.
func NewVariable(t *tensor.Tensor) *Variable {
	return &Variable{data: t, op: "leaf"}
}

// NewLeaf creates a leaf variable from a copy of the given values.
func NewLeaf(data ...float64) *Variable {
	return NewVariable(tensor.Vector(data...))
}

// newNode creates an interior graph node.
func newNode(op string, data *tensor.Tensor, inputs []*Variable, vjp func(g *Variable) []*Variable) *Variable {
	return &Variable{data: data, op: op, inputs: inputs, vjp: vjp}
}

// Data returns the variable's value tensor.
func (v *Variable) Data() *tensor.Tensor { return v.data }

// Grad returns the accumulated gradient buffer, or nil when none has been
// written. Only Backward writes gradient buffers; Grad never does.
func (v *Variable) Grad() *tensor.Tensor { return v.grad }

// ClearGrad detaches and removes the gradient buffer.
func (v *Variable) ClearGrad() { v.grad = nil }

// accumGrad adds g into the variable's gradient buffer, allocating it on
// first use so cleared buffers never alias earlier results.
func (v *Variable) accumGrad(g *tensor.Tensor) {
	if v.grad == nil {
		v.grad = g.Clone()
		return
	}
	v.grad.AddScaled(1, g)
}

// Len returns the number of elements in the variable's value.
func (v *Variable) Len() int { return v.data.Len() }

// Shape returns the shape of the variable's value.
func (v *Variable) Shape() tensor.Shape { return v.data.Shape() }

// Item returns the value of a single-element variable.
func (v *Variable) Item() float64 {
	if v.data.Len() != 1 {
		panic(fmt.Sprintf("autodiff: Item on variable with %d elements", v.data.Len()))
	}
	return v.data.At(0)
}

// IsLeaf reports whether the variable has no graph history.
func (v *Variable) IsLeaf() bool { return v.vjp == nil }

// Detach returns a leaf variable sharing this variable's value but carrying
// no graph history. Gradients do not flow through a detached variable.
func (v *Variable) Detach() *Variable {
	return NewVariable(v.data)
}

// String renders the variable for debugging.
func (v *Variable) String() string {
	return fmt.Sprintf("Variable(op=%s, %v)", v.op, v.data)
}

// VariablesSize returns the total flattened element count of a parameter set.
func VariablesSize(params []*Variable) int {
	total := 0
	for _, p := range params {
		total += p.Len()
	}
	return total
}
