package autodiff

import (
	"fmt"

	"github.com/cgds-ml/cgds/internal/tensor"
)

// GradOptions configures a call to Grad.
type GradOptions struct {
	// GradOutputs is the cotangent seeding the backward pass. It must match
	// the output's flattened length. When nil, the output must be a single
	// element and the seed is 1.
	GradOutputs *tensor.Tensor

	// RetainGraph keeps the graph alive so it can be differentiated again.
	// Defaults to the value of CreateGraph.
	RetainGraph bool

	// CreateGraph makes the returned gradients themselves differentiable.
	CreateGraph bool

	// AllowUnused returns nil for inputs the output does not depend on
	// instead of panicking.
	AllowUnused bool
}

// Grad differentiates output with respect to inputs and returns one gradient
// per input, in input order.
//
// Grad is pure: it never touches gradient buffers. With CreateGraph the
// results are graph nodes and can be differentiated again; otherwise they are
// detached leaves. Inputs the output does not depend on yield nil when
// AllowUnused is set and panic otherwise.
func Grad(output *Variable, inputs []*Variable, opts GradOptions) []*Variable {
	seed := seedVariable(output, opts.GradOutputs)
	retain := opts.RetainGraph || opts.CreateGraph
	grads := backprop(output, seed, retain)

	results := make([]*Variable, len(inputs))
	for i, in := range inputs {
		g, ok := grads[in]
		if !ok {
			if !opts.AllowUnused {
				panic(fmt.Sprintf("autodiff: input %d is not part of the graph (set AllowUnused to receive nil gradients)", i))
			}
			continue
		}
		if opts.CreateGraph {
			results[i] = g
		} else {
			results[i] = g.Detach()
		}
	}
	return results
}

// Backward differentiates output seeded with gradOutput and accumulates the
// results into the .Grad buffers of the given inputs.
//
// Unlike Grad, Backward mutates state: each reached input's buffer is
// created or added to. Inputs the output does not depend on are left
// untouched, which leaves cleared buffers absent rather than zero.
func Backward(output *Variable, gradOutput *tensor.Tensor, inputs []*Variable, retainGraph bool) {
	seed := seedVariable(output, gradOutput)
	grads := backprop(output, seed, retainGraph)
	for _, in := range inputs {
		if g, ok := grads[in]; ok {
			in.accumGrad(g.data)
		}
	}
}

// ZeroGrad clears the gradient buffers of all given variables.
func ZeroGrad(params []*Variable) {
	for _, p := range params {
		p.ClearGrad()
	}
}

// seedVariable validates and wraps the cotangent for a backward pass.
func seedVariable(output *Variable, gradOutput *tensor.Tensor) *Variable {
	if gradOutput == nil {
		if output.Len() != 1 {
			panic(fmt.Sprintf("autodiff: implicit seed requires a scalar output, got %d elements", output.Len()))
		}
		return NewVariable(tensor.Ones(tensor.Shape{1}))
	}
	if gradOutput.Len() != output.Len() {
		panic(fmt.Sprintf("autodiff: cotangent length %d does not match output length %d", gradOutput.Len(), output.Len()))
	}
	return NewVariable(gradOutput)
}

// backprop walks the graph below root in reverse topological order,
// accumulating one gradient Variable per reached node.
//
// When retainGraph is false the visited interior nodes are freed: their
// edges and backward rules are dropped, and a later pass over the same graph
// panics instead of silently producing zeros.
func backprop(root, seed *Variable, retainGraph bool) map[*Variable]*Variable {
	order := topoSort(root)

	grads := make(map[*Variable]*Variable, len(order))
	grads[root] = seed

	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		g, ok := grads[v]
		if !ok || v.vjp == nil {
			continue
		}
		inputGrads := v.vjp(g)
		for j, in := range v.inputs {
			ig := inputGrads[j]
			if ig == nil {
				continue
			}
			if existing, ok := grads[in]; ok {
				grads[in] = Add(existing, ig)
			} else {
				grads[in] = ig
			}
		}
	}

	if !retainGraph {
		for _, v := range order {
			if v.vjp != nil {
				v.freed = true
				v.inputs = nil
				v.vjp = nil
			}
		}
	}
	return grads
}

// topoSort returns the nodes reachable from root in topological order
// (inputs before consumers).
func topoSort(root *Variable) []*Variable {
	visited := make(map[*Variable]bool)
	var order []*Variable
	var visit func(v *Variable)
	visit = func(v *Variable) {
		if visited[v] {
			return
		}
		visited[v] = true
		if v.freed {
			panic("autodiff: graph has already been freed; differentiate with RetainGraph to reuse it")
		}
		for _, in := range v.inputs {
			visit(in)
		}
		order = append(order, v)
	}
	visit(root)
	return order
}
