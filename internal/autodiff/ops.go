package autodiff

import (
	"fmt"

	"github.com/cgds-ml/cgds/internal/tensor"
)

// Elementwise and structural graph operations.
//
// Every rule returns one gradient Variable per input, built from the same
// operations, which is what keeps second derivatives available.

func checkConformable(op string, a, b *Variable) {
	if a.Len() != b.Len() {
		panic(fmt.Sprintf("autodiff: %s length mismatch: %d vs %d", op, a.Len(), b.Len()))
	}
}

// Add returns a + b elementwise.
func Add(a, b *Variable) *Variable {
	checkConformable("Add", a, b)
	return newNode("add", a.data.Add(b.data), []*Variable{a, b},
		func(g *Variable) []*Variable {
			return []*Variable{g, g}
		})
}

// Sub returns a - b elementwise.
func Sub(a, b *Variable) *Variable {
	checkConformable("Sub", a, b)
	return newNode("sub", a.data.Sub(b.data), []*Variable{a, b},
		func(g *Variable) []*Variable {
			return []*Variable{g, Neg(g)}
		})
}

// Mul returns a * b elementwise.
func Mul(a, b *Variable) *Variable {
	checkConformable("Mul", a, b)
	return newNode("mul", a.data.Mul(b.data), []*Variable{a, b},
		func(g *Variable) []*Variable {
			return []*Variable{Mul(g, b), Mul(g, a)}
		})
}

// Div returns a / b elementwise.
func Div(a, b *Variable) *Variable {
	checkConformable("Div", a, b)
	out := newNode("div", a.data.Div(b.data), []*Variable{a, b}, nil)
	out.vjp = func(g *Variable) []*Variable {
		// d(a/b)/da = 1/b, d(a/b)/db = -a/b² = -out/b
		return []*Variable{Div(g, b), Neg(Mul(g, Div(out, b)))}
	}
	return out
}

// Neg returns -a.
func Neg(a *Variable) *Variable {
	return Scale(a, -1)
}

// Scale returns c * a for a constant scalar c.
func Scale(a *Variable, c float64) *Variable {
	return newNode("scale", a.data.Scale(c), []*Variable{a},
		func(g *Variable) []*Variable {
			return []*Variable{Scale(g, c)}
		})
}

// Sqrt returns the elementwise square root of a.
func Sqrt(a *Variable) *Variable {
	out := newNode("sqrt", a.data.Sqrt(), []*Variable{a}, nil)
	out.vjp = func(g *Variable) []*Variable {
		// d(√a)/da = 1/(2√a) = 1/(2·out)
		return []*Variable{Scale(Div(g, out), 0.5)}
	}
	return out
}

// Sum reduces a to a single-element variable.
func Sum(a *Variable) *Variable {
	n := a.Len()
	return newNode("sum", tensor.Vector(a.data.Sum()), []*Variable{a},
		func(g *Variable) []*Variable {
			return []*Variable{Expand(g, n)}
		})
}

// Expand broadcasts a single-element variable to a vector of length n.
func Expand(a *Variable, n int) *Variable {
	if a.Len() != 1 {
		panic(fmt.Sprintf("autodiff: Expand requires a scalar, got %d elements", a.Len()))
	}
	return newNode("expand", tensor.Full(tensor.Shape{n}, a.data.At(0)), []*Variable{a},
		func(g *Variable) []*Variable {
			return []*Variable{Sum(g)}
		})
}

// Dot returns the inner product of a and b as a single-element variable.
func Dot(a, b *Variable) *Variable {
	return Sum(Mul(a, b))
}

// Concat concatenates variables, in order, into one flat vector.
func Concat(vs ...*Variable) *Variable {
	if len(vs) == 0 {
		panic("autodiff: Concat of no variables")
	}
	if len(vs) == 1 {
		return vs[0]
	}
	tensors := make([]*tensor.Tensor, len(vs))
	for i, v := range vs {
		tensors[i] = v.data
	}
	offsets := make([]int, len(vs)+1)
	for i, v := range vs {
		offsets[i+1] = offsets[i] + v.Len()
	}
	return newNode("concat", tensor.Concat(tensors...), vs,
		func(g *Variable) []*Variable {
			grads := make([]*Variable, len(vs))
			for i := range vs {
				grads[i] = Slice(g, offsets[i], offsets[i+1])
			}
			return grads
		})
}

// Slice returns the elements of a in the half-open range [lo, hi).
func Slice(a *Variable, lo, hi int) *Variable {
	if lo < 0 || hi > a.Len() || lo > hi {
		panic(fmt.Sprintf("autodiff: Slice [%d, %d) out of range for %d elements", lo, hi, a.Len()))
	}
	n := a.Len()
	data := tensor.FromSlice(a.data.Data()[lo:hi], tensor.Shape{hi - lo})
	return newNode("slice", data, []*Variable{a},
		func(g *Variable) []*Variable {
			return []*Variable{pad(g, lo, n)}
		})
}

// pad embeds g into a zero vector of length n starting at offset lo.
func pad(g *Variable, lo, n int) *Variable {
	m := g.Len()
	data := tensor.Zeros(tensor.Shape{n})
	copy(data.Data()[lo:lo+m], g.data.Data())
	return newNode("pad", data, []*Variable{g},
		func(gg *Variable) []*Variable {
			return []*Variable{Slice(gg, lo, lo+m)}
		})
}
