package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// checkSameLen panics when two tensors that must be conformable are not.
// Shape is deliberately ignored: the solver treats everything as flat vectors.
func checkSameLen(op string, a, b *Tensor) {
	if len(a.data) != len(b.data) {
		panic(fmt.Sprintf("tensor: %s length mismatch: %d vs %d", op, len(a.data), len(b.data)))
	}
}

// Add returns a + b elementwise.
func (t *Tensor) Add(other *Tensor) *Tensor {
	checkSameLen("Add", t, other)
	out := t.Clone()
	floats.Add(out.data, other.data)
	return out
}

// Sub returns a - b elementwise.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	checkSameLen("Sub", t, other)
	out := t.Clone()
	floats.Sub(out.data, other.data)
	return out
}

// Mul returns a * b elementwise.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	checkSameLen("Mul", t, other)
	out := t.Clone()
	floats.Mul(out.data, other.data)
	return out
}

// Div returns a / b elementwise.
func (t *Tensor) Div(other *Tensor) *Tensor {
	checkSameLen("Div", t, other)
	out := t.Clone()
	floats.Div(out.data, other.data)
	return out
}

// Scale returns c * t.
func (t *Tensor) Scale(c float64) *Tensor {
	out := t.Clone()
	floats.Scale(c, out.data)
	return out
}

// Neg returns -t.
func (t *Tensor) Neg() *Tensor {
	return t.Scale(-1)
}

// Sqrt returns the elementwise square root.
func (t *Tensor) Sqrt() *Tensor {
	out := t.Clone()
	for i, v := range out.data {
		out.data[i] = math.Sqrt(v)
	}
	return out
}

// Dot returns the inner product of two tensors viewed as flat vectors.
func (t *Tensor) Dot(other *Tensor) float64 {
	checkSameLen("Dot", t, other)
	return floats.Dot(t.data, other.data)
}

// Norm returns the Euclidean norm.
func (t *Tensor) Norm() float64 {
	return floats.Norm(t.data, 2)
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// AddScaled accumulates alpha * other into t in place and returns t.
// This is the axpy kernel the CG iteration is built on.
func (t *Tensor) AddScaled(alpha float64, other *Tensor) *Tensor {
	checkSameLen("AddScaled", t, other)
	floats.AddScaled(t.data, alpha, other.data)
	return t
}

// Concat concatenates the given tensors, in order, into one flat vector.
func Concat(tensors ...*Tensor) *Tensor {
	total := 0
	for _, t := range tensors {
		total += t.Len()
	}
	out := Zeros(Shape{total})
	offset := 0
	for _, t := range tensors {
		copy(out.data[offset:], t.data)
		offset += t.Len()
	}
	return out
}
