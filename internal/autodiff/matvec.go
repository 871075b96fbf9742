package autodiff

import (
	"fmt"

	"github.com/cgds-ml/cgds/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// MatVec returns m·x for a constant matrix m.
//
// The matrix is treated as data, not as a graph node: gradients flow only
// through x. The backward rule is the transposed product mᵀ·g, so repeated
// differentiation through MatVec stays exact.
func MatVec(m mat.Matrix, x *Variable) *Variable {
	r, c := m.Dims()
	if c != x.Len() {
		panic(fmt.Sprintf("autodiff: MatVec dimension mismatch: matrix is %dx%d, vector has %d elements", r, c, x.Len()))
	}
	out := tensor.Zeros(tensor.Shape{r})
	dst := mat.NewVecDense(r, out.Data())
	dst.MulVec(m, mat.NewVecDense(c, x.data.Data()))
	return newNode("matvec", out, []*Variable{x},
		func(g *Variable) []*Variable {
			return []*Variable{MatVec(m.T(), g)}
		})
}
