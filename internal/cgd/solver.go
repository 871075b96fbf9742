package cgd

import (
	"fmt"

	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/tensor"
)

// Preconditioner scales the probe vector around the two chained Hvp calls of
// one operator application. The three hooks correspond to the three scaling
// points of the system (I + S_pre · D_xy · S_mid · D_yx · S_probe) x = b.
type Preconditioner interface {
	// Probe scales the probe before the first Hvp call. Must not mutate p.
	Probe(p *tensor.Tensor) *tensor.Tensor
	// Mid scales the intermediate result between the two Hvp calls.
	Mid(h *tensor.Tensor) *tensor.Tensor
	// Post scales the result of the second Hvp call.
	Post(h *tensor.Tensor) *tensor.Tensor
}

// scalarLR is the unscaled variant: A = I + lrX·D_xy·lrY·D_yx.
type scalarLR struct {
	lrX, lrY float64
}

// ScalarLR returns the preconditioner of the basic solver variant, applying
// plain scalar learning rates after each Hvp call.
func ScalarLR(lrX, lrY float64) Preconditioner {
	return scalarLR{lrX: lrX, lrY: lrY}
}

func (s scalarLR) Probe(p *tensor.Tensor) *tensor.Tensor { return p }
func (s scalarLR) Mid(h *tensor.Tensor) *tensor.Tensor   { return h.Scale(s.lrY) }
func (s scalarLR) Post(h *tensor.Tensor) *tensor.Tensor  { return h.Scale(s.lrX) }

// splitLR is the general variant: A = I + √lrX·D_xy·lrY·D_yx·√lrX.
//
// Splitting lrX across both sides keeps the effective operator close to
// symmetric positive semi-definite even when the learning-rate vectors
// differ elementwise, which CG's convergence argument relies on.
type splitLR struct {
	sqrtLrX *tensor.Tensor
	lrY     *tensor.Tensor
}

// SplitLR returns the preconditioner of the general solver variant. lrX and
// lrY are flat non-negative learning-rate vectors for the respective players.
func SplitLR(lrX, lrY *tensor.Tensor) Preconditioner {
	return splitLR{sqrtLrX: lrX.Sqrt(), lrY: lrY}
}

func (s splitLR) Probe(p *tensor.Tensor) *tensor.Tensor { return p.Mul(s.sqrtLrX) }
func (s splitLR) Mid(h *tensor.Tensor) *tensor.Tensor   { return h.Mul(s.lrY) }
func (s splitLR) Post(h *tensor.Tensor) *tensor.Tensor  { return h.Mul(s.sqrtLrX) }

// SolveOptions configures a conjugate-gradient solve. The zero value selects
// graph-mode oracles, an identity preconditioner, a zero initial guess and
// the default tolerances.
type SolveOptions struct {
	// X0 is an optional warm-start guess. Applying the operator to it
	// consumes one of the allowed steps.
	X0 *tensor.Tensor

	// NSteps caps the iteration count. Defaults to len(b).
	NSteps int

	// Tol is the relative residual tolerance, measured against b·b.
	// Defaults to 1e-10.
	Tol float64

	// ATol is the absolute residual tolerance. Defaults to 1e-16.
	ATol float64

	// Precond selects the learning-rate scaling policy around the Hvp
	// calls. Defaults to ScalarLR(1, 1).
	Precond Preconditioner

	// Accumulate switches the oracle to backward accumulation. Required
	// in a data-parallel deployment; Trigger and the reducers below are
	// threaded through to every chained Hvp call.
	Accumulate bool
	Trigger    *autodiff.Variable
	XReducer   Reducer
	YReducer   Reducer

	// Rebuild requests one-time reducer bucket construction. Honored on
	// the first operator application of the solve only.
	Rebuild bool
}

func (o *SolveOptions) defaults(dim int) {
	if o.NSteps == 0 {
		o.NSteps = dim
	}
	if o.Tol == 0 {
		o.Tol = 1e-10
	}
	if o.ATol == 0 {
		o.ATol = 1e-16
	}
	if o.Precond == nil {
		o.Precond = ScalarLR(1, 1)
	}
}

// ConjugateGradient solves (I + M) x = b for the implicit operator
// M = S_post · D_xy · S_mid · D_yx · S_probe, where D_yx v = Hvp(gradX, yParams, v),
// D_xy w = Hvp(gradY, xParams, w) and the S hooks come from the
// preconditioner. It returns the solution and the step count.
//
// gradX and gradY must remain differentiable across the whole solve; every
// oracle call retains the graph. Slow convergence (more than 100 iterations)
// is reported through Warnf and is not an error. A length mismatch between
// gradX and b fails with ErrShapeMismatch: the caller wired the wrong
// parameter groups together and no iteration could recover from that.
func ConjugateGradient(gradX, gradY *autodiff.Variable, xParams, yParams []*autodiff.Variable, b *tensor.Tensor, opts SolveOptions) (*tensor.Tensor, int, error) {
	if gradX.Len() != b.Len() {
		return nil, 0, fmt.Errorf("%w: gradient vector has %d elements, right-hand side has %d",
			ErrShapeMismatch, gradX.Len(), b.Len())
	}
	opts.defaults(b.Len())

	rebuild := opts.Rebuild
	apply := func(v *tensor.Tensor) (*tensor.Tensor, error) {
		modeY, modeX := Graph(), Graph()
		if opts.Accumulate {
			modeY = Accumulate(opts.Trigger, opts.YReducer, rebuild)
			modeX = Accumulate(opts.Trigger, opts.XReducer, rebuild)
		}
		rebuild = false

		h1, err := HvpVec(gradX, yParams, opts.Precond.Probe(v), modeY, true)
		if err != nil {
			return nil, err
		}
		h2, err := HvpVec(gradY, xParams, opts.Precond.Mid(h1), modeX, true)
		if err != nil {
			return nil, err
		}
		return v.Add(opts.Precond.Post(h2)), nil
	}

	nsteps := opts.NSteps
	var x, r *tensor.Tensor
	if opts.X0 == nil {
		x = tensor.Zeros(tensor.Shape{b.Len()})
		r = b.Clone()
	} else {
		x = opts.X0.Clone()
		ax, err := apply(x)
		if err != nil {
			return nil, 0, err
		}
		r = b.Sub(ax)
		nsteps--
	}

	p := r.Clone()
	rdotr := r.Dot(r)
	residualTol := opts.Tol * b.Dot(b)
	if rdotr < residualTol || rdotr < opts.ATol {
		return x, 1, nil
	}

	count := 0
	for i := 0; i < nsteps; i++ {
		count = i + 1

		ap, err := apply(p)
		if err != nil {
			return nil, count, err
		}

		alpha := rdotr / p.Dot(ap)
		x.AddScaled(alpha, p)
		r.AddScaled(-alpha, ap)

		newRdotr := r.Dot(r)
		beta := newRdotr / rdotr
		rdotr = newRdotr
		if rdotr < residualTol || rdotr < opts.ATol {
			break
		}
		p = r.Clone().AddScaled(beta, p)
	}
	if count == 0 {
		count = 1
	}
	if count > slowConvergenceThreshold {
		Warnf("cgd: conjugate gradient ran %d iterations; the implicit operator is ill-conditioned", count)
	}
	return x, count, nil
}
