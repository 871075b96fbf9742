package optim

import (
	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/cgd"
)

// CGD implements competitive gradient descent with fixed scalar learning
// rates.
//
// Per step, with f the loss, x minimizing and y maximizing, the players'
// local quadratic games have the simultaneous solution
//
//	Δx = ηx·(I + ηx·D_xy·ηy·D_yx)⁻¹ (∇xf + ηy·D_xy ∇yf)
//	x ← x − Δx
//	y ← y + ηy·(∇yf − D_yx Δx)
//
// so only one linear system is solved per step: the y update is the exact
// best response to the x move.
type CGD struct {
	xParams []*autodiff.Variable
	yParams []*autodiff.Variable
	lrX     float64
	lrY     float64
	tol     float64
	atol    float64
	nsteps  int

	lastIterations int
}

// CGDConfig holds configuration for the CGD optimizer.
type CGDConfig struct {
	LRX    float64 // x player learning rate (default: 0.01)
	LRY    float64 // y player learning rate (default: LRX)
	Tol    float64 // relative CG tolerance (default: 1e-10)
	ATol   float64 // absolute CG tolerance (default: 1e-16)
	NSteps int     // CG iteration cap (default: len of x player)
}

// NewCGD creates a CGD optimizer over the two players' parameter sets.
func NewCGD(xParams, yParams []*autodiff.Variable, config CGDConfig) *CGD {
	if config.LRX == 0 {
		config.LRX = 0.01
	}
	if config.LRY == 0 {
		config.LRY = config.LRX
	}
	return &CGD{
		xParams: xParams,
		yParams: yParams,
		lrX:     config.LRX,
		lrY:     config.LRY,
		tol:     config.Tol,
		atol:    config.ATol,
		nsteps:  config.NSteps,
	}
}

// Step performs one simultaneous competitive update of both players.
func (c *CGD) Step(loss *autodiff.Variable) error {
	gradX := flatGrad(loss, c.xParams)
	gradY := flatGrad(loss, c.yParams)

	// b = ∇xf + ηy·D_xy ∇yf
	hvp, err := cgd.HvpVec(gradY, c.xParams, gradY.Data(), cgd.Graph(), true)
	if err != nil {
		return err
	}
	b := gradX.Data().Add(hvp.Scale(c.lrY))

	sol, iters, err := cgd.ConjugateGradient(gradX, gradY, c.xParams, c.yParams, b, cgd.SolveOptions{
		Precond: cgd.ScalarLR(c.lrX, c.lrY),
		Tol:     c.tol,
		ATol:    c.atol,
		NSteps:  c.nsteps,
	})
	if err != nil {
		return err
	}
	c.lastIterations = iters

	dx := sol.Scale(c.lrX)
	applyUpdate(c.xParams, dx, -1)

	// δy = ηy·(∇yf − D_yx Δx): the maximizing player's best response to
	// the x move that was just applied.
	hcg, err := cgd.HvpVec(gradX, c.yParams, dx, cgd.Graph(), false)
	if err != nil {
		return err
	}
	dy := gradY.Data().Sub(hcg).Scale(c.lrY)
	applyUpdate(c.yParams, dy, 1)
	return nil
}

// ZeroGrad clears gradient buffers on both players.
func (c *CGD) ZeroGrad() {
	autodiff.ZeroGrad(c.xParams)
	autodiff.ZeroGrad(c.yParams)
}

// GetLR returns the x player's learning rate.
func (c *CGD) GetLR() float64 { return c.lrX }

// LastIterations returns the CG iteration count of the most recent step.
func (c *CGD) LastIterations() int { return c.lastIterations }
