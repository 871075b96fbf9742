// Package cgd implements the linear-algebra core of competitive gradient
// descent: Hessian-vector products obtained from the autodiff graph and a
// conjugate-gradient solver for the implicit system (I + M)x = b, where M is
// the product of the two players' cross-Hessian blocks and is never formed.
package cgd

import (
	"errors"
	"log"

	"github.com/cgds-ml/cgds/internal/autodiff"
)

// Sentinel errors for the fatal failure modes of a solve.
//
// Non-finite values mean the surrounding training has diverged; a shape
// mismatch means the caller wired the wrong parameter groups together.
// Both abort the solve immediately, nothing is retried.
var (
	ErrNonFiniteInput  = errors.New("cgd: non-finite input")
	ErrNonFiniteResult = errors.New("cgd: non-finite result")
	ErrShapeMismatch   = errors.New("cgd: shape mismatch")
)

// Warnf is the sink for non-fatal solver warnings, e.g. slow convergence.
// It defaults to the standard logger and may be replaced by the caller.
var Warnf = log.Printf

// slowConvergenceThreshold is the iteration count past which a solve is
// reported to the warning sink. Informational only.
const slowConvergenceThreshold = 100

// Reducer is the distributed gradient-reduction collaborator.
//
// In a data-parallel deployment each process owns one reducer per player.
// The oracle's accumulation mode notifies it around every backward pass so
// the collective reduction observes the same call sequence on every process;
// reduction internals stay entirely outside this package. A nil Reducer is
// valid and means single-process accumulation.
type Reducer interface {
	// RebuildBuckets performs one-time gradient-bucket construction.
	// Invoked at most once per training step, on the first backward pass.
	RebuildBuckets() error

	// PrepareForBackward announces an imminent backward pass with the set
	// of parameters expected to receive gradients (empty for Hvp passes).
	PrepareForBackward(expected []*autodiff.Variable)
}
