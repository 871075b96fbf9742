// Copyright 2025 CGDS ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the competitive optimizers built on the cgd solver.
//
// Example:
//
//	opt := optim.NewACGD(xParams, yParams, optim.ACGDConfig{LR: 0.01})
//	for i := 0; i < steps; i++ {
//	    loss := buildLoss(xParams, yParams)
//	    if err := opt.Step(loss); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/optim"
)

// Optimizer is the interface shared by the competitive optimizers.
type Optimizer = optim.Optimizer

// CGD is competitive gradient descent with fixed scalar learning rates.
type CGD = optim.CGD

// CGDConfig holds configuration for the CGD optimizer.
type CGDConfig = optim.CGDConfig

// NewCGD creates a CGD optimizer over the two players' parameter sets.
func NewCGD(xParams, yParams []*autodiff.Variable, config CGDConfig) *CGD {
	return optim.NewCGD(xParams, yParams, config)
}

// ACGD is adaptive competitive gradient descent.
type ACGD = optim.ACGD

// ACGDConfig holds configuration for the ACGD optimizer.
type ACGDConfig = optim.ACGDConfig

// NewACGD creates an ACGD optimizer over the two players' parameter sets.
func NewACGD(xParams, yParams []*autodiff.Variable, config ACGDConfig) *ACGD {
	return optim.NewACGD(xParams, yParams, config)
}
