// Copyright 2025 CGDS ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint saves and restores optimizer state in the native .cgds
// format: a small binary container with a JSON header and a SHA-256
// checksummed data section.
//
// Example:
//
//	if err := checkpoint.Save("acgd.cgds", opt.State()); err != nil {
//	    return err
//	}
//
//	state, err := checkpoint.Load("acgd.cgds")
//	if err != nil {
//	    return err
//	}
//	if err := opt.SetState(state); err != nil {
//	    return err
//	}
package checkpoint

import (
	"github.com/cgds-ml/cgds/internal/checkpoint"
)

// Sentinel errors returned by Load.
var (
	ErrInvalidMagic       = checkpoint.ErrInvalidMagic
	ErrUnsupportedVersion = checkpoint.ErrUnsupportedVersion
	ErrChecksumMismatch   = checkpoint.ErrChecksumMismatch
)

// State is a snapshot of an optimizer's training state.
type State = checkpoint.State

// Save writes the state to path atomically.
func Save(path string, state State) error { return checkpoint.Save(path, state) }

// Load reads a state previously written by Save.
func Load(path string) (State, error) { return checkpoint.Load(path) }
