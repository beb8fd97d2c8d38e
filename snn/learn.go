// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"fmt"
	"math"

	"github.com/emer/memsnn/device"
)

// LrFactor scales both default learning rates.
const LrFactor = 7

// LearnParams control eligibility accumulation and device commits for
// one projection.
type LearnParams struct {
	Lrate       float32 `def:"0.7,0.007" desc:"eligibility added per bin for an active (pre, post) pair is -Lrate * U[post]"`
	Thr         float32 `def:"0.5,0.06" desc:"commit threshold on |Elig| -- a synapse whose accumulated eligibility reaches this programs one device step -- +Inf disables learning"`
	IMin        float32 `def:"-4" desc:"receiving neurons only learn while their synaptic current is above this value"`
	IMax        float32 `def:"4" desc:"receiving neurons only learn while their synaptic current is below this value"`
	CursorReset bool    `desc:"reset the element write cursor at the start of every task -- by default it continues across tasks within a run"`
}

// Defaults sets the input -> hidden learning parameters.
func (lp *LearnParams) Defaults() {
	lp.Lrate = 0.1 * LrFactor
	lp.Thr = 0.5
	lp.IMin = -4
	lp.IMax = 4
	lp.CursorReset = false
}

// OutDefaults sets the hidden -> output learning parameters.
func (lp *LearnParams) OutDefaults() {
	lp.Defaults()
	lp.Lrate = 1e-3 * LrFactor
	lp.Thr = 0.06
}

// Update must be called after any changes to parameters
func (lp *LearnParams) Update() {
}

// Validate returns an error if the parameters cannot be used.
func (lp *LearnParams) Validate() error {
	if !(lp.Thr > 0) {
		return fmt.Errorf("%w: learning threshold must be > 0, got %g", device.ErrConfig, lp.Thr)
	}
	if !(lp.IMin < lp.IMax) {
		return fmt.Errorf("%w: learning current window [%g, %g] is empty", device.ErrConfig, lp.IMin, lp.IMax)
	}
	return nil
}

// Enabled returns false if the threshold can never be reached.
func (lp *LearnParams) Enabled() bool {
	return !math.IsInf(float64(lp.Thr), 1)
}

// PostActive returns true if a receiving neuron with current i is eligible to learn.
func (lp *LearnParams) PostActive(i float32) bool {
	return i > lp.IMin && i < lp.IMax
}
