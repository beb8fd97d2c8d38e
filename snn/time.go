// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import "github.com/emer/emergent/v2/etime"

// snn.Time contains the timing state for running the network on one example.
type Time struct {

	// time within the current example, in msec (Bin * Dt)
	Time float32

	// bin counter within the current example: 0 .. NBins-1
	Bin int

	// integration step per bin, in msec
	Dt float32

	// number of bins per example presentation
	NBins int

	// current evaluation mode: Train runs error feedback and learning, Test only the forward pass
	Mode etime.Modes
}

// Defaults sets default values
func (tm *Time) Defaults() {
	tm.Dt = 1
	tm.NBins = 150
	tm.Mode = etime.Train
}

// Reset resets the counters all back to zero
func (tm *Time) Reset() {
	tm.Time = 0
	tm.Bin = 0
}

// ExampleStart starts a new example presentation
func (tm *Time) ExampleStart() {
	tm.Time = 0
	tm.Bin = 0
}

// BinInc increments one bin worth of time
func (tm *Time) BinInc() {
	tm.Bin++
	tm.Time = float32(tm.Bin) * tm.Dt
}

// Training returns true if in the Train mode
func (tm *Time) Training() bool {
	return tm.Mode == etime.Train
}
