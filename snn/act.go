// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"github.com/goki/mat32"
)

///////////////////////////////////////////////////////////////////////
//  act.go contains the leaky integrate-and-fire neuron update

// LIFParams are the leaky integrate-and-fire parameters for one layer.
// Time constants are in milliseconds, and Dt is the integration step.
type LIFParams struct {
	TauSyn    float32 `def:"10,25" min:"1" desc:"synaptic current time constant, in msec -- current relaxes toward the weighted input spikes with this time constant"`
	TauM      float32 `def:"15,25" min:"1" desc:"membrane time constant, in msec"`
	R         float32 `def:"1,5" desc:"membrane resistance -- scales the synaptic current into potential"`
	Vs        float32 `def:"15,10" desc:"threshold scale -- firing threshold Thr = R * Vs / TauM"`
	Vrest     float32 `def:"0" desc:"resting membrane potential"`
	Refr      float32 `def:"4" min:"0" desc:"refractory period, in msec -- potential is held at 0 for this long after a spike"`
	FloorFrac float32 `def:"0.1" min:"0" desc:"negative floor for membrane potential, as a fraction of Thr: V >= -FloorFrac * Thr"`
	Dt        float32 `def:"1" min:"0" desc:"integration time step, in msec"`

	Thr   float32 `view:"-" json:"-" xml:"-" desc:"firing threshold = R * Vs / TauM"`
	Floor float32 `view:"-" json:"-" xml:"-" desc:"potential floor = -FloorFrac * Thr"`
	SynDt float32 `view:"-" json:"-" xml:"-" desc:"rate = Dt / TauSyn"`
	MDt   float32 `view:"-" json:"-" xml:"-" desc:"rate = Dt / TauM"`
}

// Defaults sets the hidden-layer parameters.
func (lp *LIFParams) Defaults() {
	lp.TauSyn = 10
	lp.TauM = 15
	lp.R = 1
	lp.Vs = 15
	lp.Vrest = 0
	lp.Refr = 4
	lp.FloorFrac = 0.1
	lp.Dt = 1
	lp.Update()
}

// OutDefaults sets the output-layer parameters: slower, with a higher threshold.
func (lp *LIFParams) OutDefaults() {
	lp.Defaults()
	lp.TauSyn = 25
	lp.TauM = 25
	lp.R = 5
	lp.Vs = 10
	lp.Update()
}

// Update must be called after any changes to parameters
func (lp *LIFParams) Update() {
	lp.Thr = lp.R * lp.Vs / lp.TauM
	lp.Floor = -lp.FloorFrac * lp.Thr
	lp.SynDt = lp.Dt / lp.TauSyn
	lp.MDt = lp.Dt / lp.TauM
}

// InitNeuron resets neuron state at the start of an example.
func (lp *LIFParams) InitNeuron(nrn *Neuron) {
	nrn.I = 0
	nrn.V = 0
	nrn.Ts = -lp.Refr
	nrn.Spike = 0
}

// CurFmDrive integrates synaptic current toward the weighted input drive.
func (lp *LIFParams) CurFmDrive(nrn *Neuron, drive float32) {
	nrn.I += lp.SynDt * (drive - nrn.I)
}

// VmFmCur integrates membrane potential from the current, with the
// negative floor applied.
func (lp *LIFParams) VmFmCur(nrn *Neuron) {
	nrn.V += lp.MDt * ((lp.Vrest - nrn.V) + nrn.I*lp.R)
	nrn.V = mat32.Max(nrn.V, lp.Floor)
}

// SpikeFmVm applies the refractory clamp and fires if V has reached Thr,
// at time now (msec).  Returns true if the neuron spiked.
func (lp *LIFParams) SpikeFmVm(nrn *Neuron, now float32) bool {
	if now-nrn.Ts <= lp.Refr {
		nrn.V = 0
	}
	if nrn.V >= lp.Thr {
		nrn.V = 0
		nrn.Ts = now
		nrn.Spike = 1
		return true
	}
	nrn.Spike = 0
	return false
}

// Cycle runs one full update of the neuron for the given drive at time now.
func (lp *LIFParams) Cycle(nrn *Neuron, drive, now float32) bool {
	lp.CurFmDrive(nrn, drive)
	lp.VmFmCur(nrn)
	return lp.SpikeFmVm(nrn, now)
}
