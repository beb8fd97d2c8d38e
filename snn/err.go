// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"github.com/emer/emergent/v2/erand"
	"github.com/goki/mat32"
)

// ErrParams are the parameters for the error neurons and the error
// compartments that carry feedback to the hidden and output layers.
type ErrParams struct {
	TauE      float32 `def:"10" min:"1" desc:"error neuron membrane time constant, in msec"`
	RE        float32 `def:"25" desc:"error neuron membrane resistance"`
	Vs        float32 `def:"1" desc:"error neuron threshold scale -- Thr = RE * Vs / TauE"`
	FloorFrac float32 `def:"0.1" desc:"negative floor for error potentials, as a fraction of Thr"`
	FPF       float32 `def:"1" min:"0" max:"1" desc:"false-positive factor: after thresholding, the false-positive potential of the target output is multiplied by this -- values < 1 stop penalizing extra spikes on the target"`
	Leak      bool    `def:"false" desc:"if true, error potentials also leak toward 0 with TauE -- by default they integrate without leak"`
	TauU      float32 `def:"15" min:"1" desc:"error compartment time constant, in msec"`
	RU        float32 `def:"5" desc:"error compartment resistance"`
	WErr      float32 `def:"0.15" desc:"fixed random feedback weights are uniform in [-WErr, WErr)"`
	Dt        float32 `def:"1" desc:"integration time step, in msec"`

	Thr   float32 `view:"-" json:"-" xml:"-" desc:"error neuron threshold = RE * Vs / TauE"`
	Floor float32 `view:"-" json:"-" xml:"-" desc:"potential floor = -FloorFrac * Thr"`
	EDt   float32 `view:"-" json:"-" xml:"-" desc:"rate = Dt / TauE"`
	UDt   float32 `view:"-" json:"-" xml:"-" desc:"rate = Dt / TauU"`
}

func (ep *ErrParams) Defaults() {
	ep.TauE = 10
	ep.RE = 25
	ep.Vs = 1
	ep.FloorFrac = 0.1
	ep.FPF = 1
	ep.Leak = false
	ep.TauU = 15
	ep.RU = 5
	ep.WErr = 0.15
	ep.Dt = 1
	ep.Update()
}

// Update must be called after any changes to parameters
func (ep *ErrParams) Update() {
	ep.Thr = ep.RE * ep.Vs / ep.TauE
	ep.Floor = -ep.FloorFrac * ep.Thr
	ep.EDt = ep.Dt / ep.TauE
	ep.UDt = ep.Dt / ep.TauU
}

// ErrLayer holds the false-positive and false-negative error neurons (one
// pair per output unit) and the error compartments U of the hidden and
// output neurons.  Feedback to the hidden layer goes through a fixed
// random matrix B, drawn once per run.
type ErrLayer struct {
	Params ErrParams

	// false-positive error neuron potentials, per output unit
	VFP []float32

	// false-negative error neuron potentials, per output unit
	VFN []float32

	// false-positive error spikes on the current bin
	SFP []float32

	// false-negative error spikes on the current bin
	SFN []float32

	// hidden error compartments
	UHid []float32

	// output error compartments
	UOut []float32

	// fixed random feedback weights, [hid][out]
	B []float32

	nOut, nHid int
}

// NewErrLayer returns error state for nOut outputs feeding back to nHid hidden units.
func NewErrLayer(nOut, nHid int, ep ErrParams) *ErrLayer {
	el := &ErrLayer{Params: ep, nOut: nOut, nHid: nHid}
	el.VFP = make([]float32, nOut)
	el.VFN = make([]float32, nOut)
	el.SFP = make([]float32, nOut)
	el.SFN = make([]float32, nOut)
	el.UOut = make([]float32, nOut)
	el.UHid = make([]float32, nHid)
	el.B = make([]float32, nHid*nOut)
	return el
}

// InitFeedback draws the fixed random feedback weights.
func (el *ErrLayer) InitFeedback(rnd erand.Rand) {
	for i := range el.B {
		el.B[i] = (float32(rnd.Float64(-1))*2 - 1) * el.Params.WErr
	}
}

// InitState resets all potentials, spikes and compartments for a new example.
func (el *ErrLayer) InitState() {
	for _, v := range [][]float32{el.VFP, el.VFN, el.SFP, el.SFN, el.UOut, el.UHid} {
		for i := range v {
			v[i] = 0
		}
	}
}

// integ integrates one error neuron by the signed error, returning the spike.
func (el *ErrLayer) integ(v *float32, ierr float32) float32 {
	ep := &el.Params
	if ep.Leak {
		*v += ep.EDt * (-*v + ierr*ep.RE)
	} else {
		*v += ep.EDt * ierr * ep.RE
	}
	*v = mat32.Max(*v, ep.Floor)
	if *v >= ep.Thr {
		*v -= ep.Thr
		return 1
	}
	return 0
}

// Step runs one bin of the error pathway: out are the output layer spikes,
// tgt the target label spikes, and tgtIdx the target output unit.
// Error neurons integrate the difference, and the error compartments
// integrate the resulting error spikes.
func (el *ErrLayer) Step(out, tgt []float32, tgtIdx int) {
	ep := &el.Params
	for o := 0; o < el.nOut; o++ {
		ierr := out[o] - tgt[o]
		el.SFP[o] = el.integ(&el.VFP[o], ierr)
		el.SFN[o] = el.integ(&el.VFN[o], -ierr)
	}
	if tgtIdx >= 0 && tgtIdx < el.nOut {
		el.VFP[tgtIdx] *= ep.FPF
	}
	for h := 0; h < el.nHid; h++ {
		var fb float32
		off := h * el.nOut
		for o := 0; o < el.nOut; o++ {
			fb += el.B[off+o] * (el.SFP[o] - el.SFN[o])
		}
		el.UHid[h] += ep.UDt * (-el.UHid[h] + fb*ep.RU)
	}
	for o := 0; o < el.nOut; o++ {
		el.UOut[o] += ep.UDt * (-el.UOut[o] + (el.SFP[o]-el.SFN[o])*ep.RU)
	}
}
