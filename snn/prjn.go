// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"github.com/emer/emergent/v2/erand"
	"github.com/emer/etable/v2/etensor"
	"github.com/emer/etable/v2/minmax"
	"github.com/emer/memsnn/device"
)

// Prjn is a fully connected crossbar projection from Send to Recv.
// Each synapse is realized by a group of NCross parallel device elements,
// and learning programs one element of a group at a time.
type Prjn struct {

	// name of the projection, e.g. InHid
	Name string

	// sending layer
	Send *Layer

	// receiving layer
	Recv *Layer

	// device palette shared by all elements
	Pal *device.Palette

	// number of parallel elements per synapse
	NCross int

	// calibration mapping group conductance to weight
	Cal device.Calib

	// weight range that initialization spreads over
	InitRange minmax.F64

	// learning parameters
	Learn LearnParams

	// synapses in recv-major order: Syns[ri*NSend + si]
	Syns []Synapse

	// element resistances, ohms, in (recv, send, elem) order
	Res []float64

	// element write cursor: each commit event programs element Cursor % NCross
	Cursor int

	// number of commits per synapse in the current task, [recv, send]
	Commits *etensor.Float64

	// number of element programming steps in the current task
	NSteps int

	// number of commit events (bins with at least one commit) in the current task
	NEvents int

	// synapse indexes that reached threshold on the current bin
	cross []int
}

// NewPrjn connects send to recv.  Weights are not initialized until InitWeights.
func NewPrjn(name string, send, recv *Layer, pal *device.Palette, nCross int, cal device.Calib, lp LearnParams) *Prjn {
	ns, nr := send.NUnits(), recv.NUnits()
	pj := &Prjn{Name: name, Send: send, Recv: recv, Pal: pal, NCross: nCross, Cal: cal, Learn: lp}
	pj.InitRange = minmax.F64{Min: -1, Max: 1}
	pj.Syns = make([]Synapse, nr*ns)
	pj.Res = make([]float64, nr*ns*nCross)
	pj.Commits = etensor.NewFloat64([]int{nr, ns}, nil, []string{recv.Name, send.Name})
	pj.cross = make([]int, 0, 64)
	return pj
}

// NSend returns the number of sending units
func (pj *Prjn) NSend() int { return pj.Send.NUnits() }

// NRecv returns the number of receiving units
func (pj *Prjn) NRecv() int { return pj.Recv.NUnits() }

// SynIdx returns the synapse index for the given recv, send units
func (pj *Prjn) SynIdx(ri, si int) int {
	return ri*pj.NSend() + si
}

// Group returns the device group for synapse index syi.
// The group aliases the projection's resistance storage.
func (pj *Prjn) Group(syi int) device.Group {
	return device.Group(pj.Res[syi*pj.NCross : (syi+1)*pj.NCross])
}

// InitWeights creates a fresh set of device groups and weights,
// and clears all learning state.
func (pj *Prjn) InitWeights(rnd erand.Rand) (*device.InitStats, error) {
	wts, res, st, err := device.InitGroups(pj.NRecv(), pj.NSend(), pj.Pal, pj.Cal, pj.NCross, pj.InitRange, rnd)
	if err != nil {
		return st, err
	}
	copy(pj.Res, res)
	for i := range pj.Syns {
		sy := &pj.Syns[i]
		sy.Wt = wts[i]
		sy.Elig = 0
	}
	return st, nil
}

// InitTask resets per-task commit statistics, and the cursor if CursorReset.
func (pj *Prjn) InitTask() {
	pj.Commits.SetZeros()
	pj.NSteps = 0
	pj.NEvents = 0
	if pj.Learn.CursorReset {
		pj.Cursor = 0
	}
}

// InitElig clears all eligibility, at the start of an example.
func (pj *Prjn) InitElig() {
	for i := range pj.Syns {
		pj.Syns[i].Elig = 0
	}
	pj.cross = pj.cross[:0]
}

// SendDrive computes the weighted input of the currently active senders
// into the receiving layer's Drive.
func (pj *Prjn) SendDrive() {
	drive := pj.Recv.Drive
	for ri := range drive {
		drive[ri] = 0
	}
	ns := pj.NSend()
	for _, si := range pj.Send.Active {
		for ri := range drive {
			drive[ri] += pj.Syns[ri*ns+si].Wt
		}
	}
}

// Accumulate adds -Lrate * u[ri] to the eligibility of every synapse whose
// sender spiked on this bin and whose receiver's current is within the
// learning window, collecting the synapses that reach threshold.
func (pj *Prjn) Accumulate(u []float32) {
	pj.cross = pj.cross[:0]
	if len(pj.Send.Active) == 0 {
		return
	}
	lp := &pj.Learn
	ns := pj.NSend()
	for ri := range pj.Recv.Neurons {
		if !lp.PostActive(pj.Recv.Neurons[ri].I) {
			continue
		}
		dw := -lp.Lrate * u[ri]
		off := ri * ns
		for _, si := range pj.Send.Active {
			sy := &pj.Syns[off+si]
			sy.Elig += dw
			if sy.Elig >= lp.Thr || sy.Elig <= -lp.Thr {
				pj.cross = append(pj.cross, off+si)
			}
		}
	}
}

// Commit programs one device step for every synapse that crossed
// threshold on the last Accumulate: the element at the current cursor is
// stepped in the direction of the eligibility sign, eligibility is reset,
// and the weight is recomputed from the group.  The cursor advances once
// if anything was committed.  Returns the number of synapses committed.
func (pj *Prjn) Commit(rnd erand.Rand) int {
	n := len(pj.cross)
	if n == 0 {
		return 0
	}
	elem := pj.Cursor % pj.NCross
	for _, syi := range pj.cross {
		sy := &pj.Syns[syi]
		dir := 1
		if sy.Elig < 0 {
			dir = -1
		}
		sy.Elig = 0
		g := pj.Group(syi)
		pj.Pal.StepLevel(g, elem, dir, rnd)
		sy.Wt = float32(pj.Cal.Weight(g))
		pj.Commits.Values[syi]++
	}
	pj.Cursor++
	pj.NSteps += n
	pj.NEvents++
	pj.cross = pj.cross[:0]
	return n
}

// Weights returns a copy of the current weights, recv-major.
func (pj *Prjn) Weights() []float32 {
	wts := make([]float32, len(pj.Syns))
	for i := range pj.Syns {
		wts[i] = pj.Syns[i].Wt
	}
	return wts
}

// SynVarAvg returns the average of the named synapse variable.
func (pj *Prjn) SynVarAvg(varNm string) (float32, error) {
	vi, err := SynapseVarByName(varNm)
	if err != nil {
		return 0, err
	}
	var sum float32
	for i := range pj.Syns {
		sum += pj.Syns[i].VarByIndex(vi)
	}
	return sum / float32(len(pj.Syns)), nil
}
