// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"github.com/emer/emergent/v2/erand"
	"github.com/emer/emergent/v2/etime"
	"github.com/emer/memsnn/spike"
)

// snn.Network is an input -> hidden -> output spiking network whose two
// weight matrices are memristor crossbars, plus the error pathway that
// trains them.
type Network struct {

	// name of the network
	Name string

	// all parameters -- must be calibrated
	Params NetParams

	// timing state
	Time Time

	// input layer, driven by the spike train
	In *Layer

	// hidden layer
	Hid *Layer

	// output layer
	Out *Layer

	// input -> hidden crossbar
	InHid *Prjn

	// hidden -> output crossbar
	HidOut *Prjn

	// error neurons and error compartments
	Err *ErrLayer

	// random source for device programming and initialization
	Rand erand.Rand

	inBuf  []float32
	tgtBuf []float32
}

// NewNetwork builds a network from the given parameters, running nBins
// bins per example.  Parameters are validated, and calibrated if that has
// not been done already.
func NewNetwork(name string, np *NetParams, nBins int, rnd erand.Rand) (*Network, error) {
	nt := &Network{Name: name, Params: *np, Rand: rnd}
	p := &nt.Params
	p.Update()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !p.Calibrated() {
		if err := p.Calibrate(); err != nil {
			return nil, err
		}
	}
	nt.Time.Defaults()
	nt.Time.Dt = p.Hid.Dt
	nt.Time.NBins = nBins

	nt.In = NewLayer("In", p.NIn, true)
	nt.Hid = NewLayer("Hid", p.NHid, false)
	nt.Hid.Act = p.Hid
	nt.Out = NewLayer("Out", p.NOut, false)
	nt.Out.Act = p.Out

	nt.InHid = NewPrjn("InHid", nt.In, nt.Hid, &p.Dev.Palette, p.Dev.NCross, p.InHidCal, p.HidLearn)
	nt.HidOut = NewPrjn("HidOut", nt.Hid, nt.Out, &p.Dev.Palette, p.Dev.NCross, p.HidOutCal, p.OutLearn)
	nt.Err = NewErrLayer(p.NOut, p.NHid, p.Err)

	nt.inBuf = make([]float32, p.NIn)
	nt.tgtBuf = make([]float32, p.NOut)
	return nt, nil
}

// InitWeights draws fresh device groups for both crossbars.
func (nt *Network) InitWeights() error {
	if _, err := nt.InHid.InitWeights(nt.Rand); err != nil {
		return fmt.Errorf("%s: %w", nt.InHid.Name, err)
	}
	if _, err := nt.HidOut.InitWeights(nt.Rand); err != nil {
		return fmt.Errorf("%s: %w", nt.HidOut.Name, err)
	}
	return nil
}

// InitFeedback draws the fixed random feedback weights, once per run.
func (nt *Network) InitFeedback() {
	nt.Err.InitFeedback(nt.Rand)
}

// NewTask resets per-task learning statistics on both crossbars.
func (nt *Network) NewTask() {
	nt.InHid.InitTask()
	nt.HidOut.InitTask()
	nt.Time.Reset()
}

// InitExample resets all neuron, error and eligibility state for a new example.
func (nt *Network) InitExample() {
	nt.In.InitExample()
	nt.Hid.InitExample()
	nt.Out.InitExample()
	nt.Err.InitState()
	if nt.Time.Training() {
		nt.InHid.InitElig()
		nt.HidOut.InitElig()
	}
	nt.Time.ExampleStart()
}

// Step advances the network by one bin.  in are the input spikes for the
// bin, and, in Train mode, tgt are the target label spikes and tgtIdx the
// target output unit.  In Train mode the error pathway runs and both
// crossbars accumulate eligibility and commit device steps.
func (nt *Network) Step(in, tgt []float32, tgtIdx int) {
	now := nt.Time.Time
	nt.In.ApplySpikes(in)
	nt.InHid.SendDrive()
	nt.Hid.Cycle(now)
	nt.HidOut.SendDrive()
	nt.Out.Cycle(now)
	if nt.Time.Training() {
		nt.Err.Step(nt.Out.Spikes, tgt, tgtIdx)
		nt.learn(nt.InHid, nt.Err.UHid)
		nt.learn(nt.HidOut, nt.Err.UOut)
	}
	nt.Time.BinInc()
}

func (nt *Network) learn(pj *Prjn, u []float32) {
	if !pj.Learn.Enabled() {
		return
	}
	pj.Accumulate(u)
	pj.Commit(nt.Rand)
}

// Train presents one training example: in is the input spike train,
// tgt the target label spike train and tgtIdx the target output unit.
func (nt *Network) Train(in, tgt *spike.Train, tgtIdx int) {
	nt.Time.Mode = etime.Train
	nt.InitExample()
	nb := nt.Time.NBins
	for b := 0; b < nb; b++ {
		in.Bin(b, nt.inBuf)
		tgt.Bin(b, nt.tgtBuf)
		nt.Step(nt.inBuf, nt.tgtBuf, tgtIdx)
	}
}

// Infer presents one example in Test mode, with no learning, and returns
// the output spike counts.
func (nt *Network) Infer(in *spike.Train) []int {
	nt.Time.Mode = etime.Test
	nt.InitExample()
	nb := nt.Time.NBins
	for b := 0; b < nb; b++ {
		in.Bin(b, nt.inBuf)
		nt.Step(nt.inBuf, nil, -1)
	}
	cnt := make([]int, len(nt.Out.Counts))
	copy(cnt, nt.Out.Counts)
	return cnt
}

// SizeReport returns a string reporting the size of each layer and crossbar
// in the network, and total memory footprint.
func (nt *Network) SizeReport() string {
	var b strings.Builder
	neur := 0
	neurMem := 0
	for _, ly := range []*Layer{nt.In, nt.Hid, nt.Out} {
		nn := len(ly.Neurons)
		nmem := nn*int(unsafe.Sizeof(Neuron{})) + len(ly.Spikes)*4 + len(ly.Drive)*4
		neur += nn
		neurMem += nmem
		fmt.Fprintf(&b, "%14s:\t Units: %d\t Neurons: %d\t NeurMem: %v\n", ly.Name, ly.NUnits(), nn, (datasize.ByteSize)(nmem).HumanReadable())
	}
	syn := 0
	synMem := 0
	for _, pj := range []*Prjn{nt.InHid, nt.HidOut} {
		ns := len(pj.Syns)
		pmem := ns*int(unsafe.Sizeof(Synapse{})) + len(pj.Res)*8 + len(pj.Commits.Values)*8
		syn += ns
		synMem += pmem
		fmt.Fprintf(&b, "%14s:\t Syns: %d\t Devices: %d\t SynMem: %v\n", pj.Name, ns, len(pj.Res), (datasize.ByteSize)(pmem).HumanReadable())
	}
	fmt.Fprintf(&b, "\n%14s:\t Neurons: %d\t NeurMem: %v \t Syns: %d \t SynMem: %v\n", nt.Name, neur, (datasize.ByteSize)(neurMem).HumanReadable(), syn, (datasize.ByteSize)(synMem).HumanReadable())
	return b.String()
}
