// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

// Layer is a population of LIF neurons.  The input layer has no
// neurons of its own: its Spikes are set directly from the spike train.
type Layer struct {

	// name of the layer
	Name string

	// neuron parameters, unused for the input layer
	Act LIFParams

	// neuron state, nil for the input layer
	Neurons []Neuron

	// spikes on the current bin, 1 or 0 per unit
	Spikes []float32

	// weighted input drive on the current bin, computed by the receiving projection
	Drive []float32

	// spike counts over the current example
	Counts []int

	// indexes of units that spiked on the current bin
	Active []int
}

// NewLayer returns a layer of n units.  If input is true, no neuron
// state is allocated.
func NewLayer(name string, n int, input bool) *Layer {
	ly := &Layer{Name: name}
	ly.Spikes = make([]float32, n)
	ly.Counts = make([]int, n)
	ly.Active = make([]int, 0, n)
	if !input {
		ly.Act.Defaults()
		ly.Neurons = make([]Neuron, n)
		ly.Drive = make([]float32, n)
	}
	return ly
}

// NUnits returns the number of units in the layer
func (ly *Layer) NUnits() int {
	return len(ly.Spikes)
}

// InitExample resets all neuron state and counts for a new example.
func (ly *Layer) InitExample() {
	for i := range ly.Neurons {
		ly.Act.InitNeuron(&ly.Neurons[i])
	}
	for i := range ly.Spikes {
		ly.Spikes[i] = 0
		ly.Counts[i] = 0
	}
	ly.Active = ly.Active[:0]
}

// ApplySpikes sets the spikes of an input layer for the current bin.
func (ly *Layer) ApplySpikes(sp []float32) {
	ly.Active = ly.Active[:0]
	for i, s := range sp {
		ly.Spikes[i] = s
		if s != 0 {
			ly.Active = append(ly.Active, i)
			ly.Counts[i]++
		}
	}
}

// Cycle updates every neuron from the current Drive at time now (msec),
// recording the resulting spikes.
func (ly *Layer) Cycle(now float32) {
	ly.Active = ly.Active[:0]
	for i := range ly.Neurons {
		nrn := &ly.Neurons[i]
		if ly.Act.Cycle(nrn, ly.Drive[i], now) {
			ly.Spikes[i] = 1
			ly.Counts[i]++
			ly.Active = append(ly.Active, i)
		} else {
			ly.Spikes[i] = 0
		}
	}
}

// MaxCount returns the index of the unit with the most spikes in the
// example (ties to the lowest index), and the total spike count.
func (ly *Layer) MaxCount() (idx, total int) {
	mx := -1
	for i, c := range ly.Counts {
		total += c
		if c > mx {
			mx = c
			idx = i
		}
	}
	return
}
