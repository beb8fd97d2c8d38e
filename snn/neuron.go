// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

// snn.Neuron holds the state of one leaky integrate-and-fire unit.
type Neuron struct {

	// synaptic current
	I float32

	// membrane potential
	V float32

	// time of the most recent spike, in msec from the start of the example
	Ts float32

	// 1 if the neuron spiked on the current bin, else 0
	Spike float32
}
