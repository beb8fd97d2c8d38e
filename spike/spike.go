// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spike converts static rates into binary spike trains,
// one independent Bernoulli draw per unit per time bin.
package spike

import (
	"fmt"

	"github.com/emer/emergent/v2/erand"
	"github.com/goki/mat32"
)

// Train is a binary unit x bin spike matrix, stored unit-major
// (all bins for unit 0, then unit 1, etc).
type Train struct {
	NUnits int
	NBins  int
	Spikes []uint8
}

// NewTrain returns an all-silent train.
func NewTrain(nUnits, nBins int) *Train {
	return &Train{NUnits: nUnits, NBins: nBins, Spikes: make([]uint8, nUnits*nBins)}
}

// Poisson draws a train with per-bin spike probability probs[unit].
// Units are drawn in the outer loop and bins in the inner loop, and a unit
// spikes in a bin iff its uniform draw is <= its probability, so p = 0
// never spikes (except on an exact 0 draw) and p >= 1 always does.
func Poisson(probs []float32, nBins int, rnd erand.Rand) *Train {
	tr := NewTrain(len(probs), nBins)
	tr.Fill(probs, rnd)
	return tr
}

// Fill redraws the train in place from probs, which must have NUnits entries.
func (tr *Train) Fill(probs []float32, rnd erand.Rand) {
	if len(probs) != tr.NUnits {
		panic(fmt.Sprintf("spike.Train.Fill: %d probabilities for %d units", len(probs), tr.NUnits))
	}
	for u, p := range probs {
		off := u * tr.NBins
		for b := 0; b < tr.NBins; b++ {
			if rnd.Float32(-1) <= p {
				tr.Spikes[off+b] = 1
			} else {
				tr.Spikes[off+b] = 0
			}
		}
	}
}

// At returns true if unit spiked in bin.
func (tr *Train) At(unit, bin int) bool {
	return tr.Spikes[unit*tr.NBins+bin] != 0
}

// Bin writes the spike column for bin into out (1 or 0 per unit).
func (tr *Train) Bin(bin int, out []float32) {
	for u := 0; u < tr.NUnits; u++ {
		out[u] = float32(tr.Spikes[u*tr.NBins+bin])
	}
}

// Count returns the number of spikes for unit across all bins.
func (tr *Train) Count(unit int) int {
	n := 0
	for _, s := range tr.Spikes[unit*tr.NBins : (unit+1)*tr.NBins] {
		n += int(s)
	}
	return n
}

// Total returns the total number of spikes in the train.
func (tr *Train) Total() int {
	n := 0
	for _, s := range tr.Spikes {
		n += int(s)
	}
	return n
}

// ImageProbs converts normalized [0,1] pixel intensities into per-bin
// spike probabilities at peak rate maxF (Hz) and bin width binSec (s).
func ImageProbs(img []float32, maxF, binSec float32, probs []float32) []float32 {
	if cap(probs) < len(img) {
		probs = make([]float32, len(img))
	}
	probs = probs[:len(img)]
	for i, px := range img {
		probs[i] = mat32.Clamp(px, 0, 1) * maxF * binSec
	}
	return probs
}

// LabelProbs returns one-hot per-bin target probabilities for label among
// nOut units, at rate maxFL (Hz).
func LabelProbs(nOut, label int, maxFL, binSec float32) []float32 {
	probs := make([]float32, nOut)
	if label >= 0 && label < nOut {
		probs[label] = maxFL * binSec
	}
	return probs
}

// NBins returns the number of bins of width binSec in a window of tSim
// seconds, rounded to the nearest integer.
func NBins(tSim, binSec float32) int {
	return int(mat32.Round(tSim / binSec))
}
