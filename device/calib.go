// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Group is the set of parallel element resistances (ohms) that realize
// one synapse.
type Group []float64

// Conductance returns the parallel conductance: sum of 1/r.
func (g Group) Conductance() float64 {
	var gs float64
	for _, r := range g {
		gs += 1 / r
	}
	return gs
}

// Resistance returns the parallel (harmonic) resistance of the group.
func (g Group) Resistance() float64 {
	return 1 / g.Conductance()
}

// Calib holds the feedback and bias resistances of the read-out circuit
// for one weight matrix, which map a group's parallel conductance G
// onto a weight: w = Rf*G - Rf/Rb.
type Calib struct {

	// feedback resistance, ohms
	Rf float64

	// bias resistance, ohms
	Rb float64
}

// Weight returns the effective weight of group g.
func (c Calib) Weight(g Group) float64 {
	return c.WeightFmG(g.Conductance())
}

// WeightFmG returns the weight for a parallel conductance value.
func (c Calib) WeightFmG(gs float64) float64 {
	return c.Rf*gs - c.Rf/c.Rb
}

// String returns a compact description
func (c Calib) String() string {
	return fmt.Sprintf("Rf: %.6g  Rb: %.6g", c.Rf, c.Rb)
}

// Calibrate computes the feedback / bias resistance pair for which the
// all-highest-conductance group maps to +wMax and the all-lowest maps to
// -wMax, by solving the 2x2 linear system
//
//	[Gmax  -1] [Rf   ]   [ wMax]
//	[Gmin  -1] [Rf/Rb] = [-wMax]
//
// It is run once at startup for each weight matrix.
func Calibrate(p *Palette, nCross int, wMax float64) (Calib, error) {
	if err := p.checkShape(); err != nil {
		return Calib{}, err
	}
	if nCross < 1 {
		return Calib{}, fmt.Errorf("%w: group size must be >= 1, got %d", ErrConfig, nCross)
	}
	if !(wMax > 0) || math.IsInf(wMax, 0) {
		return Calib{}, fmt.Errorf("%w: max weight must be positive and finite, got %g", ErrConfig, wMax)
	}
	states := p.States(nCross)
	gmin := p.LevelGroup(states[0]).Conductance()
	gmax := p.LevelGroup(states[len(states)-1]).Conductance()

	a := mat.NewDense(2, 2, []float64{gmax, -1, gmin, -1})
	b := mat.NewVecDense(2, []float64{wMax, -wMax})
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return Calib{}, fmt.Errorf("%w: calibration for max weight %g is singular: %v", ErrConfig, wMax, err)
	}
	rf := x.AtVec(0)
	bias := x.AtVec(1)
	if bias == 0 || math.IsNaN(rf) || math.IsInf(rf, 0) {
		return Calib{}, fmt.Errorf("%w: calibration for max weight %g has no finite bias resistance", ErrConfig, wMax)
	}
	return Calib{Rf: rf, Rb: rf / bias}, nil
}
