// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package device models the analog memory elements (memristors) that realize
synaptic weights in a crossbar.

A single element can be programmed to one of a small number of discrete
resistance levels (the Palette), but each programming event lands on a noisy
sample of that level's Gaussian distribution.  Several elements are wired in
parallel to form one synapse (a Group), and the group's parallel conductance
is mapped through a fixed affine transform (Calib) into an effective weight.
*/
package device

import (
	"errors"
	"fmt"
	"math"

	"github.com/emer/emergent/v2/erand"
	"github.com/goki/ki/ints"
)

// ErrConfig is returned (wrapped) for any device or configuration problem
// that makes a run impossible: short palettes, singular calibration systems,
// empty initialization buckets.
var ErrConfig = errors.New("configuration error")

// minResFrac is the fraction of the smallest level mean used as the floor
// for sampled resistances, so that conductances stay finite and positive.
const minResFrac = 0.01

// Palette is the ordered set of discrete resistance levels that each
// crossbar element can be programmed to.  Level 0 has the highest
// resistance (lowest conductance), and the level index increases with
// conductance.
type Palette struct {

	// mean resistance of each level, in ohms -- must be decreasing
	Means []float64

	// standard deviation of each level, in ohms -- programming noise
	Sigmas []float64
}

// Defaults sets the measured 10-level device characteristics.
func (p *Palette) Defaults() {
	p.Means = []float64{25014, 18022, 13360, 11085, 9118, 6620, 5387, 4670, 4008, 3534}
	p.Sigmas = []float64{2969, 2332, 917.1, 1110, 805.6, 726.2, 412.9, 234, 198.4, 237.5}
}

// NLevels returns the number of discrete levels.
func (p *Palette) NLevels() int {
	return len(p.Means)
}

// checkShape checks the minimal structural requirements needed to
// calibrate and sample from the palette.
func (p *Palette) checkShape() error {
	if len(p.Means) < 2 {
		return fmt.Errorf("%w: device palette needs at least 2 levels, has %d", ErrConfig, len(p.Means))
	}
	if len(p.Sigmas) != len(p.Means) {
		return fmt.Errorf("%w: device palette has %d means but %d sigmas", ErrConfig, len(p.Means), len(p.Sigmas))
	}
	for i, m := range p.Means {
		if !(m > 0) || math.IsInf(m, 0) {
			return fmt.Errorf("%w: device level %d mean resistance %g must be positive and finite", ErrConfig, i, m)
		}
		if p.Sigmas[i] < 0 || math.IsNaN(p.Sigmas[i]) {
			return fmt.Errorf("%w: device level %d sigma %g must be non-negative", ErrConfig, i, p.Sigmas[i])
		}
	}
	return nil
}

// Validate returns an error if the palette cannot be used for simulation.
// In addition to the structural checks, level means must be strictly
// decreasing so that stepping "up" always increases conductance.
func (p *Palette) Validate() error {
	if err := p.checkShape(); err != nil {
		return err
	}
	for i := 1; i < len(p.Means); i++ {
		if p.Means[i] >= p.Means[i-1] {
			return fmt.Errorf("%w: device level means must be strictly decreasing (level %d: %g >= %g)", ErrConfig, i, p.Means[i], p.Means[i-1])
		}
	}
	return nil
}

// MinRes is the floor applied to sampled resistances.
func (p *Palette) MinRes() float64 {
	return minResFrac * p.Means[len(p.Means)-1]
}

// ClampLevel clamps a level index to the valid range.
// Stepping past either end of the palette is silently absorbed here,
// matching the saturation of a physical device.
func (p *Palette) ClampLevel(lvl int) int {
	return ints.MaxInt(0, ints.MinInt(lvl, p.NLevels()-1))
}

// ClassifyLevel returns the index of the level whose mean is nearest to r.
// Ties go to the lowest index.
func (p *Palette) ClassifyLevel(r float64) int {
	best := 0
	bestDif := math.Abs(r - p.Means[0])
	for i := 1; i < len(p.Means); i++ {
		dif := math.Abs(r - p.Means[i])
		if dif < bestDif {
			best = i
			bestDif = dif
		}
	}
	return best
}

// Sample draws a physical resistance for the given level from its
// Gaussian, floored at MinRes.
func (p *Palette) Sample(lvl int, rnd erand.Rand) float64 {
	r := p.Means[lvl] + p.Sigmas[lvl]*rnd.NormFloat64(-1)
	return math.Max(r, p.MinRes())
}

// StepLevel reprograms element elem of group g by one level in the
// direction given by the sign of dir (0 = same level), clamping at the
// palette bounds, and resamples the element's resistance.
// Returns the classified level before and the target level after.
func (p *Palette) StepLevel(g Group, elem, dir int, rnd erand.Rand) (from, to int) {
	from = p.ClassifyLevel(g[elem])
	step := 0
	switch {
	case dir > 0:
		step = 1
	case dir < 0:
		step = -1
	}
	to = p.ClampLevel(from + step)
	g[elem] = p.Sample(to, rnd)
	return
}

// States returns every monotonic per-group level configuration that is
// reachable from all-lowest to all-highest by raising one element at a
// time, last element first.  There are NLevels*nCross - (nCross-1) of them,
// ordered by increasing conductance.
func (p *Palette) States(nCross int) [][]int {
	nl := p.NLevels()
	states := make([][]int, 0, nl*nCross-(nCross-1))
	cur := make([]int, nCross)
	for lvl := 0; lvl < nl-1; lvl++ {
		for j := 0; j < nCross; j++ {
			st := make([]int, nCross)
			copy(st, cur)
			states = append(states, st)
			cur[nCross-j-1] = lvl + 1
		}
	}
	return append(states, cur)
}

// LevelGroup returns the noise-free group for the given per-element levels.
func (p *Palette) LevelGroup(lvls []int) Group {
	g := make(Group, len(lvls))
	for i, l := range lvls {
		g[i] = p.Means[l]
	}
	return g
}

// Levels classifies every element of g.
func (p *Palette) Levels(g Group) []int {
	lvls := make([]int, len(g))
	for i, r := range g {
		lvls[i] = p.ClassifyLevel(r)
	}
	return lvls
}
