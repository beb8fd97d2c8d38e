// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"

	"github.com/emer/emergent/v2/erand"
	"github.com/emer/etable/v2/minmax"
)

// NBuckets is the number of weight-range buckets used by InitGroups.
const NBuckets = 4

// InitStats reports how InitGroups populated its buckets.
type InitStats struct {

	// number of monotonic states falling in each bucket
	States [NBuckets]int

	// number of synapses assigned to each bucket
	Assigned [NBuckets]int

	// bucket index of each synapse, in rows*cols order
	Bucket []int
}

// bucketOf returns the bucket for weight w within rng: half-open quarters,
// with the top quarter closed on the right.  -1 if outside of rng.
func bucketOf(w float64, rng minmax.F64) int {
	if w < rng.Min || w > rng.Max {
		return -1
	}
	q := (rng.Max - rng.Min) / NBuckets
	for b := 0; b < NBuckets-1; b++ {
		if w < rng.Min+float64(b+1)*q {
			return b
		}
	}
	return NBuckets - 1
}

// InitGroups creates a rows x cols weight matrix realized by groups of
// nCross elements each, with weights spread evenly across the four
// quarters of rng.  The noise-free weight of every monotonic state is
// bucketed, each bucket receives n/4 synapses (the first n%4 buckets get
// one extra), drawn with replacement from its states, the assignment
// order is permuted, and every element is sampled from its level's
// Gaussian.  The returned wts are the effective weights of the sampled
// groups, and res holds the group resistances in (row, col, elem) order.
func InitGroups(rows, cols int, p *Palette, cal Calib, nCross int, rng minmax.F64, rnd erand.Rand) (wts []float32, res []float64, st *InitStats, err error) {
	n := rows * cols
	states := p.States(nCross)
	var byBucket [NBuckets][]int
	st = &InitStats{Bucket: make([]int, 0, n)}
	for si, lvls := range states {
		w := cal.Weight(p.LevelGroup(lvls))
		b := bucketOf(w, rng)
		if b < 0 {
			continue
		}
		byBucket[b] = append(byBucket[b], si)
		st.States[b]++
	}
	for b := range byBucket {
		if len(byBucket[b]) == 0 {
			return nil, nil, st, fmt.Errorf("%w: no device state has a weight in initialization bucket %d of [%g, %g] (nCross: %d)", ErrConfig, b, rng.Min, rng.Max, nCross)
		}
	}

	pick := make([]int, 0, n)
	for b := range byBucket {
		nb := n / NBuckets
		if b < n%NBuckets {
			nb++
		}
		bs := byBucket[b]
		for i := 0; i < nb; i++ {
			pick = append(pick, bs[rnd.Intn(len(bs), -1)])
			st.Bucket = append(st.Bucket, b)
		}
		st.Assigned[b] = nb
	}
	ord := make([]int, n)
	for i := range ord {
		ord[i] = i
	}
	erand.PermuteInts(ord, rnd)

	wts = make([]float32, n)
	res = make([]float64, n*nCross)
	bucket := make([]int, n)
	for i, oi := range ord {
		lvls := states[pick[oi]]
		g := Group(res[i*nCross : (i+1)*nCross])
		for e, l := range lvls {
			g[e] = p.Sample(l, rnd)
		}
		wts[i] = float32(cal.Weight(g))
		bucket[i] = st.Bucket[oi]
	}
	st.Bucket = bucket
	return wts, res, st, nil
}
