// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/emer/memsnn/config"
	"github.com/emer/memsnn/logging"
	"golang.org/x/sync/errgroup"
)

// Sweep runs every run of every configuration point on a bounded pool of
// workers.  Each run owns its network and random source, and the datasets
// are shared read-only.  The first error stops scheduling of new runs and
// is returned.
type Sweep struct {

	// configurations to run, each finalized
	Points []*config.Config

	Train Dataset
	Test  Dataset

	// maximum number of runs in flight -- 0 = number of CPUs
	Workers int

	// this process's share of the points: those with index % NProcs == Rank
	Rank   int
	NProcs int

	Log      *slog.Logger
	Progress *logging.Progress

	// if set, points for which Skip returns true are not run
	Skip func(cfg *config.Config) bool

	// if set, called once per point as soon as all of its runs finish.
	// Calls are serialized.
	OnResult func(res *Result) error
}

// Shard returns the indexes in [0, n) assigned to rank out of nprocs.
func Shard(n, rank, nprocs int) []int {
	if nprocs < 1 {
		nprocs = 1
	}
	var idx []int
	for i := rank; i < n; i += nprocs {
		idx = append(idx, i)
	}
	return idx
}

// pointRuns collects the run records of one point.
type pointRuns struct {
	cfg  *config.Config
	recs []*RunRecord
	left int
}

// Run executes the sweep and returns the results of this process's
// points, in point order.
func (sw *Sweep) Run(ctx context.Context) ([]*Result, error) {
	lg := sw.Log
	if lg == nil {
		lg = slog.New(slog.DiscardHandler)
	}
	workers := sw.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var pts []*pointRuns
	for _, pi := range Shard(len(sw.Points), sw.Rank, sw.NProcs) {
		cfg := sw.Points[pi]
		if sw.Skip != nil && sw.Skip(cfg) {
			lg.Info("skipping completed configuration", "U_in", cfg.Net.HidLearn.Thr, "U_out", cfg.Net.OutLearn.Thr)
			continue
		}
		pts = append(pts, &pointRuns{cfg: cfg, recs: make([]*RunRecord, cfg.Run.NRuns), left: cfg.Run.NRuns})
	}

	results := make([]*Result, len(pts))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for pi, pt := range pts {
		rn := NewRunner(pt.cfg, sw.Train, sw.Test, lg)
		rn.Progress = sw.Progress
		for r := 0; r < pt.cfg.Run.NRuns; r++ {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				rec, err := rn.Run(ctx, r)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				pt.recs[r] = rec
				pt.left--
				if pt.left > 0 {
					return nil
				}
				res, err := Aggregate(pt.cfg, pt.recs)
				if err != nil {
					return err
				}
				results[pi] = res
				lg.Info("configuration complete", "U_in", res.UIn, "U_out", res.UOut, "cls_mean", res.ClsMean, "cont_mean", res.ContMean)
				if sw.OnResult != nil {
					return sw.OnResult(res)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
