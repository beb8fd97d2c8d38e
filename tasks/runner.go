// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emer/emergent/v2/erand"
	"github.com/emer/etable/v2/etensor"
	"github.com/emer/memsnn/config"
	"github.com/emer/memsnn/logging"
	"github.com/emer/memsnn/snn"
	"github.com/emer/memsnn/spike"
)

// Eval is the outcome of testing one task.
type Eval struct {

	// number of test examples presented
	N int

	// number classified correctly
	Correct int

	// number with no output spikes at all -- excluded from Acc
	Silent int

	// Correct / (N - Silent), or 0 if every example was silent
	Acc float64
}

// RunRecord holds everything measured in one run.
type RunRecord struct {

	// run index
	Run int

	// accuracy of tested task (row) after training through task (col) -- only row <= col is defined
	Acc *etensor.Float64

	// per-task commit counts of the input -> hidden crossbar, [hid, in, task]
	InCommits *etensor.Float64

	// per-task commit counts of the hidden -> output crossbar, [out, hid, task]
	OutCommits *etensor.Float64

	// all evaluations, [trained-through task][tested task]
	Evals [][]Eval

	// wall time of the run
	Elapsed time.Duration
}

// NewRunRecord returns an empty record for nTasks tasks.
func NewRunRecord(run, nTasks int, np *snn.NetParams) *RunRecord {
	rec := &RunRecord{Run: run}
	rec.Acc = etensor.NewFloat64([]int{nTasks, nTasks}, nil, []string{"Tested", "Trained"})
	rec.InCommits = etensor.NewFloat64([]int{np.NHid, np.NIn, nTasks}, nil, []string{"Hid", "In", "Task"})
	rec.OutCommits = etensor.NewFloat64([]int{np.NOut, np.NHid, nTasks}, nil, []string{"Out", "Hid", "Task"})
	rec.Evals = make([][]Eval, nTasks)
	return rec
}

// addCommits copies the per-task commit counts of pj into the task slot of tsr.
func addCommits(tsr *etensor.Float64, pj *snn.Prjn, task int) {
	nt := tsr.Dim(2)
	for syi, c := range pj.Commits.Values {
		tsr.Values[syi*nt+task] = c
	}
}

// Runner runs the whole task sequence for one configuration.
// Train and Test are only read, so one Runner can run several runs
// concurrently.
type Runner struct {
	Cfg      *config.Config
	Train    Dataset
	Test     Dataset
	Log      *slog.Logger
	Progress *logging.Progress

	// label of the configuration, for progress lines
	Label string
}

// NewRunner returns a runner for cfg, which must be finalized.
func NewRunner(cfg *config.Config, train, test Dataset, lg *slog.Logger) *Runner {
	if lg == nil {
		lg = slog.New(slog.DiscardHandler)
	}
	return &Runner{Cfg: cfg, Train: train, Test: test, Log: lg,
		Label: fmt.Sprintf("U_in %g U_out %g", cfg.Net.HidLearn.Thr, cfg.Net.OutLearn.Thr)}
}

// subsample returns n distinct example indexes of ds, in random order.
func subsample(ds Dataset, n int, rnd erand.Rand) []int {
	perm := rnd.Perm(ds.Len(), -1)
	if n < len(perm) {
		perm = perm[:n]
	}
	return perm
}

// encoder holds the per-worker spike encoding buffers.
type encoder struct {
	enc   config.EncConfig
	probs []float32
	in    *spike.Train
	tgt   *spike.Train
}

func newEncoder(cfg *config.Config) *encoder {
	return &encoder{enc: cfg.Enc, in: spike.NewTrain(cfg.Net.NIn, cfg.Enc.NBins), tgt: spike.NewTrain(cfg.Net.NOut, cfg.Enc.NBins)}
}

func (ec *encoder) image(img []float32, rnd erand.Rand) *spike.Train {
	ec.probs = spike.ImageProbs(img, ec.enc.MaxF, ec.enc.BinSec, ec.probs)
	ec.in.Fill(ec.probs, rnd)
	return ec.in
}

func (ec *encoder) label(nOut, tgt int, rnd erand.Rand) *spike.Train {
	ec.tgt.Fill(spike.LabelProbs(nOut, tgt, ec.enc.MaxFL, ec.enc.BinSec), rnd)
	return ec.tgt
}

// Run runs the full task sequence once, with its own random source
// seeded from Seed + run: draw the train and test subsets, draw the
// feedback weights, then for each task initialize both crossbars, train
// on the task's examples in random order, and test every task so far.
func (rn *Runner) Run(ctx context.Context, run int) (*RunRecord, error) {
	cfg := rn.Cfg
	st := time.Now()
	rnd := erand.NewSysRand(cfg.Run.Seed + int64(run))
	trainIdx := subsample(rn.Train, cfg.Run.NTrain, rnd)
	testIdx := subsample(rn.Test, cfg.Run.NTest, rnd)

	nt, err := snn.NewNetwork(fmt.Sprintf("Run%d", run), &cfg.Net, cfg.Enc.NBins, rnd)
	if err != nil {
		return nil, err
	}
	nt.InitFeedback()
	tks := NewTasks(cfg.Run.Tasks)
	rec := NewRunRecord(run, len(tks), &cfg.Net)
	ec := newEncoder(cfg)
	lg := rn.Log.With("cfg", rn.Label, "run", run)

	for ti, tk := range tks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nt.NewTask()
		if err := nt.InitWeights(); err != nil {
			return nil, fmt.Errorf("run %d task %v: %w", run, tk, err)
		}
		idx := tk.Filter(rn.Train, trainIdx)
		erand.PermuteInts(idx, rnd)
		for ep := 0; ep < cfg.Run.NEpochs; ep++ {
			for _, i := range idx {
				tgt := tk.Target(rn.Train.Label(i))
				in := ec.image(rn.Train.Image(i), rnd)
				nt.Train(in, ec.label(cfg.Net.NOut, tgt, rnd), tgt)
			}
		}
		addCommits(rec.InCommits, nt.InHid, ti)
		addCommits(rec.OutCommits, nt.HidOut, ti)
		if lg.Enabled(ctx, slog.LevelDebug) {
			inWt, _ := nt.InHid.SynVarAvg("Wt")
			outWt, _ := nt.HidOut.SynVarAvg("Wt")
			lg.Debug("trained", "task", tk.String(), "examples", len(idx), "inSteps", nt.InHid.NSteps, "outSteps", nt.HidOut.NSteps,
				"inWt", inWt, "outWt", outWt)
		}

		rec.Evals[ti] = make([]Eval, ti+1)
		for tj := 0; tj <= ti; tj++ {
			ev := rn.evaluate(ctx, lg, nt, tks[tj], testIdx, ec, rnd)
			rec.Evals[ti][tj] = ev
			rec.Acc.Set([]int{tj, ti}, ev.Acc)
			if ev.Silent > 0 {
				lg.Debug("silent test examples excluded", "task", tks[tj].String(), "silent", ev.Silent, "of", ev.N)
			}
		}
		rn.Progress.Printf("%s run %d task %d/%d (%v): acc %.4f", rn.Label, run, ti+1, len(tks), tk, rec.Acc.Value([]int{ti, ti}))
	}
	rec.Elapsed = time.Since(st)
	lg.Info("run complete", "elapsed", rec.Elapsed.Round(time.Second))
	return rec, nil
}

// evaluate tests the network on the examples of task tk among the test
// indexes idx, without learning.  The prediction is the output with the
// most spikes (ties to output 0), and examples with no output spikes
// are excluded.  Each example is logged at trace level.
func (rn *Runner) evaluate(ctx context.Context, lg *slog.Logger, nt *snn.Network, tk Task, idx []int, ec *encoder, rnd erand.Rand) Eval {
	var ev Eval
	trace := lg.Enabled(ctx, logging.LevelTrace)
	for _, i := range tk.Filter(rn.Test, idx) {
		ev.N++
		nt.Infer(ec.image(rn.Test.Image(i), rnd))
		pred, tot := nt.Out.MaxCount()
		if trace {
			lg.Log(ctx, logging.LevelTrace, "eval example", "task", tk.String(), "index", i,
				"label", rn.Test.Label(i), "pred", pred, "outSpikes", tot)
		}
		if tot == 0 {
			ev.Silent++
			continue
		}
		if pred == tk.Target(rn.Test.Label(i)) {
			ev.Correct++
		}
	}
	if n := ev.N - ev.Silent; n > 0 {
		ev.Acc = float64(ev.Correct) / float64(n)
	}
	return ev
}
