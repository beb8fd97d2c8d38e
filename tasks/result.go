// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import (
	"fmt"
	"time"

	"github.com/emer/etable/v2/etensor"
	"github.com/emer/memsnn/config"
	"gonum.org/v1/gonum/stat"
)

// Result summarizes all runs of one configuration.  Standard deviations
// are population (not sample) deviations across runs.
type Result struct {
	UIn, UOut float32

	Tasks []Task

	// accuracy per run, [tested task, trained-through task, run]
	Acc *etensor.Float64

	// mean accuracy of each task right after training it
	ClassAcc []float64

	ClassStd []float64

	// mean accuracy of each task after training the last task
	ClassContAcc []float64

	ClassContStd []float64

	// mean over runs of the average final accuracy across all tasks
	ContMean float64

	ContStd float64

	// mean of the first two tasks' just-trained accuracies
	ClsMean float64

	// commit counts summed over runs, [hid, in, task]
	InCommits *etensor.Float64

	// commit counts summed over runs, [out, hid, task]
	OutCommits *etensor.Float64

	// number of silent test examples across all evaluations
	Silent int

	// total wall time of all runs
	Elapsed time.Duration
}

// Aggregate combines the run records of cfg into a Result.
func Aggregate(cfg *config.Config, recs []*RunRecord) (*Result, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("no runs to aggregate")
	}
	tks := NewTasks(cfg.Run.Tasks)
	nt := len(tks)
	nr := len(recs)
	res := &Result{UIn: cfg.Net.HidLearn.Thr, UOut: cfg.Net.OutLearn.Thr, Tasks: tks}
	res.Acc = etensor.NewFloat64([]int{nt, nt, nr}, nil, []string{"Tested", "Trained", "Run"})
	res.InCommits = etensor.NewFloat64(recs[0].InCommits.Shapes(), nil, []string{"Hid", "In", "Task"})
	res.OutCommits = etensor.NewFloat64(recs[0].OutCommits.Shapes(), nil, []string{"Out", "Hid", "Task"})
	for ri, rec := range recs {
		if rec.Acc.Dim(0) != nt {
			return nil, fmt.Errorf("run %d has %d tasks, want %d", rec.Run, rec.Acc.Dim(0), nt)
		}
		for i := 0; i < nt; i++ {
			for j := 0; j < nt; j++ {
				res.Acc.Set([]int{i, j, ri}, rec.Acc.Value([]int{i, j}))
			}
		}
		for i, c := range rec.InCommits.Values {
			res.InCommits.Values[i] += c
		}
		for i, c := range rec.OutCommits.Values {
			res.OutCommits.Values[i] += c
		}
		for _, evs := range rec.Evals {
			for _, ev := range evs {
				res.Silent += ev.Silent
			}
		}
		res.Elapsed += rec.Elapsed
	}

	last := nt - 1
	res.ClassAcc = make([]float64, nt)
	res.ClassStd = make([]float64, nt)
	res.ClassContAcc = make([]float64, nt)
	res.ClassContStd = make([]float64, nt)
	diag := make([]float64, nr)
	fin := make([]float64, nr)
	cont := make([]float64, nr)
	for i := 0; i < nt; i++ {
		for r := 0; r < nr; r++ {
			diag[r] = res.Acc.Value([]int{i, i, r})
			fin[r] = res.Acc.Value([]int{i, last, r})
			cont[r] += fin[r] / float64(nt)
		}
		res.ClassAcc[i], res.ClassStd[i] = stat.PopMeanStdDev(diag, nil)
		res.ClassContAcc[i], res.ClassContStd[i] = stat.PopMeanStdDev(fin, nil)
	}
	res.ContMean, res.ContStd = stat.PopMeanStdDev(cont, nil)
	if nt >= 2 {
		res.ClsMean = (res.ClassAcc[0] + res.ClassAcc[1]) / 2
	} else {
		res.ClsMean = res.ClassAcc[0]
	}
	return res, nil
}

// NRuns returns the number of runs aggregated
func (res *Result) NRuns() int {
	return res.Acc.Dim(2)
}
