// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/emer/emergent/v2/erand"
	"github.com/emer/memsnn/config"
	"github.com/emer/memsnn/logging"
	"github.com/emer/memsnn/mnist"
)

const side = 8

// halves returns a dataset of side x side images where even labels light
// up the top half and odd labels the bottom half, with a little
// per-example jitter.
func halves(n, nLabels int, seed int64) *mnist.Set {
	rnd := erand.NewSysRand(seed)
	imgs := make([][]float32, n)
	lbls := make([]int, n)
	for i := range imgs {
		lbl := i % nLabels
		img := make([]float32, side*side)
		for p := range img {
			top := p < side*side/2
			if top == (lbl%2 == 0) {
				img[p] = 0.8 + 0.2*rnd.Float32(-1)
			}
		}
		imgs[i] = img
		lbls[i] = lbl
	}
	st, _ := mnist.NewSet(side, side, imgs, lbls)
	return st
}

func testConfig(t *testing.T, uin, uout float32) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Net.NIn = side * side
	cfg.Net.NHid = 40
	cfg.Net.HidLearn.Thr = uin
	cfg.Net.OutLearn.Thr = uout
	cfg.Sweep.UIn = []float32{uin}
	cfg.Sweep.UOut = []float32{uout}
	cfg.Enc.MaxF = 500
	cfg.Run.NTrain = 200
	cfg.Run.NTest = 100
	cfg.Run.NRuns = 2
	cfg.Run.Tasks = [][2]int{{0, 1}}
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestTask(t *testing.T) {
	tk := Task{A: 4, B: 5}
	if tk.Target(4) != 0 || tk.Target(5) != 1 || tk.Target(6) != -1 {
		t.Errorf("bad targets")
	}
	ds := halves(20, 10, 1)
	idx := []int{15, 4, 5, 14, 3, 6}
	got := tk.Filter(ds, idx)
	want := []int{4, 14, 15, 5}
	if len(got) != len(want) {
		t.Fatalf("Filter = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Filter = %v, want %v", got, want)
			break
		}
	}
	if s := tk.String(); s != "4/5" {
		t.Errorf("String = %q", s)
	}
}

func TestShard(t *testing.T) {
	tests := []struct {
		n, rank, size int
		want          []int
	}{
		{5, 0, 1, []int{0, 1, 2, 3, 4}},
		{5, 0, 2, []int{0, 2, 4}},
		{5, 1, 2, []int{1, 3}},
		{2, 2, 3, nil},
		{3, 0, 0, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		got := Shard(tt.n, tt.rank, tt.size)
		if len(got) != len(tt.want) {
			t.Errorf("Shard(%d, %d, %d) = %v, want %v", tt.n, tt.rank, tt.size, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Shard(%d, %d, %d) = %v, want %v", tt.n, tt.rank, tt.size, got, tt.want)
			}
		}
	}
}

func TestRunAccMatrix(t *testing.T) {
	cfg := testConfig(t, 0.5, 0.06)
	cfg.Net.NHid = 10
	cfg.Run.NTrain = 40
	cfg.Run.NTest = 24
	cfg.Run.Tasks = [][2]int{{0, 1}, {2, 3}, {4, 5}}
	cfg.Enc.TSim = 0.05
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	train := halves(120, 6, 2)
	test := halves(60, 6, 3)
	rn := NewRunner(cfg, train, test, nil)
	rec, err := rn.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	nt := len(cfg.Run.Tasks)
	for i := 0; i < nt; i++ {
		if len(rec.Evals[i]) != i+1 {
			t.Errorf("after task %d: %d evaluations, want %d", i, len(rec.Evals[i]), i+1)
		}
		for j := 0; j < nt; j++ {
			acc := rec.Acc.Value([]int{i, j})
			if i > j && acc != 0 {
				t.Errorf("Acc[%d, %d] = %g defined above the trained task", i, j, acc)
			}
			if acc < 0 || acc > 1 {
				t.Errorf("Acc[%d, %d] = %g out of range", i, j, acc)
			}
		}
	}
	for _, evs := range rec.Evals {
		for _, ev := range evs {
			if ev.Correct > ev.N-ev.Silent {
				t.Errorf("eval %+v: more correct than counted", ev)
			}
		}
	}
	if rec.InCommits.Dim(2) != nt || rec.OutCommits.Dim(0) != cfg.Net.NOut {
		t.Errorf("bad commit tensor shapes")
	}

	// same seed, same run
	rec2, err := rn.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range rec.Acc.Values {
		if rec2.Acc.Values[i] != v {
			t.Fatalf("run is not reproducible from its seed")
		}
	}
}

func TestRunCanceled(t *testing.T) {
	cfg := testConfig(t, 0.5, 0.06)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(cfg, halves(40, 2, 1), halves(20, 2, 2), nil).Run(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestRunTraceLog(t *testing.T) {
	cfg := testConfig(t, 0.5, 0.06)
	cfg.Run.NTrain = 20
	cfg.Run.NTest = 6
	var buf bytes.Buffer
	lg := logging.NewLogger("trace", &buf)
	if _, err := NewRunner(cfg, halves(40, 2, 1), halves(20, 2, 2), lg).Run(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if n := strings.Count(out, "eval example"); n != 6 {
		t.Errorf("got %d eval example lines, want 6:\n%s", n, out)
	}
	for _, want := range []string{"level=TRACE", "inWt=", "outWt="} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestAggregate(t *testing.T) {
	cfg := config.New()
	cfg.Net.NIn = 3
	cfg.Net.NHid = 2
	cfg.Run.Tasks = [][2]int{{0, 1}, {2, 3}}
	accs := [][4]float64{
		// [0,0] [0,1] [1,0] [1,1]
		{0.9, 0.6, 0, 0.8},
		{0.7, 0.4, 0, 1.0},
	}
	var recs []*RunRecord
	for r, a := range accs {
		rec := NewRunRecord(r, 2, &cfg.Net)
		rec.Acc.Set([]int{0, 0}, a[0])
		rec.Acc.Set([]int{0, 1}, a[1])
		rec.Acc.Set([]int{1, 1}, a[3])
		rec.InCommits.Values[0] = float64(r + 1)
		rec.Evals = [][]Eval{{{N: 10, Silent: 1}}, {{N: 10}, {N: 10, Silent: 2}}}
		recs = append(recs, rec)
	}
	res, err := Aggregate(cfg, recs)
	if err != nil {
		t.Fatal(err)
	}
	near := func(name string, got, want float64) {
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %g, want %g", name, got, want)
		}
	}
	near("ClassAcc[0]", res.ClassAcc[0], 0.8)
	near("ClassStd[0]", res.ClassStd[0], 0.1)
	near("ClassAcc[1]", res.ClassAcc[1], 0.9)
	near("ClassContAcc[0]", res.ClassContAcc[0], 0.5)
	near("ClassContStd[0]", res.ClassContStd[0], 0.1)
	near("ClassContAcc[1]", res.ClassContAcc[1], 0.9)
	// per-run final averages: 0.7 and 0.7
	near("ContMean", res.ContMean, 0.7)
	near("ContStd", res.ContStd, 0)
	near("ClsMean", res.ClsMean, 0.85)
	near("InCommits[0]", res.InCommits.Values[0], 3)
	if res.Silent != 6 || res.NRuns() != 2 {
		t.Errorf("silent %d runs %d", res.Silent, res.NRuns())
	}
	if _, err := Aggregate(cfg, nil); err == nil {
		t.Errorf("expected error for no runs")
	}
}

func TestSweep(t *testing.T) {
	base := testConfig(t, 0.5, 0.06)
	base.Net.NHid = 10
	base.Run.NTrain = 20
	base.Run.NTest = 10
	base.Enc.TSim = 0.03
	base.Sweep.UOut = []float32{0.03, 0.06, 0.12}
	if err := base.Finalize(); err != nil {
		t.Fatal(err)
	}
	pts := base.Points()
	var mu sync.Mutex
	var got []*Result
	sw := &Sweep{
		Points:  pts,
		Train:   halves(60, 2, 1),
		Test:    halves(30, 2, 2),
		Workers: 3,
		Skip: func(cfg *config.Config) bool {
			return cfg.Net.OutLearn.Thr == 0.12
		},
		OnResult: func(res *Result) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, res)
			return nil
		},
	}
	results, err := sw.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || len(got) != 2 {
		t.Fatalf("got %d results, %d callbacks, want 2", len(results), len(got))
	}
	if results[0].UOut != 0.03 || results[1].UOut != 0.06 {
		t.Errorf("results out of point order: %g %g", results[0].UOut, results[1].UOut)
	}
	for _, res := range results {
		if res.NRuns() != base.Run.NRuns {
			t.Errorf("result has %d runs, want %d", res.NRuns(), base.Run.NRuns)
		}
	}

	sw.Rank, sw.NProcs = 1, 2
	sw.Skip = nil
	sw.OnResult = func(res *Result) error { return errors.New("disk full") }
	if _, err := sw.Run(context.Background()); err == nil || err.Error() != "disk full" {
		t.Errorf("expected callback error, got: %v", err)
	}
}

// bands returns a dataset of MNIST-sized images where even labels light
// a band of rows in the upper half and odd labels one in the lower half.
func bands(n, nLabels int, seed int64) *mnist.Set {
	const sz = 28
	rnd := erand.NewSysRand(seed)
	imgs := make([][]float32, n)
	lbls := make([]int, n)
	for i := range imgs {
		lbl := i % nLabels
		lo := sz / 8
		if lbl%2 == 1 {
			lo = 5 * sz / 8
		}
		img := make([]float32, sz*sz)
		for r := lo; r < lo+sz/4; r++ {
			for c := 0; c < sz; c++ {
				img[r*sz+c] = 0.6 + 0.4*rnd.Float32(-1)
			}
		}
		imgs[i] = img
		lbls[i] = lbl
	}
	st, _ := mnist.NewSet(sz, sz, imgs, lbls)
	return st
}

// learnConfig is the default MNIST-sized network on one two-class task.
func learnConfig(t *testing.T, uin, uout float32, nRuns int) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Net.HidLearn.Thr = uin
	cfg.Net.OutLearn.Thr = uout
	cfg.Sweep.UIn = []float32{uin}
	cfg.Sweep.UOut = []float32{uout}
	cfg.Run.NTrain = 400
	cfg.Run.NTest = 200
	cfg.Run.NRuns = nRuns
	cfg.Run.Tasks = [][2]int{{0, 1}}
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

// TestLearning trains a single two-class task whose classes drive
// different input bands.  Without learning the untrained network still
// responds, at chance on average over runs.  With the output crossbar
// learning it must do clearly better.
func TestLearning(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping learning test in short mode")
	}
	train := bands(400, 2, 11)
	test := bands(200, 2, 12)
	inf := float32(math.Inf(1))

	base := learnConfig(t, inf, inf, 10)
	bres := runAll(t, base, train, test)
	for _, c := range bres.OutCommits.Values {
		if c != 0 {
			t.Fatalf("commits recorded with learning disabled")
		}
	}
	if n := base.Run.NRuns * base.Run.NTest; bres.Silent >= n {
		t.Fatalf("untrained network silent on all %d test examples", n)
	}
	if bres.ClassAcc[0] < 0.15 || bres.ClassAcc[0] > 0.85 {
		t.Errorf("baseline accuracy %g not near chance", bres.ClassAcc[0])
	}

	lcfg := learnConfig(t, inf, 0.06, 2)
	lres := runAll(t, lcfg, train, test)
	t.Logf("accuracy without learning: %.3f (%d silent)  with learning: %.3f", bres.ClassAcc[0], bres.Silent, lres.ClassAcc[0])
	if lres.ClassAcc[0] < 0.65 {
		t.Errorf("learned accuracy %g too low", lres.ClassAcc[0])
	}
	if lres.ClassAcc[0] <= bres.ClassAcc[0] {
		t.Errorf("learned accuracy %g does not beat baseline %g", lres.ClassAcc[0], bres.ClassAcc[0])
	}
	total := 0.0
	for _, c := range lres.OutCommits.Values {
		total += c
	}
	if total == 0 {
		t.Errorf("no output commits with learning enabled")
	}
}

func runAll(t *testing.T, cfg *config.Config, train, test Dataset) *Result {
	t.Helper()
	sw := &Sweep{Points: []*config.Config{cfg}, Train: train, Test: test, Workers: 2}
	res, err := sw.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return res[0]
}
