// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"math"
	"strings"
	"testing"

	"github.com/emer/emergent/v2/erand"
	"github.com/emer/memsnn/device"
	"github.com/emer/memsnn/spike"
)

func noiselessPalette() *device.Palette {
	p := &device.Palette{}
	p.Defaults()
	p.Sigmas = make([]float64, len(p.Means))
	return p
}

func testPrjn(t *testing.T) *Prjn {
	pal := noiselessPalette()
	nc := 3
	cal, err := device.Calibrate(pal, nc, 1)
	if err != nil {
		t.Fatal(err)
	}
	send := NewLayer("Send", 3, true)
	recv := NewLayer("Recv", 2, false)
	recv.InitExample()
	lp := LearnParams{}
	lp.Defaults()
	lp.Lrate = 1
	lp.Thr = 0.5
	pj := NewPrjn("SendRecv", send, recv, pal, nc, cal, lp)
	if _, err := pj.InitWeights(erand.NewSysRand(4)); err != nil {
		t.Fatal(err)
	}
	return pj
}

func TestSynVarAvg(t *testing.T) {
	pj := testPrjn(t)
	for i := range pj.Syns {
		pj.Syns[i].Wt = float32(i)
		pj.Syns[i].Elig = -0.5
	}
	n := float32(len(pj.Syns))
	if wt, err := pj.SynVarAvg("Wt"); err != nil || wt != (n-1)/2 {
		t.Errorf("SynVarAvg(Wt) = %g, %v, want %g", wt, err, (n-1)/2)
	}
	if el, err := pj.SynVarAvg("Elig"); err != nil || el != -0.5 {
		t.Errorf("SynVarAvg(Elig) = %g, %v", el, err)
	}
	if _, err := pj.SynVarAvg("Vm"); err == nil {
		t.Errorf("expected error for unknown variable")
	}
}

func TestPrjnCommit(t *testing.T) {
	pj := testPrjn(t)
	rnd := erand.NewSysRand(9)
	top := pj.Pal.NLevels() - 1
	pj.Send.ApplySpikes([]float32{1, 0, 1})
	u := []float32{-1, 0.2}

	lvls := make([][]int, len(pj.Syns))
	for i := range pj.Syns {
		lvls[i] = pj.Pal.Levels(pj.Group(i))
	}

	pj.Accumulate(u)
	n := pj.Commit(rnd)
	if n != 2 {
		t.Fatalf("expected 2 commits, got %d", n)
	}
	if pj.Cursor != 1 || pj.NSteps != 2 || pj.NEvents != 1 {
		t.Errorf("cursor %d steps %d events %d, want 1 2 1", pj.Cursor, pj.NSteps, pj.NEvents)
	}
	for _, si := range []int{0, 2} {
		syi := pj.SynIdx(0, si)
		sy := &pj.Syns[syi]
		if sy.Elig != 0 {
			t.Errorf("eligibility %g not reset after commit", sy.Elig)
		}
		g := pj.Group(syi)
		after := pj.Pal.Levels(g)
		want := lvls[syi][0] + 1
		if want > top {
			want = top
		}
		if after[0] != want {
			t.Errorf("syn %d element 0: level %d, want %d", syi, after[0], want)
		}
		for e := 1; e < pj.NCross; e++ {
			if after[e] != lvls[syi][e] {
				t.Errorf("syn %d element %d changed", syi, e)
			}
		}
		if d := math.Abs(float64(sy.Wt) - pj.Cal.Weight(g)); d > 1e-5 {
			t.Errorf("weight %g does not match group %g", sy.Wt, pj.Cal.Weight(g))
		}
		if pj.Commits.Value([]int{0, si}) != 1 {
			t.Errorf("commit count not recorded for syn %d", syi)
		}
	}
	if e := pj.Syns[pj.SynIdx(1, 0)].Elig; math.Abs(float64(e)+0.2) > 1e-6 {
		t.Errorf("below-threshold eligibility = %g, want -0.2", e)
	}
	if e := pj.Syns[pj.SynIdx(0, 1)].Elig; e != 0 {
		t.Errorf("inactive sender accumulated eligibility %g", e)
	}

	// receiver 1 crosses on the third bin, stepping element 2 down
	pj.Accumulate(u)
	if pj.Commit(rnd) != 2 {
		t.Errorf("receiver 0 should commit again")
	}
	pj.Accumulate([]float32{0, 0.2})
	if n := pj.Commit(rnd); n != 2 {
		t.Fatalf("expected 2 commits for receiver 1, got %d", n)
	}
	syi := pj.SynIdx(1, 0)
	after := pj.Pal.Levels(pj.Group(syi))
	want := lvls[syi][2%pj.NCross] - 1
	if want < 0 {
		want = 0
	}
	if after[2] != want {
		t.Errorf("element at cursor 2: level %d, want %d", after[2], want)
	}
	if pj.Cursor != 3 {
		t.Errorf("cursor %d, want 3", pj.Cursor)
	}
	total := 0.0
	for _, c := range pj.Commits.Values {
		total += c
	}
	if int(total) != pj.NSteps {
		t.Errorf("commit counts %g != steps %d", total, pj.NSteps)
	}

	pj.InitTask()
	if pj.NSteps != 0 || pj.Cursor != 3 {
		t.Errorf("InitTask: steps %d cursor %d", pj.NSteps, pj.Cursor)
	}
	pj.Learn.CursorReset = true
	pj.InitTask()
	if pj.Cursor != 0 {
		t.Errorf("InitTask with CursorReset left cursor at %d", pj.Cursor)
	}
}

func TestPrjnPostWindow(t *testing.T) {
	pj := testPrjn(t)
	pj.Send.ApplySpikes([]float32{1, 1, 1})
	pj.Recv.Neurons[1].I = 5
	pj.Accumulate([]float32{-0.1, -0.1})
	for si := 0; si < 3; si++ {
		if pj.Syns[pj.SynIdx(1, si)].Elig != 0 {
			t.Errorf("receiver outside of current window accumulated")
		}
		if pj.Syns[pj.SynIdx(0, si)].Elig == 0 {
			t.Errorf("receiver inside current window did not accumulate")
		}
	}
}

func testNetParams() *NetParams {
	np := &NetParams{}
	np.Defaults()
	np.NIn = 20
	np.NHid = 10
	return np
}

func TestNetworkInferNoMutation(t *testing.T) {
	np := testNetParams()
	nt, err := NewNetwork("Test", np, 50, erand.NewSysRand(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := nt.InitWeights(); err != nil {
		t.Fatal(err)
	}
	nt.InitFeedback()
	wIn := nt.InHid.Weights()
	wOut := nt.HidOut.Weights()
	res := append([]float64(nil), nt.InHid.Res...)

	probs := make([]float32, np.NIn)
	for i := range probs {
		probs[i] = 0.3
	}
	rnd := erand.NewSysRand(2)
	for ex := 0; ex < 5; ex++ {
		cnt := nt.Infer(spike.Poisson(probs, 50, rnd))
		if len(cnt) != np.NOut {
			t.Fatalf("got %d counts", len(cnt))
		}
	}
	for i, w := range nt.InHid.Weights() {
		if w != wIn[i] {
			t.Fatalf("inference changed input weight %d", i)
		}
	}
	for i, w := range nt.HidOut.Weights() {
		if w != wOut[i] {
			t.Fatalf("inference changed output weight %d", i)
		}
	}
	for i, r := range nt.InHid.Res {
		if r != res[i] {
			t.Fatalf("inference changed device %d", i)
		}
	}
}

func TestNetworkTrain(t *testing.T) {
	np := testNetParams()
	np.HidLearn.Thr = 0.05
	np.OutLearn.Thr = 0.001
	nt, err := NewNetwork("Test", np, 100, erand.NewSysRand(3))
	if err != nil {
		t.Fatal(err)
	}
	if err := nt.InitWeights(); err != nil {
		t.Fatal(err)
	}
	nt.InitFeedback()
	nt.NewTask()
	probs := make([]float32, np.NIn)
	for i := range probs {
		probs[i] = 0.5
	}
	rnd := erand.NewSysRand(5)
	for ex := 0; ex < 10; ex++ {
		tgtIdx := ex % 2
		tgt := spike.Poisson(spike.LabelProbs(np.NOut, tgtIdx, 100, 0.001), 100, rnd)
		nt.Train(spike.Poisson(probs, 100, rnd), tgt, tgtIdx)
	}
	for _, pj := range []*Prjn{nt.InHid, nt.HidOut} {
		total := 0.0
		for _, c := range pj.Commits.Values {
			total += c
		}
		if int(total) != pj.NSteps {
			t.Errorf("%s: commit counts %g != steps %d", pj.Name, total, pj.NSteps)
		}
		for i := range pj.Syns {
			if d := math.Abs(float64(pj.Syns[i].Wt) - pj.Cal.Weight(pj.Group(i))); d > 1e-4 {
				t.Fatalf("%s: weight %d out of sync with its device group", pj.Name, i)
			}
		}
	}
	if nt.HidOut.NSteps == 0 {
		t.Errorf("no output commits with a low threshold")
	}
}

func TestNetworkLearningDisabled(t *testing.T) {
	np := testNetParams()
	np.HidLearn.Thr = float32(math.Inf(1))
	np.OutLearn.Thr = float32(math.Inf(1))
	nt, err := NewNetwork("Test", np, 50, erand.NewSysRand(3))
	if err != nil {
		t.Fatal(err)
	}
	if err := nt.InitWeights(); err != nil {
		t.Fatal(err)
	}
	nt.InitFeedback()
	wIn := nt.InHid.Weights()
	probs := make([]float32, np.NIn)
	for i := range probs {
		probs[i] = 0.5
	}
	rnd := erand.NewSysRand(5)
	tgt := spike.Poisson(spike.LabelProbs(np.NOut, 0, 100, 0.001), 50, rnd)
	nt.Train(spike.Poisson(probs, 50, rnd), tgt, 0)
	for i, w := range nt.InHid.Weights() {
		if w != wIn[i] {
			t.Fatalf("training with learning disabled changed weight %d", i)
		}
	}
}

func TestNetworkConfigError(t *testing.T) {
	np := testNetParams()
	np.Dev.Palette.Means = []float64{1000}
	np.Dev.Palette.Sigmas = []float64{1}
	if _, err := NewNetwork("Test", np, 10, erand.NewSysRand(1)); err == nil {
		t.Errorf("expected error for single-level palette")
	}
	np = testNetParams()
	np.HidLearn.Thr = 0
	if _, err := NewNetwork("Test", np, 10, erand.NewSysRand(1)); err == nil {
		t.Errorf("expected error for zero threshold")
	}
}

func TestSizeReport(t *testing.T) {
	nt, err := NewNetwork("Test", testNetParams(), 10, erand.NewSysRand(1))
	if err != nil {
		t.Fatal(err)
	}
	rep := nt.SizeReport()
	for _, s := range []string{"InHid", "HidOut", "Hid"} {
		if !strings.Contains(rep, s) {
			t.Errorf("size report missing %s:\n%s", s, rep)
		}
	}
}
