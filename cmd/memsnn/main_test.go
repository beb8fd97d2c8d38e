// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emer/emergent/v2/erand"
	"github.com/emer/memsnn/mnist"
	"github.com/emer/memsnn/results"
)

const testConfig = `
net:
  nin: 64
  nhid: 10
enc:
  t_sim: 0.02
run:
  n_train: 40
  n_test: 30
  n_runs: 2
sweep:
  u_in: [0.5]
  u_out: [0.06, 0.1]
  workers: 2
`

// fakeData replaces the dataset loader with small synthetic 8x8 sets
// covering all ten labels.
func fakeData(t *testing.T) {
	t.Helper()
	mk := func(n int, seed int64) *mnist.Set {
		rnd := erand.NewSysRand(seed)
		imgs := make([][]float32, n)
		lbls := make([]int, n)
		for i := range imgs {
			lbls[i] = i % 10
			img := make([]float32, 64)
			for p := range img {
				if (p/8)%2 == lbls[i]%2 {
					img[p] = rnd.Float32(-1)
				}
			}
			imgs[i] = img
		}
		st, err := mnist.NewSet(8, 8, imgs, lbls)
		if err != nil {
			t.Fatal(err)
		}
		return st
	}
	old := loadData
	loadData = func(dir string) (*mnist.Set, *mnist.Set, error) {
		return mk(100, 1), mk(60, 2), nil
	}
	t.Cleanup(func() { loadData = old })
}

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	file := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(file, []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("version output: %q", out)
	}
}

func TestConfigCmd(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeConfig(t, dir)
	out, err := execute(t, "--config", cfgFile, "config")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "n_runs: 2") || !strings.Contains(out, "nhid: 10") {
		t.Errorf("config output missing settings:\n%s", out)
	}

	saved := filepath.Join(dir, "saved.toml")
	if _, err := execute(t, "--config", cfgFile, "config", "--save", saved); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "--config", saved, "config")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "n_runs: 2") {
		t.Errorf("saved config not reloaded:\n%s", out)
	}

	if _, err := execute(t, "--config", filepath.Join(dir, "missing.toml"), "config"); err == nil {
		t.Errorf("expected error for missing config file")
	}
}

func TestCalibrateCmd(t *testing.T) {
	out, err := execute(t, "calibrate")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"10 levels", "7 devices", "[-3.0000, 3.0000]", "[-1.5000, 1.5000]"} {
		if !strings.Contains(out, want) {
			t.Errorf("calibrate output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd(t *testing.T) {
	fakeData(t)
	dir := t.TempDir()
	outDir := filepath.Join(dir, "results")
	out, err := execute(t, "--config", writeConfig(t, dir), "--out", outDir, "--log-level", "error",
		"run", "--uin", "0.5", "--uout", "inf")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "U_in 0.5") || !strings.Contains(out, "U_out inf") {
		t.Errorf("run output: %q", out)
	}
	doc := filepath.Join(outDir, results.FileName(0.5, float32(math.Inf(1)), "json"))
	rc, err := results.Open(doc)
	if err != nil {
		t.Fatal(err)
	}
	if rc.NRuns != 2 || len(rc.ClassAcc) != 5 {
		t.Errorf("result has %d runs, %d tasks", rc.NRuns, len(rc.ClassAcc))
	}
	for _, f := range []string{strings.TrimSuffix(doc, ".json") + ".csv", filepath.Join(outDir, "ledger.db")} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing output: %v", err)
		}
	}
}

func TestSweepResume(t *testing.T) {
	fakeData(t)
	dir := t.TempDir()
	cfgFile := writeConfig(t, dir)
	outDir := filepath.Join(dir, "results")
	args := []string{"--config", cfgFile, "--out", outDir, "--log-level", "error", "sweep", "--resume"}
	out, err := execute(t, args...)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "cls_mean"); n != 2 {
		t.Fatalf("first sweep reported %d configurations, want 2:\n%s", n, out)
	}
	out, err = execute(t, args...)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "cls_mean") {
		t.Errorf("resumed sweep reran completed configurations:\n%s", out)
	}
}

func TestSweepBadInputs(t *testing.T) {
	fakeData(t)
	// default config expects 784 inputs, the fake data has 64
	if _, err := execute(t, "--out", t.TempDir(), "sweep"); err == nil {
		t.Errorf("expected error for image size mismatch")
	}
}

func TestLedgerName(t *testing.T) {
	if got := ledgerName("ledger.db", 0, 1); got != "ledger.db" {
		t.Errorf("ledgerName = %q", got)
	}
	if got := ledgerName("ledger.db", 2, 4); got != "ledger_2.db" {
		t.Errorf("ledgerName = %q", got)
	}
}
