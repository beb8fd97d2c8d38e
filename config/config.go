// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the complete, immutable configuration of a
// simulation: network and device parameters, spike encoding, the task
// sequence, the threshold sweep, and input / output locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/emer/emergent/v2/econfig"
	"github.com/emer/memsnn/device"
	"github.com/emer/memsnn/snn"
	"github.com/emer/memsnn/spike"
	"gopkg.in/yaml.v3"
)

// EncConfig has the spike encoding parameters.
type EncConfig struct {

	// peak input rate in Hz, for a pixel value of 1
	MaxF float32 `default:"250" yaml:"max_f" json:"max_f"`

	// target label rate in Hz
	MaxFL float32 `default:"100" yaml:"max_fl" json:"max_fl"`

	// presentation time per example, in seconds
	TSim float32 `default:"0.15" yaml:"t_sim" json:"t_sim"`

	// bin width, in seconds
	BinSec float32 `default:"0.001" yaml:"bin_sec" json:"bin_sec"`

	// number of bins per example, computed from TSim / BinSec
	NBins int `toml:"-" yaml:"-" json:"-"`
}

// RunConfig has the task sequence and run counts.
type RunConfig struct {

	// size of the training subset drawn for each run
	NTrain int `default:"60000" yaml:"n_train" json:"n_train"`

	// size of the test subset drawn for each run
	NTest int `default:"10000" yaml:"n_test" json:"n_test"`

	// passes over each task's training examples
	NEpochs int `default:"1" yaml:"n_epochs" json:"n_epochs"`

	// number of independent runs per configuration
	NRuns int `default:"5" min:"1" yaml:"n_runs" json:"n_runs"`

	// ordered label pairs: the first label is output 0, the second output 1
	Tasks [][2]int `yaml:"tasks" json:"tasks"`

	// base random seed -- run r uses Seed + r
	Seed int64 `default:"2" yaml:"seed" json:"seed"`
}

// SweepConfig lists the threshold pairs to run.  Every (UIn, UOut)
// combination is one configuration.
type SweepConfig struct {

	// input -> hidden commit thresholds
	UIn []float32 `yaml:"u_in" json:"u_in"`

	// hidden -> output commit thresholds
	UOut []float32 `yaml:"u_out" json:"u_out"`

	// maximum number of runs simulated in parallel -- 0 = number of CPUs
	Workers int `default:"0" yaml:"workers" json:"workers"`
}

// DataConfig locates the dataset.
type DataConfig struct {

	// directory holding the IDX files
	Dir string `default:"data" yaml:"dir" json:"dir"`
}

// OutConfig locates the outputs.
type OutConfig struct {

	// directory results are written to
	Dir string `default:"results" yaml:"dir" json:"dir"`

	// result document format: json or yaml
	Format string `default:"json" yaml:"format" json:"format"`

	// SQLite run ledger, relative to Dir -- empty for none
	DB string `default:"ledger.db" yaml:"db" json:"db"`

	// write a CSV accuracy log next to each result document
	CSV bool `default:"true" yaml:"csv" json:"csv"`
}

// LogConfig controls logging.
type LogConfig struct {

	// log level: trace, debug, info, warn, error
	Level string `default:"info" yaml:"level" json:"level"`
}

// Config is the full configuration.
type Config struct {
	Net   snn.NetParams `yaml:"net" json:"net"`
	Enc   EncConfig     `yaml:"enc" json:"enc"`
	Run   RunConfig     `yaml:"run" json:"run"`
	Sweep SweepConfig   `yaml:"sweep" json:"sweep"`
	Data  DataConfig    `yaml:"data" json:"data"`
	Out   OutConfig     `yaml:"out" json:"out"`
	Log   LogConfig     `yaml:"log" json:"log"`
}

// DefaultTasks are the five digit-pair tasks.
func DefaultTasks() [][2]int {
	return [][2]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {8, 9}}
}

// New returns a configuration with all defaults set and updated.
func New() *Config {
	cfg := &Config{}
	cfg.Defaults()
	cfg.Update()
	return cfg
}

// Defaults sets every field from its default tag, then the network
// parameters and the values tags cannot express.
func (cfg *Config) Defaults() {
	if err := econfig.SetFromDefaults(cfg); err != nil {
		panic(fmt.Errorf("config default tags: %w", err))
	}
	cfg.Net.Defaults()
	cfg.Run.Tasks = DefaultTasks()
	cfg.Sweep.UIn = []float32{0.5}
	cfg.Sweep.UOut = []float32{0.06}
}

// Update computes all derived values.  Must be called after any changes.
func (cfg *Config) Update() {
	if cfg.Enc.BinSec > 0 {
		cfg.Enc.NBins = spike.NBins(cfg.Enc.TSim, cfg.Enc.BinSec)
	}
	cfg.Net.Update()
}

// Validate returns an error wrapping device.ErrConfig for any setting
// that would make a run impossible.
func (cfg *Config) Validate() error {
	if err := cfg.Net.Validate(); err != nil {
		return err
	}
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{device.ErrConfig}, args...)...)
	}
	switch {
	case !(cfg.Enc.BinSec > 0) || !(cfg.Enc.TSim > 0):
		return bad("presentation time %g and bin width %g must be positive", cfg.Enc.TSim, cfg.Enc.BinSec)
	case cfg.Enc.NBins < 1:
		return bad("presentation has no bins")
	case cfg.Enc.MaxF*cfg.Enc.BinSec > 1 || cfg.Enc.MaxFL*cfg.Enc.BinSec > 1:
		return bad("rates %g, %g Hz exceed one spike per bin", cfg.Enc.MaxF, cfg.Enc.MaxFL)
	case cfg.Run.NRuns < 1 || cfg.Run.NEpochs < 1:
		return bad("runs %d and epochs %d must be >= 1", cfg.Run.NRuns, cfg.Run.NEpochs)
	case cfg.Run.NTrain < 1 || cfg.Run.NTest < 1:
		return bad("train %d and test %d subset sizes must be >= 1", cfg.Run.NTrain, cfg.Run.NTest)
	case len(cfg.Run.Tasks) == 0:
		return bad("no tasks")
	case len(cfg.Sweep.UIn) == 0 || len(cfg.Sweep.UOut) == 0:
		return bad("sweep needs at least one U_in and one U_out")
	}
	if cfg.Net.NOut != 2 {
		return bad("tasks are two-class: output layer needs 2 units, has %d", cfg.Net.NOut)
	}
	for i, tk := range cfg.Run.Tasks {
		if tk[0] == tk[1] {
			return bad("task %d uses label %d twice", i, tk[0])
		}
	}
	for _, u := range append(append([]float32{}, cfg.Sweep.UIn...), cfg.Sweep.UOut...) {
		if !(u > 0) {
			return bad("sweep threshold %g must be > 0", u)
		}
	}
	switch cfg.Out.Format {
	case "json", "yaml":
	default:
		return bad("unknown output format %q", cfg.Out.Format)
	}
	return nil
}

// WithThresholds returns a copy of the configuration with the given
// commit thresholds, as one point of the sweep.  The copy shares no
// mutable state with cfg.
func (cfg *Config) WithThresholds(uin, uout float32) *Config {
	c := *cfg
	c.Run.Tasks = append([][2]int(nil), cfg.Run.Tasks...)
	c.Sweep.UIn = []float32{uin}
	c.Sweep.UOut = []float32{uout}
	c.Net.Dev.Palette.Means = append([]float64(nil), cfg.Net.Dev.Palette.Means...)
	c.Net.Dev.Palette.Sigmas = append([]float64(nil), cfg.Net.Dev.Palette.Sigmas...)
	c.Net.HidLearn.Thr = uin
	c.Net.OutLearn.Thr = uout
	return &c
}

// Points returns one configuration per (UIn, UOut) combination, UIn-major.
func (cfg *Config) Points() []*Config {
	pts := make([]*Config, 0, len(cfg.Sweep.UIn)*len(cfg.Sweep.UOut))
	for _, ui := range cfg.Sweep.UIn {
		for _, uo := range cfg.Sweep.UOut {
			pts = append(pts, cfg.WithThresholds(ui, uo))
		}
	}
	return pts
}

// Open reads a configuration file on top of the defaults: TOML, or YAML
// for .yaml / .yml files.  The result is updated, calibrated and validated.
func Open(file string) (*Config, error) {
	cfg := &Config{}
	cfg.Defaults()
	var err error
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		var b []byte
		b, err = os.ReadFile(file)
		if err == nil {
			err = yaml.Unmarshal(b, cfg)
		}
	default:
		_, err = toml.DecodeFile(file, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", file, err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("config %s: %w", file, err)
	}
	return cfg, nil
}

// Finalize updates, validates and calibrates the configuration.
// After this the configuration is treated as read-only.
func (cfg *Config) Finalize() error {
	cfg.Update()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.Net.Calibrate()
}

// Save writes the configuration as TOML, or YAML for .yaml / .yml files.
func (cfg *Config) Save(file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		err = enc.Close()
	default:
		err = toml.NewEncoder(f).Encode(cfg)
	}
	if err != nil {
		return fmt.Errorf("writing config %s: %w", file, err)
	}
	return f.Close()
}
