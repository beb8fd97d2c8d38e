// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"fmt"

	"github.com/emer/memsnn/device"
)

// DevParams describe the crossbar devices realizing the weights.
type DevParams struct {
	Palette device.Palette `desc:"discrete resistance levels of each device element"`
	NCross  int            `def:"7" min:"1" desc:"number of parallel device elements per synapse"`
	WInMax  float64        `def:"3" desc:"input -> hidden weights map onto [-WInMax, WInMax]"`
	WOutMax float64        `def:"1.5" desc:"hidden -> output weights map onto [-WOutMax, WOutMax]"`
}

func (dp *DevParams) Defaults() {
	dp.Palette.Defaults()
	dp.NCross = 7
	dp.WInMax = 3
	dp.WOutMax = 1.5
}

// NetParams are all of the parameters of the network.
type NetParams struct {
	NIn  int `def:"784" desc:"number of input units (image pixels)"`
	NHid int `def:"200" desc:"number of hidden neurons"`
	NOut int `def:"2" desc:"number of output neurons"`

	Hid      LIFParams   `view:"inline" desc:"hidden neuron parameters"`
	Out      LIFParams   `view:"inline" desc:"output neuron parameters"`
	Err      ErrParams   `view:"inline" desc:"error neuron and error compartment parameters"`
	HidLearn LearnParams `view:"inline" desc:"input -> hidden learning parameters"`
	OutLearn LearnParams `view:"inline" desc:"hidden -> output learning parameters"`
	Dev      DevParams   `view:"inline" desc:"crossbar device parameters"`

	InHidCal  device.Calib `view:"-" desc:"calibration of the input -> hidden crossbar, computed by Calibrate"`
	HidOutCal device.Calib `view:"-" desc:"calibration of the hidden -> output crossbar, computed by Calibrate"`
}

func (np *NetParams) Defaults() {
	np.NIn = 784
	np.NHid = 200
	np.NOut = 2
	np.Hid.Defaults()
	np.Out.OutDefaults()
	np.Err.Defaults()
	np.HidLearn.Defaults()
	np.OutLearn.OutDefaults()
	np.Dev.Defaults()
}

// Update must be called after any changes to parameters
func (np *NetParams) Update() {
	np.Hid.Update()
	np.Out.Update()
	np.Err.Update()
	np.HidLearn.Update()
	np.OutLearn.Update()
}

// SetDt sets the integration step on all neuron populations.
func (np *NetParams) SetDt(dt float32) {
	np.Hid.Dt = dt
	np.Out.Dt = dt
	np.Err.Dt = dt
	np.Update()
}

// Validate checks the parameters for anything that would make a run
// impossible.
func (np *NetParams) Validate() error {
	if np.NIn < 1 || np.NHid < 1 || np.NOut < 1 {
		return fmt.Errorf("%w: layer sizes must be positive: %d, %d, %d", device.ErrConfig, np.NIn, np.NHid, np.NOut)
	}
	if err := np.Dev.Palette.Validate(); err != nil {
		return err
	}
	if err := np.HidLearn.Validate(); err != nil {
		return fmt.Errorf("hidden learning: %w", err)
	}
	if err := np.OutLearn.Validate(); err != nil {
		return fmt.Errorf("output learning: %w", err)
	}
	return nil
}

// Calibrate computes the read-out calibration of both crossbars.
// Must be called once before any network is built.
func (np *NetParams) Calibrate() error {
	var err error
	np.InHidCal, err = device.Calibrate(&np.Dev.Palette, np.Dev.NCross, np.Dev.WInMax)
	if err != nil {
		return fmt.Errorf("input -> hidden crossbar: %w", err)
	}
	np.HidOutCal, err = device.Calibrate(&np.Dev.Palette, np.Dev.NCross, np.Dev.WOutMax)
	if err != nil {
		return fmt.Errorf("hidden -> output crossbar: %w", err)
	}
	return nil
}

// Calibrated returns true if Calibrate has been run.
func (np *NetParams) Calibrated() bool {
	return np.InHidCal.Rf != 0 && np.HidOutCal.Rf != 0
}
