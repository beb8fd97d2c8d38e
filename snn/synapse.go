// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"fmt"
	"reflect"
)

// snn.Synapse holds state for the synaptic connection between neurons.
// The weight is always derived from the device group that realizes it.
type Synapse struct {
	Wt   float32 `desc:"effective synaptic weight -- computed from the parallel conductance of the device group through the projection's calibration"`
	Elig float32 `desc:"signed eligibility accumulated from error-compartment feedback since the last commit -- a device step is programmed when its magnitude reaches the learning threshold"`
}

var SynapseVars = []string{"Wt", "Elig"}

var SynapseVarsMap map[string]int

func init() {
	SynapseVarsMap = make(map[string]int, len(SynapseVars))
	for i, v := range SynapseVars {
		SynapseVarsMap[v] = i
	}
}

// SynapseVarByName returns the index of the variable in the Synapse, or error
func SynapseVarByName(varNm string) (int, error) {
	i, ok := SynapseVarsMap[varNm]
	if !ok {
		return 0, fmt.Errorf("Synapse VarByName: variable name: %v not valid", varNm)
	}
	return i, nil
}

// VarByIndex returns variable using index (0 = first variable in SynapseVars list)
func (sy *Synapse) VarByIndex(idx int) float32 {
	v := reflect.ValueOf(*sy)
	return v.Field(idx).Interface().(float32)
}
