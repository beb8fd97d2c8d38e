// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/emer/memsnn/device"
	"github.com/spf13/cobra"
)

func newCalibrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate",
		Short: "Print the device palette and crossbar weight calibrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			dp := &cfg.Net.Dev
			fmt.Fprintf(w, "Palette: %d levels, %d devices per synapse\n", dp.Palette.NLevels(), dp.NCross)
			for l := range dp.Palette.Means {
				fmt.Fprintf(w, "  level %d: %10.4g +- %.4g ohm\n", l, dp.Palette.Means[l], dp.Palette.Sigmas[l])
			}
			for _, c := range []struct {
				name string
				wmax float64
				cal  device.Calib
			}{
				{"In -> Hid", dp.WInMax, cfg.Net.InHidCal},
				{"Hid -> Out", dp.WOutMax, cfg.Net.HidOutCal},
			} {
				lo := device.Group(make([]float64, dp.NCross))
				hi := device.Group(make([]float64, dp.NCross))
				for i := range lo {
					lo[i] = dp.Palette.Means[0]
					hi[i] = dp.Palette.Means[dp.Palette.NLevels()-1]
				}
				fmt.Fprintf(w, "%-10s WMax %g: %v  weights [%.4f, %.4f]\n", c.name, c.wmax, c.cal, c.cal.Weight(lo), c.cal.Weight(hi))
			}
			return nil
		},
	}
}
