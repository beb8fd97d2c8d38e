// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/emer/memsnn/config"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one (U_in, U_out) configuration",
		Long: `Run all runs of a single configuration and write its result document.
The thresholds default to the first U_in and U_out of the configured sweep;
use "inf" to disable learning in a crossbar.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			uin, uout := cfg.Sweep.UIn[0], cfg.Sweep.UOut[0]
			if cmd.Flags().Changed("uin") {
				uin, _ = cmd.Flags().GetFloat32("uin")
			}
			if cmd.Flags().Changed("uout") {
				uout, _ = cmd.Flags().GetFloat32("uout")
			}
			if n, _ := cmd.Flags().GetInt("runs"); n > 0 {
				cfg.Run.NRuns = n
			}
			pt := cfg.WithThresholds(uin, uout)
			if err := pt.Finalize(); err != nil {
				return err
			}
			return execSweep(cmd, cfg, []*config.Config{pt}, false, false)
		},
	}
	cmd.Flags().Float32("uin", 0, "Input -> hidden commit threshold")
	cmd.Flags().Float32("uout", 0, "Hidden -> output commit threshold")
	cmd.Flags().Int("runs", 0, "Number of runs (0 = config)")
	return cmd
}
