// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/emer/empi/v2/mpi"
	"github.com/emer/memsnn/config"
	"github.com/emer/memsnn/logging"
	"github.com/emer/memsnn/mnist"
	"github.com/emer/memsnn/results"
	"github.com/emer/memsnn/snn"
	"github.com/emer/memsnn/tasks"
	"github.com/spf13/cobra"
)

// loadData reads the training and test sets.
var loadData = func(dir string) (train, test *mnist.Set, err error) {
	return mnist.Load(dir)
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run every (U_in, U_out) pair of the configured sweep",
		Long: `Run all runs of every (U_in, U_out) combination in the configuration's
sweep, writing one result document per combination.

With --mpi, combinations are divided among the MPI processes.  With
--resume, combinations already recorded in the results ledger are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
				cfg.Sweep.Workers = w
			}
			useMPI, _ := cmd.Flags().GetBool("mpi")
			resume, _ := cmd.Flags().GetBool("resume")
			return execSweep(cmd, cfg, cfg.Points(), useMPI, resume)
		},
	}
	cmd.Flags().Int("workers", 0, "Runs simulated in parallel (0 = config, or number of CPUs)")
	cmd.Flags().Bool("mpi", false, "Divide the sweep among MPI processes")
	cmd.Flags().Bool("resume", false, "Skip combinations already in the results ledger")
	return cmd
}

// execSweep runs pts and writes their results.
func execSweep(cmd *cobra.Command, cfg *config.Config, pts []*config.Config, useMPI, resume bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	lg := newLogger(cmd, cfg)
	rank, nprocs := 0, 1
	if useMPI {
		mpi.Init()
		defer mpi.Finalize()
		if _, err := mpi.NewComm(nil); err != nil {
			lg.Warn("MPI unavailable, running all combinations here", "err", err)
		} else {
			rank, nprocs = mpi.WorldRank(), mpi.WorldSize()
			lg = lg.With("rank", rank)
			mpi.Printf("MPI running on %d procs\n", nprocs)
		}
	}

	train, test, err := loadData(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	if n := train.Rows * train.Cols; n != cfg.Net.NIn {
		return fmt.Errorf("dataset images have %d pixels, network has %d inputs", n, cfg.Net.NIn)
	}
	lg.Info("dataset loaded", "dir", cfg.Data.Dir, "train", train.Len(), "test", test.Len())
	lg.Debug("label counts", "train", train.Counts(), "test", test.Counts())
	if lg.Enabled(ctx, slog.LevelDebug) && len(pts) > 0 {
		if nt, err := snn.NewNetwork("Size", &pts[0].Net, cfg.Enc.NBins, nil); err == nil {
			lg.Debug("network size\n" + nt.SizeReport())
		}
	}

	var ldg *results.Ledger
	if cfg.Out.DB != "" {
		ldg, err = results.OpenLedger(ctx, filepath.Join(cfg.Out.Dir, ledgerName(cfg.Out.DB, rank, nprocs)))
		if err != nil {
			return err
		}
		defer ldg.Close()
	}

	sw := &tasks.Sweep{
		Points:   pts,
		Train:    train,
		Test:     test,
		Workers:  cfg.Sweep.Workers,
		Rank:     rank,
		NProcs:   nprocs,
		Log:      lg,
		Progress: logging.NewProgress(progressWriter(cmd, cfg)),
		OnResult: func(res *tasks.Result) error {
			return writeResult(ctx, cmd.OutOrStdout(), cfg, ldg, res)
		},
	}
	if resume && ldg != nil {
		sw.Skip = func(pt *config.Config) bool {
			has, err := ldg.Has(ctx, pt.Net.HidLearn.Thr, pt.Net.OutLearn.Thr, pt.Run.NRuns)
			if err != nil {
				lg.Warn("ledger lookup failed", "err", err)
			}
			return has
		}
	}
	_, err = sw.Run(ctx)
	return err
}

// ledgerName gives each MPI process its own ledger file, as SQLite files
// are not shared safely across hosts.
func ledgerName(db string, rank, nprocs int) string {
	if nprocs <= 1 {
		return db
	}
	ext := filepath.Ext(db)
	return fmt.Sprintf("%s_%d%s", db[:len(db)-len(ext)], rank, ext)
}

// writeResult saves the result document, accuracy log and ledger entry
// of one configuration, and prints its summary line.
func writeResult(ctx context.Context, w io.Writer, cfg *config.Config, ldg *results.Ledger, res *tasks.Result) error {
	rc := results.NewRecord(res)
	file, err := rc.Save(cfg.Out.Dir, cfg.Out.Format)
	if err != nil {
		return err
	}
	if cfg.Out.CSV {
		if _, err := results.SaveAccLog(res, file); err != nil {
			return err
		}
	}
	if ldg != nil {
		if err := ldg.Put(ctx, rc, file); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "U_in %v\tU_out %v\tcls_mean %.4f\tcont_mean %.4f +- %.4f\t%s\n",
		rc.UIn, rc.UOut, rc.ClsMean, rc.ContMean, rc.ContStd, file)
	return nil
}
