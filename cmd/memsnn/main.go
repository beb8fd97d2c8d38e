// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// memsnn simulates continual learning of MNIST digit-pair tasks by a
// spiking network whose synapses are memristor crossbars.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emer/memsnn/config"
	"github.com/emer/memsnn/logging"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "memsnn",
		Short: "Memristor-crossbar spiking network continual learning simulator",
		Long: `memsnn trains a three-layer spiking network, whose synapses are groups of
memristive devices, on a sequence of two-class MNIST tasks, and reports how
well each task is learned and how much of it is retained.

Weights only change by stepping single devices between discrete
conductance levels, when a synapse's eligibility crosses the commit
threshold: U_in for the input -> hidden crossbar, U_out for hidden -> output.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Configuration file (.toml, .yaml); defaults if empty")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().String("data", "", "Directory with the MNIST IDX files (overrides config)")
	rootCmd.PersistentFlags().String("out", "", "Results directory (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newCalibrateCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "memsnn version %s\n", version)
		},
	}
}

// loadConfig reads the --config file, or the defaults, and applies the
// global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	if file == "" {
		cfg = config.New()
		if err := cfg.Finalize(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if cfg, err = config.Open(file); err != nil {
			return nil, err
		}
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if dir, _ := cmd.Flags().GetString("data"); dir != "" {
		cfg.Data.Dir = dir
	}
	if dir, _ := cmd.Flags().GetString("out"); dir != "" {
		cfg.Out.Dir = dir
	}
	return cfg, nil
}

// newLogger returns the logger for cfg, writing to the command's error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Log.Level, cmd.ErrOrStderr())
}

// progressWriter returns where progress lines go: the command's error
// stream, unless logging is at warn or above.
func progressWriter(cmd *cobra.Command, cfg *config.Config) io.Writer {
	if logging.ParseLevel(cfg.Log.Level) > slog.LevelInfo {
		return nil
	}
	return cmd.ErrOrStderr()
}
