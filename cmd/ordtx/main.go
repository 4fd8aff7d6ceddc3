// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// ordtx builds ordinals inscription commit and reveal transactions.
package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/spf13/cobra"

	"github.com/BoostyLabs/ordinals/bitcoin/tracker"
	"github.com/BoostyLabs/ordinals/bitcoin/txbuilder"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ordtx",
	Short: "ordtx builds ordinals inscription commit/reveal transaction pairs",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(inscribeCmd)
}

// setupLogging installs a btclog backend for the library packages.
func setupLogging() {
	backend := btclog.NewBackend(os.Stderr)

	level := btclog.LevelInfo
	if verbose {
		level = btclog.LevelDebug
	}

	builderLog := backend.Logger("TXBD")
	builderLog.SetLevel(level)
	txbuilder.UseLogger(builderLog)

	trackerLog := backend.Logger("TRCK")
	trackerLog.SetLevel(level)
	tracker.UseLogger(trackerLog)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
