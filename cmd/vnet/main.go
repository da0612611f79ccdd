// Package main provides the vnet CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mwort/grass-addons/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbPath  string
	timeout int
	verbose bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "vnet",
		Short: "Vector network analysis on GRASS maps",
		Long: `A CLI tool for running GRASS vector network analyses (v.net.*).

Analyses run inside an active GRASS session (GISDBASE, LOCATION_NAME and
MAPSET must be set). Results land in temporary vector maps; every run is
recorded in a history log that can be walked and inspected, and in a run
catalog stored in SQLite.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", ".vnet/vnet.db", "Database path for the run catalog")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 300, "Timeout in seconds per GRASS module")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(modulesCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		DBPath:  dbPath,
		Timeout: time.Duration(timeout) * time.Second,
		Verbose: verbose,
	}
}

func analyzeCmd() *cobra.Command {
	var input string
	var points []string
	var save string

	cmd := &cobra.Command{
		Use:   "analyze [module]",
		Short: "Run one network analysis",
		Long: `Run one v.net.* analysis on the selected input map.

Points are given as E,N or E,N,role where role names the point's part in
the analysis, e.g. "Start point" or "End point" for v.net.path. Points
without a role fall back to the module's first point role.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Analyze(context.Background(), args[0], input, points, save, options())
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input vector map")
	cmd.Flags().StringArrayVarP(&points, "point", "p", nil, "Analysis point E,N[,role] (repeatable)")
	cmd.Flags().StringVar(&save, "save", "", "Copy the result to this map name")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func modulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List available analysis modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListModules(verbose)
			return nil
		},
	}
	return cmd
}

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListRuns(context.Background(), limit, options())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DeleteRun(context.Background(), args[0], options())
		},
	})

	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [file]",
		Short: "Dump the steps of a history file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DumpHistory(args[0])
		},
	}
	return cmd
}
