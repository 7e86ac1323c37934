package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/tracegc/gc"
)

var (
	// Global flags
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "gcstress",
	Short: "Exercise the tracegc collector under configurable load",
	Long: `gcstress drives the tracegc managed heap through allocation churn,
reference cycles, and finalization storms, then reports what the collector
did. It exists to shake out collector bugs and to give a feel for pause
times and reclamation behavior under a chosen workload shape.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		gc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		gc.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	execute()
}
