package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/tracegc/gc"
)

var statsObjects int

func init() {
	cmd := newStatsCmd()
	cmd.Flags().IntVar(&statsObjects, "objects", 10000, "Objects allocated before the snapshot")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Run a small workload and dump collector counters",
		Long: `The stats command allocates a batch of objects, collects, and prints
the collector's counter snapshot. The module must be built with
-tags gcstats for counters to be exposed.

Example:
  gcstress stats --objects 100000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsSnapshot()
		},
	}
}

func runStatsSnapshot() error {
	roots, err := gc.NewRoots(1)
	if err != nil {
		return fmt.Errorf("allocating root region: %w", err)
	}
	defer roots.Release() //nolint:errcheck

	for i := 0; i < statsObjects; i++ {
		p := gc.New(churnNode{ID: i})
		if i%1000 == 0 {
			gc.SetRoot(roots, 0, p)
		}
	}
	gc.Collect()
	gc.WaitForFinalizers()

	s, err := gc.ReadStats()
	if errors.Is(err, gc.ErrStatsDisabled) {
		return fmt.Errorf("collector counters are compiled out; rebuild with -tags gcstats")
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s)
	}
	fmt.Printf("Collections:      %d (pause total %v)\n", s.Collections, s.PauseTotal)
	fmt.Printf("Alloc calls:      %d (%d bytes)\n", s.AllocCalls, s.BytesAllocated)
	fmt.Printf("Freed:            %d bytes over %d explicit frees\n", s.BytesFreed, s.FreeCalls)
	fmt.Printf("Heap:             %d bytes reserved, %d free, %d live objects\n", s.HeapBytes, s.FreeBytes, s.LiveObjects)
	fmt.Printf("Uncollectable:    %d bytes\n", s.UncollectableBytes)
	fmt.Printf("Finalizers:       %d registered, %d queued, %d run\n",
		s.FinalizersRegistered, s.ObjectsQueued, s.ObjectsFinalized)
	fmt.Printf("Free lists:       %d cells (coalesced %d forward, %d backward)\n",
		s.FreeCells, s.CoalesceForward, s.CoalesceBackward)
	return nil
}
