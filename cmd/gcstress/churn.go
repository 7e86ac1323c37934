package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/tracegc/gc"
)

var (
	churnObjects   int
	churnRounds    int
	churnCycleFrac float64
	churnLiveSlots int
	churnSeed      int64
)

func init() {
	cmd := newChurnCmd()
	cmd.Flags().IntVar(&churnObjects, "objects", 10000, "Objects allocated per round")
	cmd.Flags().IntVar(&churnRounds, "rounds", 10, "Allocation rounds, one collection each")
	cmd.Flags().
		Float64Var(&churnCycleFrac, "cycles", 0.25, "Fraction of objects linked into two-node reference cycles")
	cmd.Flags().IntVar(&churnLiveSlots, "live", 64, "Root slots kept populated between rounds")
	cmd.Flags().Int64Var(&churnSeed, "seed", 1, "Workload RNG seed")
	rootCmd.AddCommand(cmd)
}

func newChurnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "churn",
		Short: "Allocate, drop, and collect in rounds",
		Long: `The churn command allocates finalizable objects in rounds, links a
fraction of them into reference cycles, keeps a few rooted between rounds,
and collects after every round. At the end it clears all roots, collects,
and verifies every dropped object was destroyed exactly once.

Example:
  gcstress churn --objects 50000 --rounds 20 --cycles 0.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChurn()
		},
	}
}

// churnNode carries a managed reference and enough payload to make the
// heap work for its coalescing.
type churnNode struct {
	Next    gc.Ptr[churnNode]
	ID      int
	Payload [6]uint64
}

type churnReport struct {
	Objects    int           `json:"objects"`
	Rounds     int           `json:"rounds"`
	Allocated  int64         `json:"allocated"`
	Finalized  int64         `json:"finalized"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	AllocRate  float64       `json:"alloc_per_sec"`
	Consistent bool          `json:"consistent"`
}

func runChurn() error {
	if churnObjects <= 0 || churnRounds <= 0 {
		return fmt.Errorf("objects and rounds must be positive")
	}
	if churnCycleFrac < 0 || churnCycleFrac > 1 {
		return fmt.Errorf("cycles must be in [0,1], got %g", churnCycleFrac)
	}

	roots, err := gc.NewRoots(churnLiveSlots)
	if err != nil {
		return fmt.Errorf("allocating root region: %w", err)
	}
	defer roots.Release() //nolint:errcheck

	rng := rand.New(rand.NewSource(churnSeed))
	var finalized atomic.Int64
	fin := func(*churnNode) { finalized.Add(1) }

	start := time.Now()
	var allocated int64
	for round := 0; round < churnRounds; round++ {
		for i := 0; i < churnObjects; i++ {
			p := gc.NewWithFinalizer(churnNode{ID: round*churnObjects + i}, fin)
			allocated++
			if rng.Float64() < churnCycleFrac {
				q := gc.NewWithFinalizer(churnNode{ID: -p.Value().ID}, fin)
				allocated++
				p.Value().Next = q
				q.Value().Next = p
			}
			// Overwrite a random slot, dropping whatever was rooted there.
			if i%(churnObjects/churnLiveSlots+1) == 0 {
				gc.SetRoot(roots, rng.Intn(churnLiveSlots), p)
			}
		}
		gc.Collect()
		printVerbose("round %d: allocated %d so far, finalized %d\n", round, allocated, finalized.Load())
	}

	roots.Clear()
	gc.Collect()
	gc.WaitForFinalizers()
	elapsed := time.Since(start)

	rep := churnReport{
		Objects:    churnObjects,
		Rounds:     churnRounds,
		Allocated:  allocated,
		Finalized:  finalized.Load(),
		Elapsed:    elapsed,
		AllocRate:  float64(allocated) / elapsed.Seconds(),
		Consistent: finalized.Load() == allocated,
	}
	if jsonOut {
		return printJSON(rep)
	}

	fmt.Printf("Allocated:  %d objects over %d rounds\n", rep.Allocated, rep.Rounds)
	fmt.Printf("Finalized:  %d\n", rep.Finalized)
	fmt.Printf("Elapsed:    %v (%.0f alloc/s)\n", rep.Elapsed, rep.AllocRate)
	if !rep.Consistent {
		return fmt.Errorf("destructor count mismatch: allocated %d, finalized %d", rep.Allocated, rep.Finalized)
	}
	fmt.Println("Every dropped object was destroyed exactly once.")
	return nil
}

// printVerbose prints a progress message when verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON.
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
