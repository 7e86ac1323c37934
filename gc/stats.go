package gc

// ReadStats returns a snapshot of collector counters: allocation volume,
// collection cycles, cumulative pause time, finalization activity, heap
// shape. Counters are profiling aids, not correctness signals.
//
// Statistics exposure is compile-time gated because some deployments
// refuse even cheap bookkeeping on hot paths: without the gcstats build
// tag, ReadStats returns ErrStatsDisabled.
func ReadStats() (Stats, error) {
	if !statsEnabled {
		return Stats{}, ErrStatsDisabled
	}
	return ensure().eng.Stats(), nil
}
