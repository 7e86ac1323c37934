//go:build !gcstats

package gc

// statsEnabled gates ReadStats; build with -tags gcstats to enable.
const statsEnabled = false
