//go:build gcstats

package gc

// statsEnabled gates ReadStats; enabled by the gcstats build tag.
const statsEnabled = true
