package gsconsensustest

import "github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"

// LinearAncestry returns an [gsconsensus.AncestryFunc] for the common
// test topology of a single linear chain, where block number order is
// ancestry order: a is an ancestor of b iff a <= b.
func LinearAncestry() gsconsensus.AncestryFunc {
	return func(a, b gsconsensus.BlockNumber) bool {
		return a <= b
	}
}
