package gsconsensus_test

import (
	"testing"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus/gsconsensustest"
	"github.com/stretchr/testify/require"
)

func TestCouldSupermajority(t *testing.T) {
	f := gsconsensustest.NewFixture("a", "b", "c", "d")
	ancestry := gsconsensustest.LinearAncestry()

	t.Run("three of four for the same target reaches supermajority", func(t *testing.T) {
		votes := f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{
			"a": 1, "b": 1, "d": 1,
		})
		require.True(t, gsconsensus.CouldSupermajority(f.VoterSet, votes, 1, ancestry))
	})

	t.Run("two of four cannot reach supermajority", func(t *testing.T) {
		votes := f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{
			"a": 1, "b": 1,
		})
		require.False(t, gsconsensus.CouldSupermajority(f.VoterSet, votes, 1, ancestry))
	})

	t.Run("votes for a descendant still count toward the ancestor target", func(t *testing.T) {
		votes := f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{
			"a": 5, "b": 5, "d": 5,
		})
		require.True(t, gsconsensus.CouldSupermajority(f.VoterSet, votes, 2, ancestry))
	})

	t.Run("votes for an incompatible branch do not count", func(t *testing.T) {
		votes := f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{
			"a": 1, "b": 1, "c": 9,
		})
		require.False(t, gsconsensus.CouldSupermajority(f.VoterSet, votes, 9, ancestry))
	})
}

func TestVoterSetWeights(t *testing.T) {
	f := gsconsensustest.NewFixture("a", "b", "c", "d")
	require.Equal(t, uint64(4), f.VoterSet.TotalWeight())
	require.Equal(t, uint64(3), f.VoterSet.SupermajorityThreshold())
	require.Equal(t, uint64(1), f.VoterSet.MaxByzantineWeight())
}

func TestVoterSetHashIsDeterministic(t *testing.T) {
	f1 := gsconsensustest.NewFixture("a", "b", "c", "d")
	f2 := gsconsensustest.NewFixture("d", "c", "b", "a")
	require.Equal(t, f1.VoterSet.Hash(), f2.VoterSet.Hash())
}
