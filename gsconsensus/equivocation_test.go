package gsconsensus_test

import (
	"testing"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus/gsconsensustest"
	"github.com/stretchr/testify/require"
)

func TestDetectEquivocations(t *testing.T) {
	f := gsconsensustest.NewFixture("a", "b", "c", "d")

	votes := []gsconsensus.Vote{
		f.Vote("a", 1, gsconsensus.Precommit, 2),
		f.Vote("b", 1, gsconsensus.Precommit, 2),
		f.Vote("c", 1, gsconsensus.Precommit, 2),
		// a and b equivocate by also precommitting 1 at round 1.
		f.Vote("a", 1, gsconsensus.Precommit, 1),
		f.Vote("b", 1, gsconsensus.Precommit, 1),
		// d only ever votes once, no equivocation.
		f.Vote("d", 1, gsconsensus.Precommit, 8),
	}

	got := gsconsensus.DetectEquivocations(votes)
	require.Len(t, got, 2)

	byVoter := make(map[gsconsensus.VoterID]gsconsensus.Equivocation, len(got))
	for _, e := range got {
		byVoter[e.Voter] = e
	}
	require.Contains(t, byVoter, f.ID("a"))
	require.Contains(t, byVoter, f.ID("b"))
	require.NotContains(t, byVoter, f.ID("c"))
	require.NotContains(t, byVoter, f.ID("d"))

	for _, e := range byVoter {
		require.NotEqual(t, e.TargetA, e.TargetB)
		require.Equal(t, gsconsensus.RoundNumber(1), e.Round)
		require.Equal(t, gsconsensus.Precommit, e.Kind)
	}
}

func TestDetectEquivocationsIgnoresDifferentRoundsAndKinds(t *testing.T) {
	f := gsconsensustest.NewFixture("a")

	votes := []gsconsensus.Vote{
		f.Vote("a", 1, gsconsensus.Precommit, 1),
		f.Vote("a", 2, gsconsensus.Precommit, 2), // different round, not an equivocation
		f.Vote("a", 1, gsconsensus.Prevote, 3),   // different kind, not an equivocation
	}

	require.Empty(t, gsconsensus.DetectEquivocations(votes))
}
