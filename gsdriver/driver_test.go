package gsdriver_test

import (
	"testing"
	"time"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus/gsconsensustest"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver/gsdrivertest"
	"github.com/stretchr/testify/require"
)

// fixtureCommits builds the Commit_earlier / Commit_later pair shared
// by Scenarios A, B and C (§8).
func fixtureCommits(t *testing.T) (*gsconsensustest.Fixture, gsconsensus.Commit, gsconsensus.Commit) {
	t.Helper()
	sc := gsdrivertest.ScenarioABC(0)
	return sc.Fixture, sc.Earlier, sc.Later
}

func openFixture(t *testing.T, f *gsconsensustest.Fixture, earlier, later gsconsensus.Commit, window time.Duration) *gsdriver.Session {
	t.Helper()
	sc := gsdrivertest.Scenario{Fixture: f, Earlier: earlier, Later: later, Window: window}
	s, err := sc.Open(1, time.Unix(1000, 0))
	require.NoError(t, err)
	return s
}

func requireEquivocators(t *testing.T, s *gsdriver.Session, names ...string) {
	t.Helper()
	require.Equal(t, gsdriver.PhaseTerminated, s.Phase.Tag)
	require.NotNil(t, s.Phase.Verdict)
	require.Equal(t, gsdriver.VerdictEquivocators, s.Phase.Verdict.Kind)

	got := make(map[gsconsensus.VoterID]struct{})
	for _, e := range s.Phase.Verdict.Equivocations {
		got[e.Voter] = struct{}{}
	}
	require.Len(t, got, len(names))

	// Fixture IDs depend only on the name, so a fresh fixture over the
	// same names resolves them to the session's voter IDs.
	ids := gsconsensustest.NewFixture(names...)
	for _, n := range names {
		require.Contains(t, got, ids.ID(n))
	}
}

func TestScenarioA_PrecommitPathTerminatesAtStep2(t *testing.T) {
	f, earlier, later := fixtureCommits(t)
	s := openFixture(t, f, earlier, later, time.Hour)

	now := time.Unix(1000, 0)

	// Round 3: walk-back query.
	require.Equal(t, gsdriver.PhaseWalkingBack, s.Phase.Tag)
	require.Equal(t, gsconsensus.RoundNumber(3), s.Phase.WalkingBackRound)
	err := gsdriver.SubmitResponse(s, f.ID("a"), 3,
		f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 1, "b": 1, "d": 1}),
		now)
	require.NoError(t, err)
	require.Equal(t, gsconsensus.RoundNumber(2), s.Phase.WalkingBackRound)

	// Round 2.
	err = gsdriver.SubmitResponse(s, f.ID("a"), 2,
		f.Votes(2, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 1, "b": 1, "d": 1}),
		now)
	require.NoError(t, err)
	require.Equal(t, gsconsensus.RoundNumber(1), s.Phase.WalkingBackRound)

	// Round 1 (step 2): precommits, unions with commit_earlier's
	// precommits and terminates.
	err = gsdriver.SubmitResponse(s, f.ID("a"), 1,
		f.Votes(1, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 1, "b": 1, "d": 1}),
		now)
	require.NoError(t, err)

	requireEquivocators(t, s, "a", "b")
}

func TestScenarioB_PrevotePathRequiresStep3(t *testing.T) {
	f, earlier, later := fixtureCommits(t)
	s := openFixture(t, f, earlier, later, time.Hour)
	now := time.Unix(1000, 0)

	require.NoError(t, gsdriver.SubmitResponse(s, f.ID("a"), 3,
		f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 1, "b": 1, "d": 1}), now))
	require.NoError(t, gsdriver.SubmitResponse(s, f.ID("a"), 2,
		f.Votes(2, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 1, "b": 1, "d": 1}), now))

	// Round 1 response is prevotes this time.
	require.NoError(t, gsdriver.SubmitResponse(s, f.ID("a"), 1,
		f.Votes(1, gsconsensus.Prevote, map[string]gsconsensus.BlockNumber{"a": 1, "b": 1, "d": 5}), now))
	require.Equal(t, gsdriver.PhaseAwaitingStep3, s.Phase.Tag)

	// Step 3: commit_earlier's voters {a,b,c} report their round-1
	// prevotes, with a supermajority for block 2.
	require.NoError(t, gsdriver.SubmitResponse(s, f.ID("a"), 1,
		f.Votes(1, gsconsensus.Prevote, map[string]gsconsensus.BlockNumber{"a": 4, "b": 4, "c": 2}), now))

	requireEquivocators(t, s, "a", "b")
}

func TestScenarioC_NoResponseTimeout(t *testing.T) {
	f, earlier, later := fixtureCommits(t)
	s := openFixture(t, f, earlier, later, time.Second)

	err := gsdriver.Tick(s, time.Unix(1000, 0))
	require.NoError(t, err)
	require.Equal(t, gsdriver.PhaseWalkingBack, s.Phase.Tag, "deadline has not elapsed yet")

	err = gsdriver.Tick(s, time.Unix(1002, 0))
	require.NoError(t, err)
	require.Equal(t, gsdriver.PhaseTerminated, s.Phase.Tag)
	require.Equal(t, gsdriver.VerdictByzantine, s.Phase.Verdict.Kind)
	require.ElementsMatch(t, []gsconsensus.VoterID{f.ID("a"), f.ID("b"), f.ID("d")}, s.Phase.Verdict.ByzantineVoters)
}

func TestScenarioD_FastPathWhenRoundsAreAdjacent(t *testing.T) {
	sc := gsdrivertest.ScenarioD(time.Hour)
	f := sc.Fixture
	s, err := sc.Open(1, time.Unix(1000, 0))
	require.NoError(t, err)

	require.Equal(t, gsdriver.PhaseWalkingBack, s.Phase.Tag)
	require.Equal(t, gsconsensus.RoundNumber(1), s.Phase.WalkingBackRound)

	err = gsdriver.SubmitResponse(s, f.ID("a"), 1,
		f.Votes(1, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 1, "b": 1, "d": 1}),
		time.Unix(1000, 0))
	require.NoError(t, err)

	requireEquivocators(t, s, "a", "b")
}

func TestScenarioE_SemanticallyInvalidResponseLeavesQueryOpen(t *testing.T) {
	f, earlier, later := fixtureCommits(t)
	s := openFixture(t, f, earlier, later, time.Hour)
	now := time.Unix(1000, 0)

	// This payload *can* reach supermajority for block 2 (target
	// compatible votes from a, b, d all targeting 2): semantically
	// invalid for a WhyEstimateMissing answer.
	err := gsdriver.SubmitResponse(s, f.ID("a"), 3,
		f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 2, "b": 2, "d": 2}),
		now)
	var semErr *gsdriver.SemanticInvalidError
	require.ErrorAs(t, err, &semErr)
	require.Equal(t, gsdriver.PhaseWalkingBack, s.Phase.Tag)
	require.Equal(t, gsconsensus.RoundNumber(3), s.Phase.WalkingBackRound)

	// A different, valid responder can still make progress.
	err = gsdriver.SubmitResponse(s, f.ID("b"), 3,
		f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 1, "b": 1, "d": 1}),
		now)
	require.NoError(t, err)
	require.Equal(t, gsconsensus.RoundNumber(2), s.Phase.WalkingBackRound)
}

func TestScenarioF_MixedKindResponseRejected(t *testing.T) {
	f, earlier, later := fixtureCommits(t)
	s := openFixture(t, f, earlier, later, time.Hour)
	now := time.Unix(1000, 0)

	mixed := []gsconsensus.Vote{
		f.Vote("a", 3, gsconsensus.Precommit, 1),
		f.Vote("b", 3, gsconsensus.Prevote, 1),
	}
	err := gsdriver.SubmitResponse(s, f.ID("a"), 3, mixed, now)
	var malformed *gsdriver.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, gsdriver.ReasonMixedKinds, malformed.Reason)
	require.Equal(t, gsdriver.PhaseWalkingBack, s.Phase.Tag)
	require.Equal(t, gsconsensus.RoundNumber(3), s.Phase.WalkingBackRound)
}

func TestUnauthorizedResponderRejected(t *testing.T) {
	f, earlier, later := fixtureCommits(t)
	s := openFixture(t, f, earlier, later, time.Hour)

	err := gsdriver.SubmitResponse(s, f.ID("c"), 3,
		f.Votes(3, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"c": 1}),
		time.Unix(1000, 0))
	var unauth *gsdriver.UnauthorizedResponderError
	require.ErrorAs(t, err, &unauth)
}

func TestOpenRejectsDegenerateInputs(t *testing.T) {
	f := gsconsensustest.NewFixture("a", "b", "c", "d")
	ancestry := gsdrivertest.ForkedAncestry()
	base := func() gsdriver.OpenInput {
		return gsdriver.OpenInput{
			VoterSet: f.VoterSet,
			Ancestry: ancestry,
			BlockEarlier: gsdriver.BlockRoundRef{Block: 2, Round: 1},
			CommitEarlier: gsconsensus.Commit{
				Round: 1, Block: 2,
				Precommits: f.Votes(1, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 2, "b": 2, "c": 2}),
			},
			BlockLater: gsdriver.BlockRoundRef{Block: 8, Round: 4},
			CommitLater: gsconsensus.Commit{
				Round: 4, Block: 8,
				Precommits: f.Votes(4, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 8, "b": 8, "d": 8}),
			},
		}
	}

	t.Run("same block", func(t *testing.T) {
		in := base()
		in.BlockLater.Block = in.BlockEarlier.Block
		in.CommitLater.Block = in.BlockEarlier.Block
		_, err := gsdriver.Open(1, in, time.Unix(0, 0))
		var iie *gsdriver.InputInvariantError
		require.ErrorAs(t, err, &iie)
		require.Equal(t, gsdriver.SameBlock, iie.Kind)
	})

	t.Run("ancestor blocks", func(t *testing.T) {
		in := base()
		// Block 5 is a strict descendant of block 2 (both lie on the
		// chain below 8), but the two blocks are still distinct.
		in.BlockLater.Block = 5
		in.CommitLater.Block = 5
		in.CommitLater.Precommits = f.Votes(4, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 5, "b": 5, "d": 5})
		_, err := gsdriver.Open(1, in, time.Unix(0, 0))
		var iie *gsdriver.InputInvariantError
		require.ErrorAs(t, err, &iie)
		require.Equal(t, gsdriver.Ancestors, iie.Kind)
	})

	t.Run("same round", func(t *testing.T) {
		in := base()
		in.BlockLater.Round = in.BlockEarlier.Round
		_, err := gsdriver.Open(1, in, time.Unix(0, 0))
		var iie *gsdriver.InputInvariantError
		require.ErrorAs(t, err, &iie)
		require.Equal(t, gsdriver.SameRound, iie.Kind)
	})
}
