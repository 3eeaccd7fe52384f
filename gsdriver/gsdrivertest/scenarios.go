// Package gsdrivertest provides literal encodings of the walk-back
// scenarios from spec §8 (Scenarios A-F), mirroring the role
// tmconsensustest plays for tmconsensus: build the commit pair and
// open input for a named scenario without pulling in testify or
// *testing.T, so the same fixtures serve both table-driven tests and
// any future non-test caller (e.g. a documentation example).
package gsdrivertest

import (
	"time"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus/gsconsensustest"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
)

// Scenario bundles the four equal-weight voters, the conflicting
// commit pair, and the walk-back window for one of spec §8's named
// scenarios.
type Scenario struct {
	Fixture *gsconsensustest.Fixture
	Earlier gsconsensus.Commit
	Later   gsconsensus.Commit
	Window  time.Duration
}

// OpenInput builds the gsdriver.OpenInput a Scenario describes.
func (sc Scenario) OpenInput() gsdriver.OpenInput {
	return gsdriver.OpenInput{
		VoterSet:        sc.Fixture.VoterSet,
		Ancestry:        ForkedAncestry(),
		BlockEarlier:    gsdriver.BlockRoundRef{Block: sc.Earlier.Block, Round: sc.Earlier.Round},
		CommitEarlier:   sc.Earlier,
		BlockLater:      gsdriver.BlockRoundRef{Block: sc.Later.Block, Round: sc.Later.Round},
		CommitLater:     sc.Later,
		SynchronyWindow: sc.Window,
	}
}

// ForkedAncestry is the block tree the scenarios assume: blocks below 8
// form one chain, and blocks from 8 up form a second chain that forks
// off block 1. Blocks 2 and 8 therefore conflict, while 2 is still an
// ancestor of 4 and 5.
func ForkedAncestry() gsconsensus.AncestryFunc {
	return func(a, b gsconsensus.BlockNumber) bool {
		switch {
		case a < 8 && b >= 8:
			return a <= 1
		case a >= 8 && b < 8:
			return false
		default:
			return a <= b
		}
	}
}

// Open opens a session for sc under id, as of now.
func (sc Scenario) Open(id gsdriver.InstanceID, now time.Time) (*gsdriver.Session, error) {
	return gsdriver.Open(id, sc.OpenInput(), now)
}

// ScenarioABC is the commit pair shared by Scenarios A, B and C (§8):
// four voters, commit_earlier for block 2 at round 1 with precommits
// {A,B,C}, commit_later for block 8 at round 4 with precommits
// {A,B,D}. The round gap between 1 and 4 forces a full walk-back
// through rounds 3 and 2 before a round-1 query is ever opened.
func ScenarioABC(window time.Duration) Scenario {
	f := gsconsensustest.NewFixture("a", "b", "c", "d")
	return Scenario{
		Fixture: f,
		Earlier: gsconsensus.Commit{
			Round:      1,
			Block:      2,
			Precommits: f.Votes(1, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 2, "b": 2, "c": 2}),
		},
		Later: gsconsensus.Commit{
			Round:      4,
			Block:      8,
			Precommits: f.Votes(4, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 8, "b": 8, "d": 8}),
		},
		Window: window,
	}
}

// ScenarioD is the fast-path commit pair (§8): commit_later's round is
// exactly one greater than commit_earlier's, so the walk-back opens
// its first and only query directly at round 1 with no intermediate
// rounds to traverse.
func ScenarioD(window time.Duration) Scenario {
	f := gsconsensustest.NewFixture("a", "b", "c", "d")
	return Scenario{
		Fixture: f,
		Earlier: gsconsensus.Commit{
			Round:      1,
			Block:      2,
			Precommits: f.Votes(1, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 2, "b": 2, "c": 2}),
		},
		Later: gsconsensus.Commit{
			Round:      2,
			Block:      8,
			Precommits: f.Votes(2, gsconsensus.Precommit, map[string]gsconsensus.BlockNumber{"a": 8, "b": 8, "d": 8}),
		},
		Window: window,
	}
}
