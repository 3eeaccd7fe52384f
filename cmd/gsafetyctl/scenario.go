package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
)

// scenarioFile is the on-disk shape a run invocation consumes: named
// voters (resolved to VoterIDs the same way gsconsensustest derives
// them), the two conflicting commits, and a sequence of timed steps.
type scenarioFile struct {
	Voters map[string]uint64 `json:"voters"`

	BlockEarlier  blockRoundRef `json:"block_earlier"`
	CommitEarlier commit        `json:"commit_earlier"`
	BlockLater    blockRoundRef `json:"block_later"`
	CommitLater   commit        `json:"commit_later"`

	SynchronyWindowSeconds int `json:"synchrony_window_seconds"`

	Steps []step `json:"steps"`
}

type blockRoundRef struct {
	Block uint64 `json:"block"`
	Round uint64 `json:"round"`
}

type namedVote struct {
	Voter  string `json:"voter"`
	Target uint64 `json:"target"`
}

type commit struct {
	Round      uint64      `json:"round"`
	Block      uint64      `json:"block"`
	Precommits []namedVote `json:"precommits"`
}

type step struct {
	AtSeconds int    `json:"at_seconds"`
	Type      string `json:"type"` // "submit_response", "tick", "abort"

	Responder string      `json:"responder,omitempty"`
	Round     uint64      `json:"round,omitempty"`
	Kind      string      `json:"kind,omitempty"` // "prevote" or "precommit"
	Votes     []namedVote `json:"votes,omitempty"`
}

func loadScenario(path string) (*scenarioFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var sc scenarioFile
	if err := json.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	return &sc, nil
}

// deriveVoterID mirrors gsconsensustest's name-to-id derivation, so a
// scenario file using the same voter names as the literal spec
// scenarios resolves to the same identities a test fixture would use.
func deriveVoterID(name string) gsconsensus.VoterID {
	var id gsconsensus.VoterID
	copy(id[:], name)
	id[31] = byte(len(name))
	return id
}

func (sc *scenarioFile) voterIDs() map[string]gsconsensus.VoterID {
	ids := make(map[string]gsconsensus.VoterID, len(sc.Voters))
	for name := range sc.Voters {
		ids[name] = deriveVoterID(name)
	}
	return ids
}

func (sc *scenarioFile) resolveVotes(ids map[string]gsconsensus.VoterID, round uint64, kind gsconsensus.VoteKind, votes []namedVote) ([]gsconsensus.Vote, error) {
	out := make([]gsconsensus.Vote, len(votes))
	for i, v := range votes {
		id, ok := ids[v.Voter]
		if !ok {
			return nil, fmt.Errorf("unknown voter %q", v.Voter)
		}
		out[i] = gsconsensus.Vote{
			Voter:  id,
			Target: gsconsensus.BlockNumber(v.Target),
			Kind:   kind,
			Round:  gsconsensus.RoundNumber(round),
		}
	}
	return out, nil
}

func parseVoteKind(s string) (gsconsensus.VoteKind, error) {
	switch s {
	case "prevote":
		return gsconsensus.Prevote, nil
	case "precommit":
		return gsconsensus.Precommit, nil
	default:
		return 0, fmt.Errorf("unknown vote kind %q", s)
	}
}

func (sc *scenarioFile) buildOpenInput() (gsdriver.OpenInput, error) {
	ids := sc.voterIDs()

	earlierPrecommits, err := sc.resolveVotes(ids, sc.CommitEarlier.Round, gsconsensus.Precommit, sc.CommitEarlier.Precommits)
	if err != nil {
		return gsdriver.OpenInput{}, fmt.Errorf("commit_earlier: %w", err)
	}
	laterPrecommits, err := sc.resolveVotes(ids, sc.CommitLater.Round, gsconsensus.Precommit, sc.CommitLater.Precommits)
	if err != nil {
		return gsdriver.OpenInput{}, fmt.Errorf("commit_later: %w", err)
	}

	weights := make(map[gsconsensus.VoterID]uint64, len(sc.Voters))
	for name, w := range sc.Voters {
		weights[ids[name]] = w
	}
	vs, err := gsconsensus.NewVoterSet(weights)
	if err != nil {
		return gsdriver.OpenInput{}, fmt.Errorf("building voter set: %w", err)
	}

	window := gsdriver.DefaultSynchronyWindow
	if sc.SynchronyWindowSeconds > 0 {
		window = time.Duration(sc.SynchronyWindowSeconds) * time.Second
	}

	return gsdriver.OpenInput{
		VoterSet: vs,
		Ancestry: func(a, b gsconsensus.BlockNumber) bool { return a <= b },
		BlockEarlier: gsdriver.BlockRoundRef{
			Block: gsconsensus.BlockNumber(sc.BlockEarlier.Block),
			Round: gsconsensus.RoundNumber(sc.BlockEarlier.Round),
		},
		CommitEarlier: gsconsensus.Commit{
			Round:      gsconsensus.RoundNumber(sc.CommitEarlier.Round),
			Block:      gsconsensus.BlockNumber(sc.CommitEarlier.Block),
			Precommits: earlierPrecommits,
		},
		BlockLater: gsdriver.BlockRoundRef{
			Block: gsconsensus.BlockNumber(sc.BlockLater.Block),
			Round: gsconsensus.RoundNumber(sc.BlockLater.Round),
		},
		CommitLater: gsconsensus.Commit{
			Round:      gsconsensus.RoundNumber(sc.CommitLater.Round),
			Block:      gsconsensus.BlockNumber(sc.CommitLater.Block),
			Precommits: laterPrecommits,
		},
		SynchronyWindow: window,
	}, nil
}
