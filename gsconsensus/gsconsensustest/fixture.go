// Package gsconsensustest provides deterministic voter fixtures for
// Accountable Safety tests, mirroring the role tmconsensustest plays
// for tmconsensus: build a voter set and vote slices without pulling
// in real key material, since votes reach gsconsensus pre-verified.
package gsconsensustest

import (
	"fmt"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
)

// Fixture is a small set of named, equal-weight voters, convenient for
// literal scenario tests such as §8's Scenarios A–F, which all use
// four voters of weight one.
type Fixture struct {
	Names []string
	IDs   map[string]gsconsensus.VoterID

	VoterSet *gsconsensus.VoterSet
}

// NewFixture builds a Fixture from the given voter names, each given
// weight 1, deriving each VoterID deterministically from its name so
// that repeated calls with the same names produce the same IDs.
func NewFixture(names ...string) *Fixture {
	return NewWeightedFixture(equalWeights(names))
}

// NewWeightedFixture builds a Fixture from an explicit name-to-weight
// table, preserving the iteration order of names for Fixture.Names.
func NewWeightedFixture(weights map[string]uint64) *Fixture {
	names := make([]string, 0, len(weights))
	for n := range weights {
		names = append(names, n)
	}

	ids := make(map[string]gsconsensus.VoterID, len(names))
	wTable := make(map[gsconsensus.VoterID]uint64, len(names))
	for _, n := range names {
		id := deriveVoterID(n)
		ids[n] = id
		wTable[id] = weights[n]
	}

	vs, err := gsconsensus.NewVoterSet(wTable)
	if err != nil {
		panic(fmt.Errorf("gsconsensustest: building voter set: %w", err))
	}

	return &Fixture{
		Names:    names,
		IDs:      ids,
		VoterSet: vs,
	}
}

func equalWeights(names []string) map[string]uint64 {
	w := make(map[string]uint64, len(names))
	for _, n := range names {
		w[n] = 1
	}
	return w
}

// ID returns the VoterID for a fixture-known name, panicking if the
// name was never registered; this is a test helper and an unknown name
// is always a test-authoring mistake.
func (f *Fixture) ID(name string) gsconsensus.VoterID {
	id, ok := f.IDs[name]
	if !ok {
		panic(fmt.Errorf("gsconsensustest: unknown voter name %q", name))
	}
	return id
}

// Vote builds a [gsconsensus.Vote] for the named voter.
func (f *Fixture) Vote(name string, round gsconsensus.RoundNumber, kind gsconsensus.VoteKind, target gsconsensus.BlockNumber) gsconsensus.Vote {
	return gsconsensus.Vote{
		Voter:  f.ID(name),
		Target: target,
		Kind:   kind,
		Round:  round,
	}
}

// Votes builds a slice of votes of one kind and round, from a
// name-to-target map, for compact scenario construction.
func (f *Fixture) Votes(round gsconsensus.RoundNumber, kind gsconsensus.VoteKind, byName map[string]gsconsensus.BlockNumber) []gsconsensus.Vote {
	out := make([]gsconsensus.Vote, 0, len(byName))
	for name, target := range byName {
		out = append(out, f.Vote(name, round, kind, target))
	}
	return out
}

// deriveVoterID hashes a name into a stable, human-irrelevant 32-byte
// identifier; real deployments derive VoterID from a public key, but
// fixtures only need something fixed-size and collision-free for test
// vocabularies of a handful of names.
func deriveVoterID(name string) gsconsensus.VoterID {
	var id gsconsensus.VoterID
	copy(id[:], name)
	// Mark the remainder so two short names sharing a prefix can't
	// collide once the name is shorter than 32 bytes.
	id[31] = byte(len(name))
	return id
}
