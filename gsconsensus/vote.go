// Package gsconsensus defines the primitive vote domain for the
// Accountable Safety protocol: voter identity, rounds, blocks, votes,
// commits and the chain ancestry predicate that the block tree
// collaborator supplies.
//
// Signatures are assumed pre-verified before a [Vote] reaches this
// package; gsconsensus never touches key material.
package gsconsensus

import "fmt"

// VoterID is an opaque identifier drawn from a fixed voter set.
// It is fixed-size so it can travel on the wire exactly as specified
// by the canonical response encoding (32 bytes, as for a public key
// hash).
type VoterID [32]byte

// String renders a short hex prefix, enough to disambiguate voters in
// logs without printing the full identifier.
func (v VoterID) String() string {
	return fmt.Sprintf("%x", v[:8])
}

// RoundNumber is a monotonically increasing round index.
type RoundNumber uint64

// BlockNumber identifies a block by height. Ancestry between blocks of
// the same or different heights is resolved by an [AncestryFunc], not
// by comparing BlockNumbers directly.
type BlockNumber uint64

// VoteKind distinguishes a GRANDPA prevote from a precommit. The two
// kinds are never mixed within one accepted response or query.
//
//go:generate stringer -type VoteKind .
type VoteKind uint8

const (
	// Prevote is a round's first-phase vote.
	Prevote VoteKind = iota
	// Precommit is a round's second-phase vote.
	Precommit
)

// Vote is a single signed statement by one voter, in one round, for
// one kind, targeting one block.
type Vote struct {
	Voter  VoterID
	Target BlockNumber
	Kind   VoteKind
	Round  RoundNumber
}

// Equal reports whether two votes carry identical fields.
func (v Vote) Equal(o Vote) bool {
	return v.Voter == o.Voter && v.Target == o.Target && v.Kind == o.Kind && v.Round == o.Round
}

// AncestryFunc reports whether a is an ancestor of, or equal to, b.
// It is supplied by the external block-tree collaborator (§4.1) and is
// treated as total and pure: for any two blocks the core knows about,
// calling it must terminate and must not depend on mutable state that
// changes over the lifetime of a session.
type AncestryFunc func(a, b BlockNumber) bool

// compatibleWithTarget reports whether vote v is consistent with a
// claim of support for target: v.Target must be target itself or a
// descendant of target under the ancestry relation.
func compatibleWithTarget(v Vote, target BlockNumber, isAncestor AncestryFunc) bool {
	return v.Target == target || isAncestor(target, v.Target)
}
