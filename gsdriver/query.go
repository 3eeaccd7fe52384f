package gsdriver

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
)

// QueryKindTag distinguishes the two shapes of outgoing query defined
// in §3.
type QueryKindTag uint8

const (
	// WhyEstimateMissingTag asks why a voter's estimate excludes a
	// given target block.
	WhyEstimateMissingTag QueryKindTag = iota
	// PrevotesSeenTag asks for the prevotes an earlier commit's voters
	// observed at a round.
	PrevotesSeenTag
)

func (t QueryKindTag) String() string {
	switch t {
	case WhyEstimateMissingTag:
		return "WhyEstimateMissing"
	case PrevotesSeenTag:
		return "PrevotesSeen"
	default:
		return "QueryKindTag(unknown)"
	}
}

// QueryKind is the content of a single outgoing query (§3).
type QueryKind struct {
	Tag QueryKindTag

	// Round is the round being interrogated.
	Round gsconsensus.RoundNumber

	// TargetBlock is set only for WhyEstimateMissingTag; it names the
	// block whose supermajority a valid answer must rule out.
	TargetBlock gsconsensus.BlockNumber
}

// WhyEstimateMissing builds a step-1/2 query.
func WhyEstimateMissing(round gsconsensus.RoundNumber, target gsconsensus.BlockNumber) QueryKind {
	return QueryKind{Tag: WhyEstimateMissingTag, Round: round, TargetBlock: target}
}

// PrevotesSeen builds a step-3 query.
func PrevotesSeen(round gsconsensus.RoundNumber) QueryKind {
	return QueryKind{Tag: PrevotesSeenTag, Round: round}
}

// expectedVoteKindIfFixed returns the vote kind a valid answer to this
// query must be homogeneous in, when the query kind alone fixes it:
// PrevotesSeen is always prevotes. WhyEstimateMissing accepts either
// precommits or prevotes, so it reports false. Nothing in this package
// calls it; the Validator checks the PrevotesSeen kind directly.
func (k QueryKind) expectedVoteKindIfFixed() (gsconsensus.VoteKind, bool) {
	if k.Tag == PrevotesSeenTag {
		return gsconsensus.Prevote, true
	}
	return 0, false
}

// QueryState is the live, mutable record of one outgoing query: who it
// was addressed to, what has been admitted from them so far (§3).
type QueryState struct {
	Kind QueryKind

	Addressees []gsconsensus.VoterID
	addressed  *bitset.BitSet

	Responded *bitset.BitSet

	// AdmittedVotes is the union, across every accepted response, of
	// every vote admitted into this query. Union semantics per §4.3.
	AdmittedVotes []gsconsensus.Vote

	// AdmittedKind records the vote kind of the first admitted
	// response; every later admission must match it (invariant 4).
	AdmittedKind     gsconsensus.VoteKind
	hasAdmittedVotes bool

	// transitioned marks that this query's first admission has already
	// driven the session's phase forward, so a later admission into the
	// same query (union growth) never re-triggers advance().
	transitioned bool

	Deadline int64 // unix seconds; 0 means no deadline has been set yet.

	// ByzantineAddressees is populated only if the query's deadline
	// expired with no valid responses (§4.4, §7).
	ByzantineAddressees []gsconsensus.VoterID
}

func newQueryState(vs *gsconsensus.VoterSet, kind QueryKind, addressees []gsconsensus.VoterID) *QueryState {
	return &QueryState{
		Kind:       kind,
		Addressees: addressees,
		addressed:  vs.BitsetOf(addressees...),
		Responded:  vs.NewBitset(),
	}
}

func (q *QueryState) isAddressee(vs *gsconsensus.VoterSet, id gsconsensus.VoterID) bool {
	i, ok := vs.IndexOf(id)
	if !ok {
		return false
	}
	return q.addressed.Test(uint(i))
}

// HasAnyValidResponse reports whether at least one response has been
// admitted into this query.
func (q *QueryState) HasAnyValidResponse() bool {
	return q.hasAdmittedVotes
}

// QueryDescriptor is the transport-facing, immutable projection of a
// QueryState: everything an outer transport needs to disseminate the
// query to its addressees (§6, §9 "Pending outgoing queries").
type QueryDescriptor struct {
	Instance    InstanceID
	Kind        QueryKindTag
	Round       gsconsensus.RoundNumber
	TargetBlock gsconsensus.BlockNumber
	Addressees  []gsconsensus.VoterID
}

func (q *QueryState) descriptor(instance InstanceID) QueryDescriptor {
	addressees := make([]gsconsensus.VoterID, len(q.Addressees))
	copy(addressees, q.Addressees)
	return QueryDescriptor{
		Instance:    instance,
		Kind:        q.Kind.Tag,
		Round:       q.Kind.Round,
		TargetBlock: q.Kind.TargetBlock,
		Addressees:  addressees,
	}
}
