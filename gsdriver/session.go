package gsdriver

import (
	"sort"
	"time"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
)

// InstanceID identifies one Accountable Safety session.
type InstanceID uint64

// BlockRoundRef names a finalized block together with the round its
// commit was produced in.
type BlockRoundRef struct {
	Block gsconsensus.BlockNumber
	Round gsconsensus.RoundNumber
}

// PhaseTag is the tag of the SessionPhase variant described in §3.
type PhaseTag uint8

const (
	PhaseAwaitingFirstQuery PhaseTag = iota
	PhaseWalkingBack
	PhaseAwaitingStep3
	PhaseTerminated
)

func (t PhaseTag) String() string {
	switch t {
	case PhaseAwaitingFirstQuery:
		return "AwaitingFirstQuery"
	case PhaseWalkingBack:
		return "WalkingBack"
	case PhaseAwaitingStep3:
		return "AwaitingStep3"
	case PhaseTerminated:
		return "Terminated"
	default:
		return "PhaseTag(unknown)"
	}
}

// order gives the one true total order phases may advance in
// (Testable Property 5, Monotonicity).
func (t PhaseTag) order() int {
	switch t {
	case PhaseAwaitingFirstQuery:
		return 0
	case PhaseWalkingBack:
		return 1
	case PhaseAwaitingStep3:
		return 2
	case PhaseTerminated:
		return 3
	default:
		return -1
	}
}

// VerdictKind distinguishes why a session terminated.
type VerdictKind uint8

const (
	// VerdictEquivocators: the protocol walked the history back to a
	// round where it could union vote sets and name equivocators.
	VerdictEquivocators VerdictKind = iota
	// VerdictByzantine: a query's deadline expired with no valid
	// responses; every addressee is reported Byzantine.
	VerdictByzantine
	// VerdictAborted: the session was explicitly aborted by the
	// external collaborator.
	VerdictAborted
)

// Verdict is the terminal output of a session.
type Verdict struct {
	Kind VerdictKind

	// Equivocations is populated when Kind == VerdictEquivocators.
	Equivocations []gsconsensus.Equivocation

	// ByzantineVoters is populated when Kind == VerdictByzantine.
	ByzantineVoters []gsconsensus.VoterID

	// Round is the round whose query triggered termination, for
	// VerdictByzantine; for VerdictEquivocators it is the round at
	// which equivocators were identified.
	Round gsconsensus.RoundNumber
}

// Phase is the tagged variant of §3's SessionPhase.
type Phase struct {
	Tag PhaseTag

	// WalkingBackRound is valid only when Tag == PhaseWalkingBack; it
	// names the round of the currently outstanding query.
	WalkingBackRound gsconsensus.RoundNumber

	// Verdict is valid only when Tag == PhaseTerminated.
	Verdict *Verdict
}

// Session is one Accountable Safety instance: everything named in §3.
//
// Queries are kept in an ordered map keyed by (round, query kind),
// ascending by round then kind, per the persisted state layout of §6
// — represented here as a slice of keys plus a map, since Go has no
// built-in ordered map, the same workaround the teacher's codebase
// uses for its own ordered collections of round-keyed state. The
// round alone is not a unique key: the step-2 WhyEstimateMissing
// query and the step-3 PrevotesSeen query both interrogate round r
// (§4.4), so a query's kind tag is part of its identity.
type Session struct {
	ID InstanceID

	VoterSet *gsconsensus.VoterSet
	Ancestry gsconsensus.AncestryFunc

	BlockEarlier  BlockRoundRef
	CommitEarlier gsconsensus.Commit

	BlockLater  BlockRoundRef
	CommitLater gsconsensus.Commit

	Phase Phase

	queryKeys []queryKey
	queries   map[queryKey]*QueryState

	// equivocations accumulates the union of every equivocation
	// discovered so far; it only grows (Testable Property 5).
	equivocations []gsconsensus.Equivocation
	equivSeen     map[equivKey]struct{}

	// SynchronyWindow bounds how long a query may remain outstanding
	// before Tick marks its addressees Byzantine (§5).
	SynchronyWindow time.Duration

	openedAt time.Time
}

// queryKey identifies one outgoing query. Round alone is ambiguous
// once a step-3 PrevotesSeen query is dispatched for the same round a
// step-2 WhyEstimateMissing query already examined.
type queryKey struct {
	Round gsconsensus.RoundNumber
	Tag   QueryKindTag
}

type equivKey struct {
	Voter gsconsensus.VoterID
	Round gsconsensus.RoundNumber
	Kind  gsconsensus.VoteKind
}

// Equivocations returns the accumulated, deduplicated equivocation set
// in the order each equivocation was first recorded.
func (s *Session) Equivocations() []gsconsensus.Equivocation {
	out := make([]gsconsensus.Equivocation, len(s.equivocations))
	copy(out, s.equivocations)
	return out
}

func (s *Session) recordEquivocations(found []gsconsensus.Equivocation) {
	if s.equivSeen == nil {
		s.equivSeen = make(map[equivKey]struct{})
	}
	for _, e := range found {
		k := equivKey{Voter: e.Voter, Round: e.Round, Kind: e.Kind}
		if _, ok := s.equivSeen[k]; ok {
			continue
		}
		s.equivSeen[k] = struct{}{}
		s.equivocations = append(s.equivocations, e)
	}
}

// QueryRounds returns the distinct rounds for which a query has been
// opened, ascending.
func (s *Session) QueryRounds() []gsconsensus.RoundNumber {
	out := make([]gsconsensus.RoundNumber, 0, len(s.queryKeys))
	var last gsconsensus.RoundNumber
	haveLast := false
	for _, k := range s.queryKeys {
		if haveLast && k.Round == last {
			continue
		}
		out = append(out, k.Round)
		last = k.Round
		haveLast = true
	}
	return out
}

// QueryAt returns the query state addressing round, if one has been
// opened. When both a step-2 and a step-3 query exist for the same
// round (§4.4), the still-outstanding one is preferred, since a
// response naming only a round (§6's wire format carries no query
// kind) is always meant for whichever query at that round is still
// awaiting an admitting response; if none is outstanding, the most
// recently opened query for the round is returned.
func (s *Session) QueryAt(round gsconsensus.RoundNumber) (*QueryState, bool) {
	var fallback *QueryState
	for _, k := range s.queryKeys {
		if k.Round != round {
			continue
		}
		q := s.queries[k]
		if !q.HasAnyValidResponse() {
			return q, true
		}
		fallback = q
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}

func (s *Session) addQuery(q *QueryState) {
	if s.queries == nil {
		s.queries = make(map[queryKey]*QueryState)
	}
	key := queryKey{Round: q.Kind.Round, Tag: q.Kind.Tag}
	if _, exists := s.queries[key]; !exists {
		s.queryKeys = append(s.queryKeys, key)
		sort.Slice(s.queryKeys, func(i, j int) bool {
			if s.queryKeys[i].Round != s.queryKeys[j].Round {
				return s.queryKeys[i].Round < s.queryKeys[j].Round
			}
			return s.queryKeys[i].Tag < s.queryKeys[j].Tag
		})
	}
	s.queries[key] = q
}

// PendingQueries returns the descriptors of every query that has not
// yet received an admitting response, for a transport to disseminate
// (§9).
func (s *Session) PendingQueries() []QueryDescriptor {
	var out []QueryDescriptor
	for _, k := range s.queryKeys {
		q := s.queries[k]
		if q.HasAnyValidResponse() {
			continue
		}
		out = append(out, q.descriptor(s.ID))
	}
	return out
}

// Terminated reports whether the session has reached a terminal
// phase.
func (s *Session) Terminated() bool {
	return s.Phase.Tag == PhaseTerminated
}

// advancePhase sets the session's phase, enforcing Testable Property 5
// (phase only advances in the declared order). Terminated may be
// reached from any phase; every other transition must strictly
// increase the phase order, except that WalkingBack may move to
// WalkingBack at a strictly lower round.
func (s *Session) advancePhase(next Phase) error {
	sameWalkBack := next.Tag == PhaseWalkingBack && s.Phase.Tag == PhaseWalkingBack
	intraWalkBackProgress := sameWalkBack && next.WalkingBackRound < s.Phase.WalkingBackRound
	advancingTag := next.Tag.order() > s.Phase.Tag.order()

	if next.Tag != PhaseTerminated && !advancingTag && !intraWalkBackProgress {
		return &InvariantViolationError{Detail: "phase must advance, never repeat or regress"}
	}
	s.Phase = next
	return nil
}
