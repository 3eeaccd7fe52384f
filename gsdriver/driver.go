// Package gsdriver implements the Response Validator, Session State
// and Protocol Driver of the Accountable Safety core (§4.3, §4.4):
// the deterministic state machine that walks two conflicting commits'
// vote history backward until it can name equivocators.
//
// Every entry point here completes synchronously, per §5's
// single-threaded cooperative model, and returns only an error (Open
// also returns the new Session); the newly pending outgoing queries or
// the terminal verdict are then read from the Session (PendingQueries,
// Phase.Verdict). Nothing in this package suspends,
// retries, or talks to a transport; an outer collaborator is
// responsible for disseminating [QueryDescriptor] values and for
// feeding responses back in the deterministic order the session
// requires (§5's ordering guarantee).
package gsdriver

import (
	"time"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
)

// DefaultSynchronyWindow is used when Open is not given an explicit
// one; it is deliberately generous since §1 treats the synchrony
// bound as an external, configurable policy, not a protocol constant.
const DefaultSynchronyWindow = 30 * time.Second

// OpenInput bundles the arguments to Open so that validating them
// together (rather than as positional parameters) reads the same way
// tmengine.Opt accumulates configuration (§2 AMBIENT STACK).
type OpenInput struct {
	VoterSet *gsconsensus.VoterSet
	Ancestry gsconsensus.AncestryFunc

	BlockEarlier  BlockRoundRef
	CommitEarlier gsconsensus.Commit

	BlockLater  BlockRoundRef
	CommitLater gsconsensus.Commit

	// SynchronyWindow overrides DefaultSynchronyWindow when non-zero.
	SynchronyWindow time.Duration
}

// Open validates the two commits given describe a genuine conflict
// (§7 InputInvariant) and, if so, builds a new Session already
// advanced through its entry transition (§4.4 AwaitingFirstQuery):
// the first outgoing query has been computed and the phase has moved
// to WalkingBack.
func Open(id InstanceID, in OpenInput, now time.Time) (*Session, error) {
	if in.CommitEarlier.Block == in.CommitLater.Block {
		return nil, &InputInvariantError{Kind: SameBlock}
	}
	if in.Ancestry(in.CommitEarlier.Block, in.CommitLater.Block) || in.Ancestry(in.CommitLater.Block, in.CommitEarlier.Block) {
		return nil, &InputInvariantError{Kind: Ancestors}
	}
	if in.BlockEarlier.Round >= in.BlockLater.Round {
		return nil, &InputInvariantError{Kind: SameRound}
	}
	if err := in.CommitEarlier.Validate(in.VoterSet, in.Ancestry); err != nil {
		return nil, err
	}
	if err := in.CommitLater.Validate(in.VoterSet, in.Ancestry); err != nil {
		return nil, err
	}

	window := in.SynchronyWindow
	if window == 0 {
		window = DefaultSynchronyWindow
	}

	s := &Session{
		ID:              id,
		VoterSet:        in.VoterSet,
		Ancestry:        in.Ancestry,
		BlockEarlier:    in.BlockEarlier,
		CommitEarlier:   in.CommitEarlier,
		BlockLater:      in.BlockLater,
		CommitLater:     in.CommitLater,
		Phase:           Phase{Tag: PhaseAwaitingFirstQuery},
		SynchronyWindow: window,
		openedAt:        now,
	}

	r := s.BlockEarlier.Round
	rPrime := s.BlockLater.Round
	B := s.BlockEarlier.Block

	firstRound := rPrime - 1
	if rPrime == r+1 {
		// Fast path (§4.4, Scenario D): skip directly to the step-2
		// query instead of a degenerate walk-back of zero rounds.
		firstRound = r
	}

	q := newQueryState(s.VoterSet, WhyEstimateMissing(firstRound, B), s.CommitLater.Voters())
	q.Deadline = deadlineUnix(now, window)
	s.addQuery(q)
	s.Phase = Phase{Tag: PhaseWalkingBack, WalkingBackRound: firstRound}

	return s, nil
}

func deadlineUnix(now time.Time, window time.Duration) int64 {
	return now.Add(window).Unix()
}

// SubmitResponse is the Driver's sole mutating entry point besides
// Open, Tick and Abort (§6). It validates and admits payload via the
// Response Validator, records any newly discovered equivocations, and
// — if this is the first admitting response for the currently active
// query — advances the session's phase per §4.4.
func SubmitResponse(s *Session, responder gsconsensus.VoterID, round gsconsensus.RoundNumber, payload []gsconsensus.Vote, now time.Time) error {
	if s.Terminated() {
		return ErrSessionTerminated
	}

	q, ok := s.QueryAt(round)
	if !ok {
		return &MalformedResponseError{Reason: ReasonWrongRound}
	}

	wasFirstAdmission := !q.HasAnyValidResponse()

	equivs, err := validateAndAdmit(s, q, responder, payload)
	if err != nil {
		return err
	}
	s.recordEquivocations(equivs)

	if wasFirstAdmission && !q.transitioned && isActiveQueryRound(s, round) {
		q.transitioned = true
		if err := advance(s, q, now); err != nil {
			return err
		}
	}

	return nil
}

func isActiveQueryRound(s *Session, round gsconsensus.RoundNumber) bool {
	switch s.Phase.Tag {
	case PhaseWalkingBack:
		return round == s.Phase.WalkingBackRound
	case PhaseAwaitingStep3:
		return round == s.BlockEarlier.Round
	default:
		return false
	}
}

// advance implements the branching of §4.4's WalkingBack and
// step-2/step-3 handling, given that q is the first admitted response
// for the currently active query.
func advance(s *Session, q *QueryState, now time.Time) error {
	r := s.BlockEarlier.Round

	switch s.Phase.Tag {
	case PhaseWalkingBack:
		round := s.Phase.WalkingBackRound
		switch {
		case round > r:
			nextRound := round - 1
			nq := newQueryState(s.VoterSet, WhyEstimateMissing(nextRound, s.BlockEarlier.Block), q.Addressees)
			nq.Deadline = deadlineUnix(now, s.SynchronyWindow)
			s.addQuery(nq)
			return s.advancePhase(Phase{Tag: PhaseWalkingBack, WalkingBackRound: nextRound})

		case round == r:
			if q.AdmittedKind == gsconsensus.Precommit {
				return terminateWithEquivocators(s, r)
			}
			// Prevote: dispatch the step-3 query to the earlier
			// commit's voters.
			nq := newQueryState(s.VoterSet, PrevotesSeen(r), s.CommitEarlier.Voters())
			nq.Deadline = deadlineUnix(now, s.SynchronyWindow)
			s.addQuery(nq)
			return s.advancePhase(Phase{Tag: PhaseAwaitingStep3})

		default:
			return &InvariantViolationError{Detail: "walked back past the earlier commit's round"}
		}

	case PhaseAwaitingStep3:
		return terminateWithEquivocators(s, r)

	default:
		return &InvariantViolationError{Detail: "advance called outside WalkingBack or AwaitingStep3"}
	}
}

func terminateWithEquivocators(s *Session, round gsconsensus.RoundNumber) error {
	return s.advancePhase(Phase{
		Tag: PhaseTerminated,
		Verdict: &Verdict{
			Kind:          VerdictEquivocators,
			Equivocations: s.Equivocations(),
			Round:         round,
		},
	})
}

// Tick evaluates the currently active query's deadline against now
// (§5). If it has elapsed with zero validated responses, every
// addressee is reported Byzantine and the session terminates (§4.4,
// Scenario C, §7 DeadlineExpired).
func Tick(s *Session, now time.Time) error {
	if s.Terminated() {
		return nil
	}

	round, ok := activeRound(s)
	if !ok {
		return nil
	}
	q, ok := s.QueryAt(round)
	if !ok {
		return &InvariantViolationError{Detail: "active phase names a round with no query"}
	}
	if q.HasAnyValidResponse() {
		return nil
	}
	if q.Deadline == 0 || now.Unix() < q.Deadline {
		return nil
	}

	q.ByzantineAddressees = append([]gsconsensus.VoterID(nil), q.Addressees...)
	return s.advancePhase(Phase{
		Tag: PhaseTerminated,
		Verdict: &Verdict{
			Kind:            VerdictByzantine,
			ByzantineVoters: q.ByzantineAddressees,
			Round:           round,
		},
	})
}

func activeRound(s *Session) (gsconsensus.RoundNumber, bool) {
	switch s.Phase.Tag {
	case PhaseWalkingBack:
		return s.Phase.WalkingBackRound, true
	case PhaseAwaitingStep3:
		return s.BlockEarlier.Round, true
	default:
		return 0, false
	}
}

// Abort explicitly terminates a session outside the normal protocol
// flow (§5 Cancellation). Aborting an already-terminated session is a
// no-op.
func Abort(s *Session) error {
	if s.Terminated() {
		return nil
	}
	return s.advancePhase(Phase{Tag: PhaseTerminated, Verdict: &Verdict{Kind: VerdictAborted}})
}
