package gsdriver

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
)

// InputInvariantKind distinguishes the ways a call to Open can fail
// §6/§7's InputInvariant error.
type InputInvariantKind uint8

const (
	// SameBlock: the two commits target the same block.
	SameBlock InputInvariantKind = iota
	// Ancestors: one commit's block is an ancestor of the other's.
	Ancestors
	// SameRound: the two commits are for the same round.
	SameRound
)

func (k InputInvariantKind) String() string {
	switch k {
	case SameBlock:
		return "SameBlock"
	case Ancestors:
		return "Ancestors"
	case SameRound:
		return "SameRound"
	default:
		return "InputInvariantKind(unknown)"
	}
}

// InputInvariantError is returned from Open when the two commits given
// do not describe a genuine conflict (§7).
type InputInvariantError struct {
	Kind InputInvariantKind
}

func (e *InputInvariantError) Error() string {
	return fmt.Sprintf("gsdriver: invalid open input: %s", e.Kind)
}

// UnauthorizedResponderError is returned when a response comes from a
// voter outside the query's addressees (§3 invariant 5, §7).
type UnauthorizedResponderError struct {
	Responder gsconsensus.VoterID
}

func (e *UnauthorizedResponderError) Error() string {
	return fmt.Sprintf("gsdriver: responder %s is not an addressee of this query", e.Responder)
}

// MalformedResponseReason enumerates the structural reasons a response
// payload is rejected before it is even checked semantically (§4.3,
// §7).
type MalformedResponseReason uint8

const (
	// ReasonEmptyPayload: the response carried no votes.
	ReasonEmptyPayload MalformedResponseReason = iota
	// ReasonMixedKinds: the payload mixed prevotes and precommits.
	ReasonMixedKinds
	// ReasonWrongRound: a vote targeted a round other than the query's.
	ReasonWrongRound
	// ReasonWrongKind: the payload's kind cannot satisfy this query
	// (a PrevotesSeen query requires prevotes) or conflicts with the
	// kind already admitted for this query (invariant 4).
	ReasonWrongKind
)

func (r MalformedResponseReason) String() string {
	switch r {
	case ReasonEmptyPayload:
		return "EmptyPayload"
	case ReasonMixedKinds:
		return "MixedKinds"
	case ReasonWrongRound:
		return "WrongRound"
	case ReasonWrongKind:
		return "WrongKind"
	default:
		return "MalformedResponseReason(unknown)"
	}
}

// MalformedResponseError is returned when a response fails structural
// validation (§7).
type MalformedResponseError struct {
	Reason MalformedResponseReason
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("gsdriver: malformed response: %s", e.Reason)
}

// SemanticInvalidError is returned when a structurally well-formed
// response fails the query's semantic check: a WhyEstimateMissing
// answer that could in fact yield a supermajority, or a PrevotesSeen
// answer that does not demonstrate one (§4.3, §7). The responder is
// flagged as a candidate Byzantine actor, but this alone is not an
// equivocation.
type SemanticInvalidError struct {
	Responder gsconsensus.VoterID
}

func (e *SemanticInvalidError) Error() string {
	return fmt.Sprintf("gsdriver: response from %s fails the query's semantic check", e.Responder)
}

// DeadlineExpiredError describes a query whose response deadline
// elapsed with zero validated responses (§7). Tick does not return it:
// Tick records that outcome as a VerdictByzantine verdict instead.
type DeadlineExpiredError struct {
	Round gsconsensus.RoundNumber
}

func (e *DeadlineExpiredError) Error() string {
	return fmt.Sprintf("gsdriver: query for round %d expired with no valid responses", e.Round)
}

// InvariantViolationError signals a session-level inconsistency that
// should be unreachable under correct inputs (§7). It is fatal: the
// session is halted and the error surfaced for operator inspection.
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("gsdriver: internal invariant violation: %s", e.Detail)
}

// ErrSessionTerminated is returned by SubmitResponse when the session
// has already reached Terminated; the response is rejected without
// being examined (§4.4).
var ErrSessionTerminated = errors.New("gsdriver: session is already terminated")
