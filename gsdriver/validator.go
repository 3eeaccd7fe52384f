package gsdriver

import (
	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
)

// validateAndAdmit implements the Response Validator of §4.3. On
// success it unions payload into query's admitted votes, marks
// responder as having answered, and returns every equivocation found
// in the union of this session's admitted votes and both commits
// (already-recorded ones included). On failure it leaves the query and session untouched
// and returns a typed error from §7.
func validateAndAdmit(s *Session, q *QueryState, responder gsconsensus.VoterID, payload []gsconsensus.Vote) ([]gsconsensus.Equivocation, error) {
	if !q.isAddressee(s.VoterSet, responder) {
		return nil, &UnauthorizedResponderError{Responder: responder}
	}

	if len(payload) == 0 {
		return nil, &MalformedResponseError{Reason: ReasonEmptyPayload}
	}

	kind := payload[0].Kind
	for _, v := range payload {
		if v.Round != q.Kind.Round {
			return nil, &MalformedResponseError{Reason: ReasonWrongRound}
		}
		if v.Kind != kind {
			return nil, &MalformedResponseError{Reason: ReasonMixedKinds}
		}
	}

	if q.hasAdmittedVotes && kind != q.AdmittedKind {
		return nil, &MalformedResponseError{Reason: ReasonWrongKind}
	}

	switch q.Kind.Tag {
	case WhyEstimateMissingTag:
		if gsconsensus.CouldSupermajority(s.VoterSet, payload, q.Kind.TargetBlock, s.Ancestry) {
			return nil, &SemanticInvalidError{Responder: responder}
		}
	case PrevotesSeenTag:
		if kind != gsconsensus.Prevote {
			return nil, &MalformedResponseError{Reason: ReasonWrongKind}
		}
		if !gsconsensus.CouldSupermajority(s.VoterSet, payload, s.BlockEarlier.Block, s.Ancestry) {
			return nil, &SemanticInvalidError{Responder: responder}
		}
	default:
		return nil, &InvariantViolationError{Detail: "query has an unrecognized kind tag"}
	}

	// Admit: union semantics, deduplicating exact repeats.
	existing := make(map[gsconsensus.Vote]struct{}, len(q.AdmittedVotes))
	for _, v := range q.AdmittedVotes {
		existing[v] = struct{}{}
	}
	var added []gsconsensus.Vote
	for _, v := range payload {
		if _, ok := existing[v]; ok {
			continue
		}
		existing[v] = struct{}{}
		q.AdmittedVotes = append(q.AdmittedVotes, v)
		added = append(added, v)
	}
	q.AdmittedKind = kind
	q.hasAdmittedVotes = true
	if i, ok := s.VoterSet.IndexOf(responder); ok {
		q.Responded.Set(uint(i))
	}

	return detectNewEquivocations(s, added), nil
}

// detectNewEquivocations scans the full union of every query's
// admitted votes plus both commits' votes whenever added is non-empty,
// and returns every equivocation in that union, including ones already
// recorded; Session.recordEquivocations drops the duplicates.
func detectNewEquivocations(s *Session, added []gsconsensus.Vote) []gsconsensus.Equivocation {
	if len(added) == 0 {
		return nil
	}

	all := make([]gsconsensus.Vote, 0, len(added)+len(s.CommitEarlier.Precommits)+len(s.CommitLater.Precommits))
	all = append(all, s.CommitEarlier.Precommits...)
	all = append(all, s.CommitLater.Precommits...)
	for _, k := range s.queryKeys {
		all = append(all, s.queries[k].AdmittedVotes...)
	}

	return gsconsensus.DetectEquivocations(all)
}
