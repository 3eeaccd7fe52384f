package gsdriver

import "github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"

// OutstandingQuery is the observable shape of one open query, as
// exposed by SessionSnapshot (§6).
type OutstandingQuery struct {
	Round       gsconsensus.RoundNumber
	Kind        QueryKindTag
	TargetBlock gsconsensus.BlockNumber
	Addressees  []gsconsensus.VoterID
}

// SessionSnapshot is the read-only view of a session's observable
// state (§6): phase, outstanding queries, accumulated equivocations.
// Any participant can reconstruct it independently from the same
// sequence of accepted responses (Testable Property 1, Determinism).
type SessionSnapshot struct {
	ID InstanceID

	PhaseTag         PhaseTag
	WalkingBackRound gsconsensus.RoundNumber
	Verdict          *Verdict

	OutstandingQueries []OutstandingQuery

	Equivocations []gsconsensus.Equivocation
}

// Snapshot builds the observable view of s.
func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:               s.ID,
		PhaseTag:         s.Phase.Tag,
		WalkingBackRound: s.Phase.WalkingBackRound,
		Verdict:          s.Phase.Verdict,
		Equivocations:    s.Equivocations(),
	}

	for _, k := range s.queryKeys {
		q := s.queries[k]
		if q.HasAnyValidResponse() {
			continue
		}
		addressees := make([]gsconsensus.VoterID, len(q.Addressees))
		copy(addressees, q.Addressees)
		snap.OutstandingQueries = append(snap.OutstandingQueries, OutstandingQuery{
			Round:       q.Kind.Round,
			Kind:        q.Kind.Tag,
			TargetBlock: q.Kind.TargetBlock,
			Addressees:  addressees,
		})
	}

	return snap
}
