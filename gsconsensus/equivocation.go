package gsconsensus

// Equivocation records that voter signed two votes of the same kind,
// in the same round, for two distinct targets (§3).
type Equivocation struct {
	Voter   VoterID
	Round   RoundNumber
	Kind    VoteKind
	TargetA BlockNumber
	TargetB BlockNumber
}

// DetectEquivocations scans votes for any voter that signed two
// distinct targets at the same round and kind. The Response Validator
// runs it on every admission (§4.3), over the full union of admitted
// votes and both commits; termination reports the equivocations
// recorded by those runs.
//
// The result is deterministic: voters are reported in the order their
// second conflicting vote is first observed in the input slice, and
// TargetA/TargetB preserve that first-seen/second-seen order. Callers
// that need a canonical ordering for hashing should sort the result
// themselves; DetectEquivocations does not sort because its primary
// callers already iterate votes in the one true order defined by
// round-ascending admission (§5).
func DetectEquivocations(votes []Vote) []Equivocation {
	type seenKey struct {
		Voter VoterID
		Round RoundNumber
		Kind  VoteKind
	}
	firstTarget := make(map[seenKey]BlockNumber)
	reported := make(map[seenKey]struct{})
	var out []Equivocation

	for _, v := range votes {
		k := seenKey{Voter: v.Voter, Round: v.Round, Kind: v.Kind}
		prior, ok := firstTarget[k]
		if !ok {
			firstTarget[k] = v.Target
			continue
		}
		if prior == v.Target {
			continue
		}
		if _, already := reported[k]; already {
			continue
		}
		reported[k] = struct{}{}
		out = append(out, Equivocation{
			Voter:   v.Voter,
			Round:   v.Round,
			Kind:    v.Kind,
			TargetA: prior,
			TargetB: v.Target,
		})
	}
	return out
}
