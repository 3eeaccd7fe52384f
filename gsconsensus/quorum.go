package gsconsensus

// CouldSupermajority implements the Supermajority Oracle (§4.2): it
// reports whether the votes in S, taken as the full vote set of a
// round from the respondent's point of view, could yield a
// supermajority for target.
//
// For a closed set S — one claimed to be everything the respondent
// saw — this is equivalent to asking whether the weight of voters in
// S whose vote is compatible with target (equal to it, or for a
// descendant of it) is at least the set's supermajority threshold.
// The Response Validator negates this to check the "impossible to
// reach supermajority" condition required of step-1/2 answers
// (§4.3, Testable Property 7).
func CouldSupermajority(vs *VoterSet, votes []Vote, target BlockNumber, isAncestor AncestryFunc) bool {
	bs := vs.NewBitset()
	for _, v := range votes {
		if !compatibleWithTarget(v, target, isAncestor) {
			continue
		}
		if i, ok := vs.IndexOf(v.Voter); ok {
			bs.Set(uint(i))
		}
	}
	return vs.WeightOfBitset(bs) >= vs.SupermajorityThreshold()
}
