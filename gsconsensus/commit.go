package gsconsensus

import "fmt"

// Commit is a supermajority-weight collection of precommits for a
// single round, all consistent with one finalized block (or a
// descendant of it). See §3's Commit invariant.
type Commit struct {
	Round      RoundNumber
	Block      BlockNumber
	Precommits []Vote
}

// Voters returns the distinct set of voters that signed this commit's
// precommits.
func (c Commit) Voters() []VoterID {
	seen := make(map[VoterID]struct{}, len(c.Precommits))
	out := make([]VoterID, 0, len(c.Precommits))
	for _, v := range c.Precommits {
		if _, ok := seen[v.Voter]; ok {
			continue
		}
		seen[v.Voter] = struct{}{}
		out = append(out, v.Voter)
	}
	return out
}

// Weight returns the combined weight of the commit's distinct voters
// under vs.
func (c Commit) Weight(vs *VoterSet) uint64 {
	return vs.WeightOfBitset(vs.BitsetOf(c.Voters()...))
}

// Validate checks the Commit invariant of §3: every precommit targets
// Round and Block (or a descendant of Block), all precommits are
// precommits, and the combined weight of distinct signers reaches the
// supermajority threshold.
func (c Commit) Validate(vs *VoterSet, isAncestor AncestryFunc) error {
	if len(c.Precommits) == 0 {
		return fmt.Errorf("gsconsensus: commit at round %d has no precommits", c.Round)
	}
	for _, v := range c.Precommits {
		if v.Kind != Precommit {
			return fmt.Errorf("gsconsensus: commit at round %d contains a non-precommit vote from %s", c.Round, v.Voter)
		}
		if v.Round != c.Round {
			return fmt.Errorf("gsconsensus: commit at round %d contains a vote for round %d", c.Round, v.Round)
		}
		if !compatibleWithTarget(v, c.Block, isAncestor) {
			return fmt.Errorf("gsconsensus: commit at round %d contains a vote for %d incompatible with block %d", c.Round, v.Target, c.Block)
		}
	}
	if c.Weight(vs) < vs.SupermajorityThreshold() {
		return fmt.Errorf("gsconsensus: commit at round %d does not carry supermajority weight", c.Round)
	}
	return nil
}
