package gsconsensus

import (
	"crypto/subtle"
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/crypto/blake2b"
)

// VoterSet is the fixed voter/weight context captured once at session
// open (§4.1, §9 "Global voter/weight context"). It is immutable for
// the lifetime of any session that references it, and assigns each
// voter a stable bit index so that addressee sets and admitted-signer
// sets can be tracked as compact [bitset.BitSet] values, the same way
// the teacher's signature proofs track which keys have signed.
type VoterSet struct {
	ids     []VoterID
	index   map[VoterID]int
	weights []uint64
	total   uint64
}

// NewVoterSet builds a VoterSet from a weight table. Voter order is
// normalized by sorting on the raw identifier bytes so that two nodes
// constructing a VoterSet from the same weights map always agree on
// bit indices, which is required for Hash to be reproducible.
func NewVoterSet(weights map[VoterID]uint64) (*VoterSet, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("gsconsensus: voter set must not be empty")
	}

	ids := make([]VoterID, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return subtle.ConstantTimeCompare(ids[i][:], ids[j][:]) < 0
	})

	vs := &VoterSet{
		ids:     ids,
		index:   make(map[VoterID]int, len(ids)),
		weights: make([]uint64, len(ids)),
	}
	for i, id := range ids {
		w := weights[id]
		if w == 0 {
			return nil, fmt.Errorf("gsconsensus: voter %s has zero weight", id)
		}
		vs.index[id] = i
		vs.weights[i] = w
		vs.total += w
	}
	return vs, nil
}

// Len returns the number of voters in the set.
func (vs *VoterSet) Len() int { return len(vs.ids) }

// TotalWeight returns the sum of all voter weights.
func (vs *VoterSet) TotalWeight() uint64 { return vs.total }

// SupermajorityThreshold returns floor(2*total/3) + 1, the minimum
// weight strictly greater than two thirds of the total (3 of 4 for four
// equal-weight voters).
func (vs *VoterSet) SupermajorityThreshold() uint64 {
	return (2*vs.total)/3 + 1
}

// MaxByzantineWeight returns f = floor((total-1)/3), the glossary's
// tolerated-Byzantine-weight bound.
func (vs *VoterSet) MaxByzantineWeight() uint64 {
	if vs.total == 0 {
		return 0
	}
	return (vs.total - 1) / 3
}

// IndexOf returns the bit index for a voter and whether it is a
// member of this set.
func (vs *VoterSet) IndexOf(id VoterID) (int, bool) {
	i, ok := vs.index[id]
	return i, ok
}

// WeightOf returns the weight of a voter, or 0 if it is not a member.
func (vs *VoterSet) WeightOf(id VoterID) uint64 {
	i, ok := vs.index[id]
	if !ok {
		return 0
	}
	return vs.weights[i]
}

// Contains reports whether id is a member of this voter set.
func (vs *VoterSet) Contains(id VoterID) bool {
	_, ok := vs.index[id]
	return ok
}

// NewBitset returns an empty bitset sized for this voter set, ready to
// record which voters are addressed, have responded, or have signed.
func (vs *VoterSet) NewBitset() *bitset.BitSet {
	return bitset.New(uint(len(vs.ids)))
}

// BitsetOf sets the bits for every id in ids, skipping any id that is
// not a member of this voter set (unauthorized voters never occupy a
// bit, per invariant 5).
func (vs *VoterSet) BitsetOf(ids ...VoterID) *bitset.BitSet {
	bs := vs.NewBitset()
	for _, id := range ids {
		if i, ok := vs.index[id]; ok {
			bs.Set(uint(i))
		}
	}
	return bs
}

// WeightOfBitset sums the weight of every voter whose bit is set.
func (vs *VoterSet) WeightOfBitset(bs *bitset.BitSet) uint64 {
	var total uint64
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		if int(i) < len(vs.weights) {
			total += vs.weights[i]
		}
	}
	return total
}

// Hash returns a deterministic digest of the voter set's membership
// and weights, so two nodes can cheaply confirm they captured the same
// context at session open. No other package in this module calls it.
func (vs *VoterSet) Hash() [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors for an invalid key length, and we
		// never pass a key, so this is unreachable.
		panic(fmt.Errorf("gsconsensus: blake2b.New256: %w", err))
	}
	for i, id := range vs.ids {
		h.Write(id[:])
		var wb [8]byte
		putUint64(wb[:], vs.weights[i])
		h.Write(wb[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}
