package gscodec

import (
	"bytes"
	"fmt"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
)

// QueryDescriptor is the wire shape of §6's query descriptor:
// `{ instance: u64, query_kind: u8, round: u64, target_block: u64,
// addressees: [VoterId] }`. target_block is present but ignored by the
// receiver for PrevotesSeen, per §6.
type QueryDescriptor struct {
	Instance    gsdriver.InstanceID
	Kind        gsdriver.QueryKindTag
	Round       gsconsensus.RoundNumber
	TargetBlock gsconsensus.BlockNumber
	Addressees  []gsconsensus.VoterID
}

// FromDriver converts a gsdriver.QueryDescriptor into its wire shape.
func FromDriver(d gsdriver.QueryDescriptor) QueryDescriptor {
	return QueryDescriptor{
		Instance:    d.Instance,
		Kind:        d.Kind,
		Round:       d.Round,
		TargetBlock: d.TargetBlock,
		Addressees:  d.Addressees,
	}
}

// EncodeQueryDescriptor writes d in canonical form.
func EncodeQueryDescriptor(d QueryDescriptor) []byte {
	w := new(bytes.Buffer)

	putU64(w, uint64(d.Instance))
	w.WriteByte(byte(d.Kind))
	putU64(w, uint64(d.Round))
	putU64(w, uint64(d.TargetBlock))
	putU32(w, uint32(len(d.Addressees)))
	for _, a := range d.Addressees {
		w.Write(a[:])
	}

	return w.Bytes()
}

// DecodeQueryDescriptor parses the canonical encoding produced by
// EncodeQueryDescriptor.
func DecodeQueryDescriptor(data []byte) (QueryDescriptor, error) {
	r := bytes.NewReader(data)

	instance, err := getU64(r)
	if err != nil {
		return QueryDescriptor{}, fmt.Errorf("gscodec: decode instance: %w", err)
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return QueryDescriptor{}, fmt.Errorf("gscodec: decode query kind: %w", err)
	}
	round, err := getU64(r)
	if err != nil {
		return QueryDescriptor{}, fmt.Errorf("gscodec: decode round: %w", err)
	}
	target, err := getU64(r)
	if err != nil {
		return QueryDescriptor{}, fmt.Errorf("gscodec: decode target block: %w", err)
	}
	count, err := getU32(r)
	if err != nil {
		return QueryDescriptor{}, fmt.Errorf("gscodec: decode addressee count: %w", err)
	}

	addressees := make([]gsconsensus.VoterID, count)
	for i := range addressees {
		if _, err := r.Read(addressees[i][:]); err != nil {
			return QueryDescriptor{}, fmt.Errorf("gscodec: decode addressee %d: %w", i, err)
		}
	}
	if r.Len() != 0 {
		return QueryDescriptor{}, fmt.Errorf("gscodec: %d trailing bytes after query descriptor", r.Len())
	}

	return QueryDescriptor{
		Instance:    gsdriver.InstanceID(instance),
		Kind:        gsdriver.QueryKindTag(kindByte),
		Round:       gsconsensus.RoundNumber(round),
		TargetBlock: gsconsensus.BlockNumber(target),
		Addressees:  addressees,
	}, nil
}
