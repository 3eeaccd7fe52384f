// Package gscodec implements the canonical, bit-exact wire encodings
// of §6: Response and QueryDescriptor. The format is deliberately
// minimal and hand-rolled (fixed-width integers, explicit length
// prefixes) rather than routed through a general-purpose serialization
// library, since §6 pins the layout byte-for-byte and the teacher's
// own wire types (e.g. `tmcodec`) are likewise written directly
// against `encoding/binary` rather than a schema compiler.
package gscodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
)

// Response is the wire shape of one submit_response payload (§6):
// `{ instance: u64, round: u64, kind: u8, votes: [Vote] }` where
// `Vote := { voter: [u8;32], target: u64 }`.
type Response struct {
	Instance gsdriver.InstanceID
	Round    gsconsensus.RoundNumber
	Kind     gsconsensus.VoteKind
	Votes    []gsconsensus.Vote
}

// EncodeResponse writes r in canonical form: instance (u64 BE), round
// (u64 BE), kind (u8), vote count (u32 BE), then each vote as a 32-byte
// voter id followed by a u64 BE target.
func EncodeResponse(r Response) []byte {
	buf := make([]byte, 0, 8+8+1+4+len(r.Votes)*40)
	w := bytes.NewBuffer(buf)

	putU64(w, uint64(r.Instance))
	putU64(w, uint64(r.Round))
	w.WriteByte(byte(r.Kind))
	putU32(w, uint32(len(r.Votes)))
	for _, v := range r.Votes {
		w.Write(v.Voter[:])
		putU64(w, uint64(v.Target))
	}

	return w.Bytes()
}

// DecodeResponse parses the canonical encoding produced by
// EncodeResponse. It rejects truncated input but does not itself
// enforce round/kind homogeneity; that is the Validator's job (§4.3).
func DecodeResponse(data []byte) (Response, error) {
	r := bytes.NewReader(data)

	instance, err := getU64(r)
	if err != nil {
		return Response{}, fmt.Errorf("gscodec: decode instance: %w", err)
	}
	round, err := getU64(r)
	if err != nil {
		return Response{}, fmt.Errorf("gscodec: decode round: %w", err)
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return Response{}, fmt.Errorf("gscodec: decode kind: %w", err)
	}
	count, err := getU32(r)
	if err != nil {
		return Response{}, fmt.Errorf("gscodec: decode vote count: %w", err)
	}

	votes := make([]gsconsensus.Vote, count)
	for i := range votes {
		var voter gsconsensus.VoterID
		if _, err := io.ReadFull(r, voter[:]); err != nil {
			return Response{}, fmt.Errorf("gscodec: decode vote %d voter: %w", i, err)
		}
		target, err := getU64(r)
		if err != nil {
			return Response{}, fmt.Errorf("gscodec: decode vote %d target: %w", i, err)
		}
		votes[i] = gsconsensus.Vote{
			Voter:  voter,
			Target: gsconsensus.BlockNumber(target),
			Kind:   gsconsensus.VoteKind(kindByte),
			Round:  gsconsensus.RoundNumber(round),
		}
	}
	if r.Len() != 0 {
		return Response{}, fmt.Errorf("gscodec: %d trailing bytes after response", r.Len())
	}

	return Response{
		Instance: gsdriver.InstanceID(instance),
		Round:    gsconsensus.RoundNumber(round),
		Kind:     gsconsensus.VoteKind(kindByte),
		Votes:    votes,
	}, nil
}

func putU64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func putU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func getU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func getU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
