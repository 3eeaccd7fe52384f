package gscodec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gscodec"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
)

func TestQueryDescriptorRoundTrip(t *testing.T) {
	var a, b gsconsensus.VoterID
	a[0] = 1
	b[0] = 2

	d := gscodec.QueryDescriptor{
		Instance:    gsdriver.InstanceID(4),
		Kind:        gsdriver.WhyEstimateMissingTag,
		Round:       2,
		TargetBlock: 8,
		Addressees:  []gsconsensus.VoterID{a, b},
	}

	encoded := gscodec.EncodeQueryDescriptor(d)
	decoded, err := gscodec.DecodeQueryDescriptor(encoded)
	require.NoError(t, err)
	require.Equal(t, d, decoded)
}

func TestQueryDescriptorFromDriver(t *testing.T) {
	var a gsconsensus.VoterID
	a[0] = 9

	drv := gsdriver.QueryDescriptor{
		Instance:    1,
		Kind:        gsdriver.PrevotesSeenTag,
		Round:       1,
		TargetBlock: 0,
		Addressees:  []gsconsensus.VoterID{a},
	}

	d := gscodec.FromDriver(drv)
	require.Equal(t, gsdriver.PrevotesSeenTag, d.Kind)
	require.Equal(t, []gsconsensus.VoterID{a}, d.Addressees)
}
