package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"1", 1000000000000},
		{"1.5", 1500000000000},
		{"0.000001", 1000000},
		{"0.000000000001", 1},
		{"123.456", 123456000000000},
	} {
		got, err := ParseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{
		"", "abc", "-1", "+1", "1.2.3",
		"0.0000000000001", // more than 12 decimal places
		"99999999999999999999999999",
	} {
		_, err := ParseAmount(in)
		assert.Error(t, err, in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.500000000000", FormatAmount(1500000000000))
	assert.Equal(t, "0.000000000000", FormatAmount(0))
	assert.Equal(t, "0.000001000000", FormatAmount(1000000))
}

func TestFormatSignedAmount(t *testing.T) {
	assert.Equal(t, "-1.500000000000", FormatSignedAmount(-1500000000000))
	assert.Equal(t, "2.000000000000", FormatSignedAmount(2000000000000))
}

func TestRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 999, 1000000, 1500000000000} {
		got, err := ParseAmount(FormatAmount(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
