package address

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randPayload(t *testing.T) []byte {
	t.Helper()
	p := make([]byte, PublicKeyBytes)
	_, err := rand.Read(p)
	require.NoError(t, err)
	return p
}

func TestRoundTrip(t *testing.T) {
	assert := assert.New(t)

	addr, err := NewAddress(randPayload(t))
	assert.NoError(err)

	str, err := encode(addr)
	assert.NoError(err)
	assert.Equal(AddrPrefix, str[:AddrPrefixLen])

	maybe, err := decode(str)
	assert.NoError(err)
	assert.Equal(addr, maybe)
}

func TestBadPayloadLength(t *testing.T) {
	_, err := NewAddress([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestDecodeRejects(t *testing.T) {
	addr, err := NewAddress(randPayload(t))
	require.NoError(t, err)
	good := addr.String()

	for name, in := range map[string]string{
		"empty":        "",
		"undef":        UndefAddressString,
		"wrong prefix": "Xx" + good[AddrPrefixLen:],
		"truncated":    good[:len(good)-6],
	} {
		_, err := NewFromString(in)
		assert.Error(t, err, name)
	}

	// flip one character to break the checksum
	bad := []byte(good)
	if bad[10] == 'a' {
		bad[10] = 'b'
	} else {
		bad[10] = 'a'
	}
	_, err = NewFromString(string(bad))
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	addr, err := NewAddress(randPayload(t))
	require.NoError(t, err)

	data, err := addr.MarshalJSON()
	require.NoError(t, err)

	var out Address
	require.NoError(t, out.UnmarshalJSON(data))
	assert.Equal(t, addr, out)
}
