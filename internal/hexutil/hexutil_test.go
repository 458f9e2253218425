package hexutil

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBytesRoundTrip(t *testing.T) {
	b := []byte{0xde, 0xad, 0xbe, 0xef}
	enc := Encode(b)
	require.Equal(t, "0xdeadbeef", enc)

	dec, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, b, dec)
}

func TestDecodeRejectsMissingPrefix(t *testing.T) {
	_, err := Decode("deadbeef")
	require.ErrorIs(t, err, ErrMissingPrefix)
}

func TestDecodeRejectsOddLength(t *testing.T) {
	_, err := Decode("0xabc")
	require.ErrorIs(t, err, ErrOddLength)
}

func TestUint64RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0xff, 0x100, 1 << 40} {
		enc := EncodeUint64(v)
		dec, err := DecodeUint64(enc)
		require.NoError(t, err)
		require.Equal(t, v, dec)
	}
}

func TestDecodeUint64RejectsLeadingZero(t *testing.T) {
	_, err := DecodeUint64("0x0a")
	require.ErrorIs(t, err, ErrLeadingZero)
}

func TestDecodeBigRoundTrip(t *testing.T) {
	v := big.NewInt(123456789)
	enc := EncodeBig(v)
	dec, err := DecodeBig(enc)
	require.NoError(t, err)
	require.Equal(t, 0, v.Cmp(dec))
}

func TestEncodeBigZero(t *testing.T) {
	require.Equal(t, "0x0", EncodeBig(big.NewInt(0)))
	require.Equal(t, "0x0", EncodeBig(nil))
}

func TestBytesJSONRoundTrip(t *testing.T) {
	var b Bytes
	require.NoError(t, b.UnmarshalJSON([]byte(`"0x010203"`)))
	require.Equal(t, Bytes{0x01, 0x02, 0x03}, b)

	text, err := b.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "0x010203", string(text))
}
