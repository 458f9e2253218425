// Package rlp implements the subset of Ethereum's Recursive Length
// Prefix encoding the block-hash verifier needs: byte strings, unsigned
// integers, and lists of already-encoded items.
package rlp

import "math/big"

// EncodeBytes RLP-encodes a byte string per the Yellow Paper's Rb rule.
func EncodeBytes(b []byte) []byte {
	switch {
	case len(b) == 1 && b[0] < 0x80:
		return []byte{b[0]}
	case len(b) < 56:
		out := make([]byte, 0, 1+len(b))
		out = append(out, byte(0x80+len(b)))
		return append(out, b...)
	default:
		lenBytes := encodeLength(uint64(len(b)))
		out := make([]byte, 0, 1+len(lenBytes)+len(b))
		out = append(out, byte(0xb7+len(lenBytes)))
		out = append(out, lenBytes...)
		return append(out, b...)
	}
}

// EncodeUint64 RLP-encodes i as a big-endian byte string with no
// leading zero bytes (i == 0 encodes as the empty string).
func EncodeUint64(i uint64) []byte {
	if i == 0 {
		return EncodeBytes(nil)
	}
	var buf [8]byte
	n := 8
	for n > 0 {
		n--
		buf[n] = byte(i)
		i >>= 8
		if i == 0 {
			break
		}
	}
	return EncodeBytes(buf[n:])
}

// EncodeBigInt RLP-encodes a non-negative big.Int the same way.
func EncodeBigInt(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return EncodeBytes(nil)
	}
	return EncodeBytes(v.Bytes())
}

// EncodeList wraps pre-encoded items in an RLP list header.
func EncodeList(items ...[]byte) []byte {
	var body int
	for _, it := range items {
		body += len(it)
	}
	var out []byte
	switch {
	case body < 56:
		out = make([]byte, 0, 1+body)
		out = append(out, byte(0xc0+body))
	default:
		lenBytes := encodeLength(uint64(body))
		out = make([]byte, 0, 1+len(lenBytes)+body)
		out = append(out, byte(0xf7+len(lenBytes)))
		out = append(out, lenBytes...)
	}
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

// encodeLength returns the minimal big-endian encoding of n, used for
// long-form string/list length prefixes.
func encodeLength(n uint64) []byte {
	var buf [8]byte
	i := 8
	for n > 0 {
		i--
		buf[i] = byte(n)
		n >>= 8
	}
	return buf[i:]
}
