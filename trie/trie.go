// Package trie computes the Merkle-Patricia root of an ordered list
// (transactions, withdrawals) the way the block-hash verifier needs
// it. It is an ephemeral, insert-only trie: build it once from a
// list, read Hash(), discard it. There is no backing database and no
// lookup path, unlike a full chain's persistent state trie.
package trie

import (
	"github.com/tos-network/elmux/internal/keccak"
	"github.com/tos-network/elmux/rlp"
)

// EmptyRootHash is the root of a trie holding nothing: keccak256 of
// the RLP encoding of the empty string.
var EmptyRootHash = keccak.Sum256(rlp.EncodeBytes(nil))

type node interface{}

type (
	fullNode  struct{ Children [17]node }
	shortNode struct {
		Key []byte
		Val node
	}
	valueNode []byte
)

// Trie is a single-use, insert-only Merkle-Patricia trie.
type Trie struct {
	root node
}

func New() *Trie { return &Trie{} }

// Update inserts key/value. Keys are nibble-expanded on the way in;
// callers pass raw bytes.
func (t *Trie) Update(key, value []byte) {
	t.root = insert(t.root, keybytesToHex(key), valueNode(append([]byte(nil), value...)))
}

// Hash returns the root hash of everything inserted so far.
func (t *Trie) Hash() [32]byte {
	return keccak.Sum256(encode(t.root))
}

// DeriveRoot computes the Merkle-Patricia root of an ordered list whose
// items are keyed by the RLP encoding of their index (used for both
// the transactions root and the withdrawals root).
func DeriveRoot(items [][]byte) [32]byte {
	t := New()
	for i, item := range items {
		t.Update(rlp.EncodeUint64(uint64(i)), item)
	}
	return t.Hash()
}

func insert(n node, key []byte, value node) node {
	if len(key) == 0 {
		if fn, ok := n.(*fullNode); ok {
			cp := *fn
			cp.Children[16] = value
			return &cp
		}
		return value
	}
	switch n := n.(type) {
	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		if matchlen == len(n.Key) {
			return &shortNode{Key: n.Key, Val: insert(n.Val, key[matchlen:], value)}
		}
		branch := &fullNode{}
		branch.Children[n.Key[matchlen]] = insert(nil, n.Key[matchlen+1:], n.Val)
		branch.Children[key[matchlen]] = insert(nil, key[matchlen+1:], value)
		if matchlen == 0 {
			return branch
		}
		return &shortNode{Key: append([]byte(nil), key[:matchlen]...), Val: branch}
	case *fullNode:
		cp := *n
		cp.Children[key[0]] = insert(n.Children[key[0]], key[1:], value)
		return &cp
	case nil:
		return &shortNode{Key: append([]byte(nil), key...), Val: value}
	default:
		panic("trie: invalid node type")
	}
}

func encode(n node) []byte {
	switch n := n.(type) {
	case nil:
		return rlp.EncodeBytes(nil)
	case valueNode:
		return rlp.EncodeBytes(n)
	case *shortNode:
		var valEnc []byte
		if v, ok := n.Val.(valueNode); ok {
			valEnc = rlp.EncodeBytes(v)
		} else {
			valEnc = hashChild(n.Val)
		}
		return rlp.EncodeList(rlp.EncodeBytes(hexToCompact(n.Key)), valEnc)
	case *fullNode:
		items := make([][]byte, 17)
		for i := 0; i < 16; i++ {
			items[i] = hashChild(n.Children[i])
		}
		if v, ok := n.Children[16].(valueNode); ok {
			items[16] = rlp.EncodeBytes(v)
		} else {
			items[16] = rlp.EncodeBytes(nil)
		}
		return rlp.EncodeList(items...)
	default:
		panic("trie: invalid node type")
	}
}

// hashChild encodes a child node, embedding it directly when its
// encoding is under 32 bytes and substituting its keccak256 hash
// otherwise, per the Yellow Paper's node-reference rule.
func hashChild(n node) []byte {
	if n == nil {
		return rlp.EncodeBytes(nil)
	}
	if v, ok := n.(valueNode); ok {
		return rlp.EncodeBytes(v)
	}
	enc := encode(n)
	if len(enc) < 32 {
		return enc
	}
	h := keccak.Sum256(enc)
	return rlp.EncodeBytes(h[:])
}

func prefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func keybytesToHex(key []byte) []byte {
	l := len(key)*2 + 1
	nibbles := make([]byte, l)
	for i, b := range key {
		nibbles[i*2] = b / 16
		nibbles[i*2+1] = b % 16
	}
	nibbles[l-1] = 16
	return nibbles
}

func hasTerm(s []byte) bool {
	return len(s) > 0 && s[len(s)-1] == 16
}

func hexToCompact(hex []byte) []byte {
	var terminator byte
	if hasTerm(hex) {
		terminator = 1
		hex = hex[:len(hex)-1]
	}
	buf := make([]byte, len(hex)/2+1)
	buf[0] = terminator << 5
	if len(hex)&1 == 1 {
		buf[0] |= 1 << 4
		buf[0] |= hex[0]
		hex = hex[1:]
	}
	for bi, ni := 0, 0; ni < len(hex); bi, ni = bi+1, ni+2 {
		buf[bi+1] = hex[ni]<<4 | hex[ni+1]
	}
	return buf
}
