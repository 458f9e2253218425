// Package blockhash recomputes the block hash of an ExecutionPayload
// and compares it to the payload's claimed block_hash.
package blockhash

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/tos-network/elmux/engine/types"
	"github.com/tos-network/elmux/internal/hexutil"
	"github.com/tos-network/elmux/internal/keccak"
	"github.com/tos-network/elmux/rlp"
	"github.com/tos-network/elmux/trie"
)

// KeccakEmptyList is keccak256(RLP([])), the ommers-hash every
// post-merge execution block carries (no ommers are possible).
var KeccakEmptyList = mustHash("0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")

func mustHash(s string) types.Hash {
	raw := hexutil.MustDecode(s)
	var h types.Hash
	copy(h[:], raw)
	return h
}

// EmptyTrieRoot is the Merkle-Patricia root of an empty list, matching
// trie.EmptyRootHash.
var EmptyTrieRoot = types.Hash(trie.EmptyRootHash)

// Mismatch is returned when the recomputed hash disagrees with the
// payload's claimed block_hash.
type Mismatch struct {
	Expected types.Hash
	Computed types.Hash
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("blockhash: mismatch, expected %s computed %s", m.Expected, m.Computed)
}

// Verify recomputes payload's block hash (including
// parent_beacon_block_root for V3) and compares it to the claimed
// block_hash.
func Verify(payload *types.ExecutionPayload, parentBeaconBlockRoot *types.Hash) error {
	computed, err := ComputeHash(payload, parentBeaconBlockRoot)
	if err != nil {
		return err
	}
	expected := payload.BlockHash()
	if computed != expected {
		return &Mismatch{Expected: expected, Computed: computed}
	}
	return nil
}

// ComputeHash RLP-encodes the canonical execution block header for
// payload and returns its keccak256 hash.
func ComputeHash(payload *types.ExecutionPayload, parentBeaconBlockRoot *types.Hash) (types.Hash, error) {
	base := payload.Base()
	if base == nil {
		return types.Hash{}, fmt.Errorf("blockhash: payload has no version set")
	}

	txs := base.Transactions
	txItems := make([][]byte, len(txs))
	for i, tx := range txs {
		txItems[i] = []byte(tx)
	}
	txRoot := trie.DeriveRoot(txItems)

	fields := [][]byte{
		rlp.EncodeBytes(base.ParentHash.Bytes()),
		rlp.EncodeBytes(KeccakEmptyList.Bytes()),
		rlp.EncodeBytes(base.FeeRecipient.Bytes()),
		rlp.EncodeBytes(base.StateRoot.Bytes()),
		rlp.EncodeBytes(txRoot[:]),
		rlp.EncodeBytes(base.ReceiptsRoot.Bytes()),
		rlp.EncodeBytes(base.LogsBloom.Bytes()),
		rlp.EncodeUint64(0), // difficulty, always 0 post-merge
		rlp.EncodeUint64(uint64(base.BlockNumber)),
		rlp.EncodeUint64(uint64(base.GasLimit)),
		rlp.EncodeUint64(uint64(base.GasUsed)),
		rlp.EncodeUint64(uint64(base.Timestamp)),
		rlp.EncodeBytes(base.ExtraData),
		rlp.EncodeBytes(base.PrevRandao.Bytes()),
		rlp.EncodeBytes(make([]byte, 8)), // nonce, always 0x0000000000000000
		encodeBaseFee(base.BaseFeePerGas),
	}

	if payload.Version >= types.V2 {
		wds := payload.Withdrawals()
		wdItems := make([][]byte, len(wds))
		for i, w := range wds {
			wdItems[i] = encodeWithdrawal(w)
		}
		wdRoot := trie.DeriveRoot(wdItems)
		fields = append(fields, rlp.EncodeBytes(wdRoot[:]))
	}

	if payload.Version == types.V3 {
		fields = append(fields,
			rlp.EncodeUint64(uint64(payload.V3.BlobGasUsed)),
			rlp.EncodeUint64(uint64(payload.V3.ExcessBlobGas)),
		)
		if parentBeaconBlockRoot == nil {
			return types.Hash{}, fmt.Errorf("blockhash: V3 payload requires parent_beacon_block_root")
		}
		fields = append(fields, rlp.EncodeBytes(parentBeaconBlockRoot.Bytes()))
	}

	header := rlp.EncodeList(fields...)
	return types.Hash(keccak.Sum256(header)), nil
}

// encodeBaseFee RLP-encodes a *uint256.Int base fee field, treating a
// nil pointer as zero.
func encodeBaseFee(v *uint256.Int) []byte {
	if v == nil {
		return rlp.EncodeUint64(0)
	}
	return rlp.EncodeBigInt(v.ToBig())
}

func encodeWithdrawal(w *types.Withdrawal) []byte {
	return rlp.EncodeList(
		rlp.EncodeUint64(uint64(w.Index)),
		rlp.EncodeUint64(uint64(w.ValidatorIndex)),
		rlp.EncodeBytes(w.Address.Bytes()),
		rlp.EncodeUint64(uint64(w.Amount)),
	)
}
