// Package types holds the Engine API data model: ExecutionPayload
// V1-V3, PayloadStatusV1, Withdrawal, and the getPayload response
// envelopes.
package types

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/tos-network/elmux/internal/hexutil"
)

// Hash is a 32-byte fixed-width value (block/state/tx roots, etc).
type Hash [32]byte

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) String() string { return hexutil.Encode(h[:]) }

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(h[:])), nil
}

func (h *Hash) UnmarshalJSON(input []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalJSON(input); err != nil {
		return err
	}
	if len(b) != len(h) {
		return fmt.Errorf("types: hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return nil
}

// Address is a 20-byte fixed-width value.
type Address [20]byte

func (a Address) Bytes() []byte { return a[:] }

func (a Address) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(a[:])), nil
}

func (a *Address) UnmarshalJSON(input []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalJSON(input); err != nil {
		return err
	}
	if len(b) != len(a) {
		return fmt.Errorf("types: address must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return nil
}

// Bloom is the 256-byte logs bloom filter.
type Bloom [256]byte

func (b Bloom) Bytes() []byte { return b[:] }

func (b Bloom) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(b[:])), nil
}

func (b *Bloom) UnmarshalJSON(input []byte) error {
	var raw hexutil.Bytes
	if err := raw.UnmarshalJSON(input); err != nil {
		return err
	}
	if len(raw) != len(b) {
		return fmt.Errorf("types: bloom must be %d bytes, got %d", len(b), len(raw))
	}
	copy(b[:], raw)
	return nil
}

// Withdrawal is an EIP-4895 validator withdrawal.
type Withdrawal struct {
	Index          hexutil.Uint64 `json:"index"`
	ValidatorIndex hexutil.Uint64 `json:"validatorIndex"`
	Address        Address        `json:"address"`
	Amount         hexutil.Uint64 `json:"amount"`
}

// ExecutionPayloadV1 carries the fields common to every fork.
type ExecutionPayloadV1 struct {
	ParentHash    Hash            `json:"parentHash"`
	FeeRecipient  Address         `json:"feeRecipient"`
	StateRoot     Hash            `json:"stateRoot"`
	ReceiptsRoot  Hash            `json:"receiptsRoot"`
	LogsBloom     Bloom           `json:"logsBloom"`
	PrevRandao    Hash            `json:"prevRandao"`
	BlockNumber   hexutil.Uint64  `json:"blockNumber"`
	GasLimit      hexutil.Uint64  `json:"gasLimit"`
	GasUsed       hexutil.Uint64  `json:"gasUsed"`
	Timestamp     hexutil.Uint64  `json:"timestamp"`
	ExtraData     hexutil.Bytes   `json:"extraData"`
	BaseFeePerGas *uint256.Int    `json:"baseFeePerGas"`
	BlockHash     Hash            `json:"blockHash"`
	Transactions  []hexutil.Bytes `json:"transactions"`
}

// ExecutionPayloadV2 adds withdrawals (Shanghai, EIP-4895).
type ExecutionPayloadV2 struct {
	ExecutionPayloadV1
	Withdrawals []*Withdrawal `json:"withdrawals"`
}

// ExecutionPayloadV3 adds blob gas accounting (Cancun, EIP-4844).
type ExecutionPayloadV3 struct {
	ExecutionPayloadV2
	BlobGasUsed   hexutil.Uint64 `json:"blobGasUsed"`
	ExcessBlobGas hexutil.Uint64 `json:"excessBlobGas"`
}

// Version identifies which payload variant is in play.
type Version int

const (
	V1 Version = iota + 1
	V2
	V3
)

func (v Version) String() string {
	switch v {
	case V1:
		return "V1"
	case V2:
		return "V2"
	case V3:
		return "V3"
	default:
		return "unknown"
	}
}

// ExecutionPayload is a tagged union over V1/V2/V3.
type ExecutionPayload struct {
	Version Version
	V1      *ExecutionPayloadV1
	V2      *ExecutionPayloadV2
	V3      *ExecutionPayloadV3
}

// Base returns the V1 fields common to every version.
func (p *ExecutionPayload) Base() *ExecutionPayloadV1 {
	switch p.Version {
	case V1:
		return p.V1
	case V2:
		return &p.V2.ExecutionPayloadV1
	case V3:
		return &p.V3.ExecutionPayloadV2.ExecutionPayloadV1
	default:
		return nil
	}
}

// Withdrawals returns the withdrawal list for V2/V3, nil for V1.
func (p *ExecutionPayload) Withdrawals() []*Withdrawal {
	switch p.Version {
	case V2:
		return p.V2.Withdrawals
	case V3:
		return p.V3.ExecutionPayloadV2.Withdrawals
	default:
		return nil
	}
}

// BlockHash returns the claimed block hash for any version.
func (p *ExecutionPayload) BlockHash() Hash {
	return p.Base().BlockHash
}

// MarshalJSON renders whichever concrete payload is set.
func (p *ExecutionPayload) MarshalJSON() ([]byte, error) {
	switch p.Version {
	case V1:
		return json.Marshal(p.V1)
	case V2:
		return json.Marshal(p.V2)
	case V3:
		return json.Marshal(p.V3)
	default:
		return nil, fmt.Errorf("types: execution payload has no version set")
	}
}

// Status is the payload status an execution node reports.
type Status string

const (
	StatusValid            Status = "VALID"
	StatusInvalid          Status = "INVALID"
	StatusSyncing          Status = "SYNCING"
	StatusAccepted         Status = "ACCEPTED"
	StatusInvalidBlockHash Status = "INVALID_BLOCK_HASH"
)

// PayloadStatusV1 is the fcU/newPayload response envelope. Equality and
// hashing (for the majority reducer) are over all three fields.
type PayloadStatusV1 struct {
	Status          Status  `json:"status"`
	LatestValidHash *Hash   `json:"latestValidHash"`
	ValidationError *string `json:"validationError"`
}

// Key returns a value suitable for equality comparison / map-keying
// across all three fields, for the majority reducer.
func (s PayloadStatusV1) Key() string {
	hash := "nil"
	if s.LatestValidHash != nil {
		hash = s.LatestValidHash.String()
	}
	verr := "nil"
	if s.ValidationError != nil {
		verr = *s.ValidationError
	}
	return string(s.Status) + "|" + hash + "|" + verr
}

func (s Status) IsInvalid() bool {
	return s == StatusInvalid || s == StatusInvalidBlockHash
}

// ForkchoiceStateV1 is the head/safe/finalized triple the CL supplies.
type ForkchoiceStateV1 struct {
	HeadBlockHash      Hash `json:"headBlockHash"`
	SafeBlockHash      Hash `json:"safeBlockHash"`
	FinalizedBlockHash Hash `json:"finalizedBlockHash"`
}

// ForkchoiceUpdatedResult is the fcU response envelope.
type ForkchoiceUpdatedResult struct {
	PayloadStatus PayloadStatusV1 `json:"payloadStatus"`
	PayloadID     *hexutil.Bytes  `json:"payloadId"`
}

// GetPayloadResponseV2 is the engine_getPayloadV2 response.
type GetPayloadResponseV2 struct {
	ExecutionPayload *ExecutionPayloadV2 `json:"executionPayload"`
	BlockValue       *uint256.Int        `json:"blockValue"`
}

// GetPayloadResponseV3 is the engine_getPayloadV3 response.
type GetPayloadResponseV3 struct {
	ExecutionPayload      *ExecutionPayloadV3 `json:"executionPayload"`
	BlockValue            *uint256.Int        `json:"blockValue"`
	BlobsBundle           json.RawMessage     `json:"blobsBundle,omitempty"`
	ShouldOverrideBuilder *bool               `json:"shouldOverrideBuilder,omitempty"`
}
