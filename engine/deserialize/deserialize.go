// Package deserialize converts a raw engine_newPayloadV{1,2,3} params
// array into a typed request, selecting the payload variant by fork
// where the method name itself doesn't pin the version.
package deserialize

import (
	"encoding/json"
	"fmt"

	"github.com/tos-network/elmux/engine/fork"
	"github.com/tos-network/elmux/engine/types"
	"github.com/tos-network/elmux/internal/hexutil"
)

// NewPayloadRequest is the typed result of decoding an
// engine_newPayload* params array.
type NewPayloadRequest struct {
	Payload               *types.ExecutionPayload
	VersionedHashes       []types.Hash
	ParentBeaconBlockRoot *types.Hash
}

// DeserializeFailure wraps any params-shape error.
type DeserializeFailure struct {
	Method string
	Reason string
}

func (e *DeserializeFailure) Error() string {
	return fmt.Sprintf("deserialize: %s: %s", e.Method, e.Reason)
}

func fail(method, reason string) error {
	return &DeserializeFailure{Method: method, Reason: reason}
}

// NewPayload decodes params for method (one of engine_newPayloadV1,
// engine_newPayloadV2, engine_newPayloadV3) against forks to pick the
// right concrete payload type.
func NewPayload(method string, params []json.RawMessage, forks fork.Config) (*NewPayloadRequest, error) {
	switch method {
	case "engine_newPayloadV3":
		return decodeV3Params(method, params)
	case "engine_newPayloadV1", "engine_newPayloadV2":
		return decodeVersionedByFork(method, params, forks)
	default:
		return nil, fail(method, fmt.Sprintf("unsupported method %q", method))
	}
}

func decodeV3Params(method string, params []json.RawMessage) (*NewPayloadRequest, error) {
	if len(params) != 3 {
		return nil, fail(method, fmt.Sprintf("expected 3-element params array, got %d", len(params)))
	}
	var v3 types.ExecutionPayloadV3
	if err := json.Unmarshal(params[0], &v3); err != nil {
		return nil, fail(method, fmt.Sprintf("decode execution payload: %v", err))
	}
	var hashHexes []string
	if err := json.Unmarshal(params[1], &hashHexes); err != nil {
		return nil, fail(method, fmt.Sprintf("decode versioned hashes: %v", err))
	}
	versionedHashes, err := decodeHashList(hashHexes)
	if err != nil {
		return nil, fail(method, err.Error())
	}
	var rootHex *string
	if err := json.Unmarshal(params[2], &rootHex); err != nil {
		return nil, fail(method, fmt.Sprintf("decode parent beacon block root: %v", err))
	}
	var root *types.Hash
	if rootHex != nil {
		h, err := decodeHash(*rootHex)
		if err != nil {
			return nil, fail(method, err.Error())
		}
		root = &h
	}
	return &NewPayloadRequest{
		Payload:               &types.ExecutionPayload{Version: types.V3, V3: &v3},
		VersionedHashes:       versionedHashes,
		ParentBeaconBlockRoot: root,
	}, nil
}

func decodeVersionedByFork(method string, params []json.RawMessage, forks fork.Config) (*NewPayloadRequest, error) {
	if len(params) != 1 {
		return nil, fail(method, fmt.Sprintf("expected 1-element params array, got %d", len(params)))
	}

	var peek struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(params[0], &peek); err != nil {
		return nil, fail(method, fmt.Sprintf("peek timestamp: %v", err))
	}
	ts, err := hexutil.DecodeUint64(peek.Timestamp)
	if err != nil {
		return nil, fail(method, fmt.Sprintf("decode timestamp: %v", err))
	}
	f, err := forks.ForkAt(ts)
	if err != nil {
		return nil, fail(method, err.Error())
	}

	switch f {
	case fork.Cancun:
		// engine_newPayloadV1/V2 carrying a Cancun timestamp is
		// tolerated: decode as V3 without blob-sidecar fields, which
		// the params array for these methods never carries.
		var v3 types.ExecutionPayloadV3
		if err := json.Unmarshal(params[0], &v3); err != nil {
			return nil, fail(method, fmt.Sprintf("decode execution payload: %v", err))
		}
		return &NewPayloadRequest{Payload: &types.ExecutionPayload{Version: types.V3, V3: &v3}}, nil
	case fork.Shanghai:
		var v2 types.ExecutionPayloadV2
		if err := json.Unmarshal(params[0], &v2); err != nil {
			return nil, fail(method, fmt.Sprintf("decode execution payload: %v", err))
		}
		return &NewPayloadRequest{Payload: &types.ExecutionPayload{Version: types.V2, V2: &v2}}, nil
	default:
		var v1 types.ExecutionPayloadV1
		if err := json.Unmarshal(params[0], &v1); err != nil {
			return nil, fail(method, fmt.Sprintf("decode execution payload: %v", err))
		}
		return &NewPayloadRequest{Payload: &types.ExecutionPayload{Version: types.V1, V1: &v1}}, nil
	}
}

func decodeHashList(hexes []string) ([]types.Hash, error) {
	out := make([]types.Hash, len(hexes))
	for i, h := range hexes {
		v, err := decodeHash(h)
		if err != nil {
			return nil, fmt.Errorf("versioned hash[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func decodeHash(hexStr string) (types.Hash, error) {
	raw, err := hexutil.Decode(hexStr)
	if err != nil {
		return types.Hash{}, err
	}
	if len(raw) != 32 {
		return types.Hash{}, fmt.Errorf("hash must be 32 bytes, got %d", len(raw))
	}
	var h types.Hash
	copy(h[:], raw)
	return h, nil
}
