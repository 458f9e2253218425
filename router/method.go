// Package router implements the engine request router: it classifies
// each inbound method and applies the dispatch strategy its semantics
// require (broadcast, profitability pick, primary-only, or majority
// vote), orchestrating fan-out across the node pool, reduction, and
// block-hash re-verification on the way to a single response.
package router

import "strings"

// Method classifies an inbound JSON-RPC method into a dispatch
// strategy.
type Method int

const (
	MethodOther Method = iota
	MethodGetPayloadV1
	MethodGetPayloadV2
	MethodGetPayloadV3
	MethodNewPayload
	MethodForkchoiceUpdated
	MethodGetClientVersionV1
)

// Classify maps a method name to its dispatch strategy.
func Classify(method string) Method {
	switch method {
	case "engine_getPayloadV1":
		return MethodGetPayloadV1
	case "engine_getPayloadV2":
		return MethodGetPayloadV2
	case "engine_getPayloadV3":
		return MethodGetPayloadV3
	case "engine_newPayloadV1", "engine_newPayloadV2", "engine_newPayloadV3":
		return MethodNewPayload
	case "engine_forkchoiceUpdatedV1", "engine_forkchoiceUpdatedV2", "engine_forkchoiceUpdatedV3":
		return MethodForkchoiceUpdated
	case "engine_getClientVersionV1":
		return MethodGetClientVersionV1
	default:
		return MethodOther
	}
}

// IsEngineMethod reports whether method requires the engine bearer and
// routing path (vs. being forwarded verbatim to the primary).
func IsEngineMethod(method string) bool {
	return strings.HasPrefix(method, "engine_")
}
