package router

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/tos-network/elmux/engine/blockhash"
	"github.com/tos-network/elmux/engine/deserialize"
	"github.com/tos-network/elmux/engine/fork"
	"github.com/tos-network/elmux/engine/reduce"
	"github.com/tos-network/elmux/engine/types"
	"github.com/tos-network/elmux/internal/hexutil"
	"github.com/tos-network/elmux/internal/xlog"
	"github.com/tos-network/elmux/jsonrpc"
	"github.com/tos-network/elmux/pool"
)

// Router dispatches inbound engine_* calls, fanning out to the node
// pool and reducing the responses to one authoritative answer.
type Router struct {
	Pool      *pool.Pool
	Forks     fork.Config
	Threshold float64
	Log       *xlog.Logger
}

// New builds a Router over p, using forks to resolve newPayload
// variants and threshold for the majority reducer.
func New(p *pool.Pool, forks fork.Config, threshold float64, log *xlog.Logger) *Router {
	if log == nil {
		log = xlog.Root()
	}
	return &Router{Pool: p, Forks: forks, Threshold: threshold, Log: log}
}

// Route dispatches req and always returns a well-formed JSON-RPC
// response. Most downstream failures (reducer outcomes, transport
// failures) are absorbed into SYNCING/error results here; the one
// exception is pool.ErrNoPrimary, returned alongside the error
// response so the HTTP surface can raise it as a true HTTP 500.
func (r *Router) Route(ctx context.Context, bearer string, req jsonrpc.Request) (*jsonrpc.Response, error) {
	// A dropped inbound connection cancels the inbound task only:
	// in-flight outbound calls run to completion so syncing nodes keep
	// making progress, and their results are discarded on return.
	ctx = context.WithoutCancel(ctx)
	switch Classify(req.Method) {
	case MethodGetPayloadV1:
		return r.routeGetPayloadPrimary(ctx, bearer, req)
	case MethodGetPayloadV2, MethodGetPayloadV3:
		return r.routeGetPayloadBroadcast(ctx, bearer, req)
	case MethodNewPayload:
		return r.routeNewPayload(ctx, bearer, req)
	case MethodForkchoiceUpdated:
		return r.routeForkchoiceUpdated(ctx, bearer, req)
	case MethodGetClientVersionV1:
		return r.routeBroadcastVerbatim(ctx, bearer, req)
	default:
		return r.routeOther(ctx, bearer, req)
	}
}

// nodeResult is one node's reply to a broadcast or primary call.
type nodeResult struct {
	node *pool.Node
	resp *jsonrpc.Response
	body []byte
	err  error
}

func callNode(ctx context.Context, n *pool.Node, body []byte, bearer string, noTimeout bool) nodeResult {
	var raw []byte
	var err error
	if noTimeout {
		raw, _, err = n.DoRequestNoTimeout(ctx, body, bearer)
	} else {
		raw, _, err = n.DoRequest(ctx, body, bearer)
	}
	if err != nil {
		return nodeResult{node: n, err: err}
	}
	var resp jsonrpc.Response
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil {
		return nodeResult{node: n, body: raw, err: jsonErr}
	}
	return nodeResult{node: n, resp: &resp, body: raw}
}

func broadcast(ctx context.Context, nodes []*pool.Node, body []byte, bearer string, noTimeout bool) []nodeResult {
	out := make([]nodeResult, len(nodes))
	done := make(chan struct{}, len(nodes))
	for i, n := range nodes {
		i, n := i, n
		go func() {
			out[i] = callNode(ctx, n, body, bearer, noTimeout)
			done <- struct{}{}
		}()
	}
	for range nodes {
		<-done
	}
	return out
}

// replayAsync fires body at nodes with no timeout, discarding results;
// used for other-method replay and newPayload*/fcU syncing backfill,
// both fire-and-forget.
func (r *Router) replayAsync(nodes []*pool.Node, body []byte, bearer string) {
	for _, n := range nodes {
		n := n
		go func() {
			ctx := context.Background()
			n.DoRequestNoTimeout(ctx, body, bearer)
		}()
	}
}

func encodeRequest(req jsonrpc.Request) []byte {
	raw, _ := json.Marshal(req)
	return raw
}

// isTransportFailure reports whether err reflects a connect/timeout
// request-class failure (vs. a decode failure of an otherwise-reached
// node, which left a body behind). Only the former demotes a primary.
func isTransportFailure(nr nodeResult) bool {
	return nr.err != nil && nr.body == nil
}

// routeGetPayloadPrimary implements engine_getPayloadV1: primary only,
// no timeout; a transport failure demotes the node to syncing and
// returns a JSON-RPC error.
func (r *Router) routeGetPayloadPrimary(ctx context.Context, bearer string, req jsonrpc.Request) (*jsonrpc.Response, error) {
	n := r.Pool.GetExecutionNode()
	if n == nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, "no execution node available"), pool.ErrNoPrimary
	}
	res := callNode(ctx, n, encodeRequest(req), bearer, true)
	if isTransportFailure(res) {
		r.Pool.MakeNodeSyncing(n)
		r.Log.Warn("engine_getPayloadV1 transport failure, demoting node", "node", n.URL, "err", res.err)
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, fmt.Sprintf("primary node unreachable: %v", res.err)), nil
	}
	if res.resp == nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, fmt.Sprintf("decode primary response: %v", res.err)), nil
	}
	if res.resp.Error != nil {
		return jsonrpc.Err(req.ID, res.resp.Error.Code, res.resp.Error.Message), nil
	}
	return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: res.resp.Result}, nil
}

// routeGetPayloadBroadcast implements engine_getPayloadV2/V3: broadcast
// to all alive, decode each GetPayloadResponse, pick the maximum
// block_value.
func (r *Router) routeGetPayloadBroadcast(ctx context.Context, bearer string, req jsonrpc.Request) (*jsonrpc.Response, error) {
	alive := r.Pool.Alive()
	results := broadcast(ctx, alive, encodeRequest(req), bearer, true)

	v3 := Classify(req.Method) == MethodGetPayloadV3
	var best json.RawMessage
	var bestValue *big.Int
	for _, res := range results {
		if res.err != nil || res.resp == nil || res.resp.Error != nil {
			continue
		}
		value, ok := extractBlockValue(res.resp.Result, v3)
		if !ok {
			continue
		}
		if bestValue == nil || value.Cmp(bestValue) > 0 {
			bestValue = value
			best = res.resp.Result
		}
	}
	if best == nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, "no getPayload responses received"), nil
	}
	return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: best}, nil
}

func extractBlockValue(result json.RawMessage, v3 bool) (*big.Int, bool) {
	if v3 {
		var out types.GetPayloadResponseV3
		if err := json.Unmarshal(result, &out); err != nil || out.BlockValue == nil {
			return nil, false
		}
		return out.BlockValue.ToBig(), true
	}
	var out types.GetPayloadResponseV2
	if err := json.Unmarshal(result, &out); err != nil || out.BlockValue == nil {
		return nil, false
	}
	return out.BlockValue.ToBig(), true
}

// routeNewPayload implements engine_newPayloadV1/V2/V3: broadcast to
// all alive, reduce the PayloadStatusV1 set, and on reducer failure
// fabricate a SYNCING reply after re-verifying the block hash.
func (r *Router) routeNewPayload(ctx context.Context, bearer string, req jsonrpc.Request) (*jsonrpc.Response, error) {
	alive := r.Pool.Alive()
	results := broadcast(ctx, alive, encodeRequest(req), bearer, true)

	statuses := make([]types.PayloadStatusV1, 0, len(results))
	for _, res := range results {
		if res.err != nil || res.resp == nil || res.resp.Error != nil {
			continue
		}
		var st types.PayloadStatusV1
		if err := json.Unmarshal(res.resp.Result, &st); err == nil {
			statuses = append(statuses, st)
		}
	}

	outcome := reduce.Reduce(statuses, r.Threshold)
	if outcome.Outcome == reduce.Majority {
		r.Log.Info("newPayload reduced", "method", req.Method, "status", outcome.Response.Status)
		r.backfillSyncing(req, bearer)
		return mustResult(req.ID, outcome.Response), nil
	}

	r.Log.Warn("newPayload did not reach majority", "method", req.Method, "outcome", outcome.Outcome)
	dreq, err := deserialize.NewPayload(req.Method, req.Params, r.Forks)
	if err != nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, fmt.Sprintf("deserialize payload: %v", err)), nil
	}
	if verr := blockhash.Verify(dreq.Payload, dreq.ParentBeaconBlockRoot); verr != nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, verr.Error()), nil
	}
	return mustResult(req.ID, types.PayloadStatusV1{Status: types.StatusSyncing}), nil
}

// routeForkchoiceUpdated implements engine_forkchoiceUpdatedV1/V2/V3:
// broadcast to all alive, reduce the payloadStatus half, preserve the
// first non-null payloadId.
func (r *Router) routeForkchoiceUpdated(ctx context.Context, bearer string, req jsonrpc.Request) (*jsonrpc.Response, error) {
	alive := r.Pool.Alive()
	results := broadcast(ctx, alive, encodeRequest(req), bearer, true)

	statuses := make([]types.PayloadStatusV1, 0, len(results))
	var payloadID *hexutil.Bytes
	for _, res := range results {
		if res.err != nil || res.resp == nil || res.resp.Error != nil {
			continue
		}
		var out types.ForkchoiceUpdatedResult
		if err := json.Unmarshal(res.resp.Result, &out); err != nil {
			continue
		}
		statuses = append(statuses, out.PayloadStatus)
		if payloadID == nil && out.PayloadID != nil {
			payloadID = out.PayloadID
		}
	}

	outcome := reduce.Reduce(statuses, r.Threshold)
	if outcome.Outcome == reduce.Majority {
		r.backfillSyncing(req, bearer)
		return mustResult(req.ID, buildFcUResult(outcome.Response, payloadID)), nil
	}

	r.Log.Warn("forkchoiceUpdated did not reach majority", "method", req.Method, "outcome", outcome.Outcome)
	return mustResult(req.ID, buildFcUResult(types.PayloadStatusV1{Status: types.StatusSyncing}, nil)), nil
}

func buildFcUResult(status types.PayloadStatusV1, payloadID *hexutil.Bytes) types.ForkchoiceUpdatedResult {
	return types.ForkchoiceUpdatedResult{PayloadStatus: status, PayloadID: payloadID}
}

// backfillSyncing asynchronously forwards req to every syncing node
// (no timeout, best effort) after a successful reduction, so those
// nodes keep making progress.
func (r *Router) backfillSyncing(req jsonrpc.Request, bearer string) {
	syncing := r.Pool.Syncing()
	if len(syncing) == 0 {
		return
	}
	r.replayAsync(syncing, encodeRequest(req), bearer)
}

// routeBroadcastVerbatim implements engine_getClientVersionV1:
// broadcast and return every response's result verbatim as an array.
func (r *Router) routeBroadcastVerbatim(ctx context.Context, bearer string, req jsonrpc.Request) (*jsonrpc.Response, error) {
	alive := r.Pool.Alive()
	results := broadcast(ctx, alive, encodeRequest(req), bearer, true)

	all := make([]json.RawMessage, 0, len(results))
	for _, res := range results {
		if res.err != nil || res.resp == nil || res.resp.Error != nil {
			continue
		}
		all = append(all, res.resp.Result)
	}
	return mustResult(req.ID, all), nil
}

// routeOther implements the catch-all engine_* bucket: primary-only,
// no timeout, with an asynchronous best-effort replay to the rest of
// the alive set.
func (r *Router) routeOther(ctx context.Context, bearer string, req jsonrpc.Request) (*jsonrpc.Response, error) {
	n := r.Pool.GetExecutionNode()
	if n == nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, "no execution node available"), pool.ErrNoPrimary
	}
	res := callNode(ctx, n, encodeRequest(req), bearer, true)

	alive := r.Pool.Alive()
	others := make([]*pool.Node, 0, len(alive))
	for _, a := range alive {
		if a != n {
			others = append(others, a)
		}
	}
	r.replayAsync(others, encodeRequest(req), bearer)

	if isTransportFailure(res) {
		r.Pool.MakeNodeSyncing(n)
		r.Log.Warn("engine method transport failure, demoting node", "method", req.Method, "node", n.URL, "err", res.err)
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, fmt.Sprintf("primary node unreachable: %v", res.err)), nil
	}
	if res.resp == nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, fmt.Sprintf("decode primary response: %v", res.err)), nil
	}
	if res.resp.Error != nil {
		return jsonrpc.Err(req.ID, res.resp.Error.Code, res.resp.Error.Message), nil
	}
	return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: res.resp.Result}, nil
}

func mustResult(id json.RawMessage, v interface{}) *jsonrpc.Response {
	resp, err := jsonrpc.Result(id, v)
	if err != nil {
		return jsonrpc.Err(id, jsonrpc.CodeInternal, fmt.Sprintf("marshal result: %v", err))
	}
	return resp
}
