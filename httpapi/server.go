// Package httpapi implements the HTTP surface: it accepts the single
// inbound POST / request stream from the consensus client, routes
// engine_* calls through the engine router and forwards everything
// else to the current primary, plus the /metrics, /recheck, and
// /add_nodes side-channel routes.
//
// Routing is github.com/julienschmidt/httprouter; CORS is the
// permissive github.com/rs/cors wrapper.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/tos-network/elmux/internal/jwtauth"
	"github.com/tos-network/elmux/internal/xlog"
	"github.com/tos-network/elmux/jsonrpc"
	"github.com/tos-network/elmux/pool"
	"github.com/tos-network/elmux/router"
)

// Server wires the node pool and engine router into the HTTP routes.
type Server struct {
	Pool           *pool.Pool
	Router         *router.Router
	DefaultJWTPath string
	Log            *xlog.Logger

	handler http.Handler
}

// New builds a Server and its route table. Call Handler to get the
// http.Handler to serve (wrapped in permissive CORS).
func New(p *pool.Pool, r *router.Router, defaultJWTPath string, log *xlog.Logger) *Server {
	if log == nil {
		log = xlog.Root()
	}
	s := &Server{Pool: p, Router: r, DefaultJWTPath: defaultJWTPath, Log: log}

	mux := httprouter.New()
	mux.POST("/", s.handleRPC)
	mux.GET("/metrics", s.handleMetrics)
	mux.GET("/recheck", s.handleRecheck)
	mux.POST("/add_nodes", s.handleAddNodes)

	s.handler = cors.AllowAll().Handler(mux)
	return s
}

// Handler returns the CORS-wrapped http.Handler for net/http.Serve.
func (s *Server) Handler() http.Handler { return s.handler }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleRPC implements POST /: one JSON-RPC body per request. Malformed
// JSON, a missing method, or a missing bearer on the engine path are
// HTTP 400. A pool-empty condition (no execution node available for a
// primary-only method) is HTTP 500. Every other downstream failure
// (reducer outcomes, network failures) is absorbed into a 200 JSON-RPC
// body, because the CL speaks JSON-RPC over HTTP and expects 200 for
// RPC-level failures.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, jsonrpc.Err(jsonrpc.ZeroID, jsonrpc.CodeParseError, fmt.Sprintf("read body: %v", err)))
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonrpc.Err(jsonrpc.ZeroID, jsonrpc.CodeParseError, fmt.Sprintf("parse request: %v", err)))
		return
	}
	if req.Method == "" {
		writeJSON(w, http.StatusBadRequest, jsonrpc.Err(idOrZero(req.ID), jsonrpc.CodeInvalidRequest, "missing method"))
		return
	}

	bearer := r.Header.Get("Authorization")

	if router.IsEngineMethod(req.Method) {
		if bearer == "" {
			writeJSON(w, http.StatusBadRequest, jsonrpc.Err(req.ID, jsonrpc.CodeInvalidRequest, "missing bearer for engine method"))
			return
		}
		resp, err := s.Router.Route(r.Context(), bearer, req)
		writeJSON(w, statusFor(err), resp)
		return
	}

	resp, err := s.forwardNonEngine(r.Context(), bearer, req)
	writeJSON(w, statusFor(err), resp)
}

// statusFor maps a pool-empty condition to HTTP 500; every other
// route outcome, including a nil err, is a 200.
func statusFor(err error) int {
	if errors.Is(err, pool.ErrNoPrimary) {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func idOrZero(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return jsonrpc.ZeroID
	}
	return id
}

// forwardNonEngine implements the non-engine branch of POST /: forward
// verbatim to the current primary. If the CL sent no Authorization
// header, a permissive mode mints one from the primary's own secret
// instead of requiring the CL to hold an engine-scoped token for
// ordinary RPC.
func (s *Server) forwardNonEngine(ctx context.Context, bearer string, req jsonrpc.Request) (*jsonrpc.Response, error) {
	n := s.Pool.GetExecutionNode()
	if n == nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, "no execution node available"), pool.ErrNoPrimary
	}

	if bearer == "" {
		minted, err := n.Bearer()
		if err != nil {
			return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, fmt.Sprintf("mint bearer: %v", err)), nil
		}
		bearer = minted
	}

	raw, _ := json.Marshal(req)
	body, _, err := n.DoRequest(ctx, raw, bearer)
	if err != nil {
		s.Log.Warn("non-engine forward failed", "method", req.Method, "node", n.URL, "err", err)
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, fmt.Sprintf("primary node unreachable: %v", err)), nil
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInternal, fmt.Sprintf("decode primary response: %v", err)), nil
	}
	return &resp, nil
}

// metricsPayload is GET /metrics' and GET /recheck's JSON shape.
type metricsPayload struct {
	ResponseTimes map[string]int64 `json:"response_times"`
	AliveNodes    []string         `json:"alive_nodes"`
	SyncingNodes  []string         `json:"syncing_nodes"`
	DeadNodes     []string         `json:"dead_nodes"`
	PrimaryNode   string           `json:"primary_node"`
}

func buildMetrics(m pool.Metrics) metricsPayload {
	times := make(map[string]int64, len(m.ResponseTimes))
	for url, d := range m.ResponseTimes {
		times[url] = d.Microseconds()
	}
	return metricsPayload{
		ResponseTimes: times,
		AliveNodes:    orEmpty(m.AliveNodes),
		SyncingNodes:  orEmpty(m.SyncingNodes),
		DeadNodes:     orEmpty(m.DeadNodes),
		PrimaryNode:   m.PrimaryNode,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// handleMetrics implements GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, buildMetrics(s.Pool.Snapshot()))
}

// handleRecheck implements GET /recheck: forces a synchronous pool
// sweep and returns metrics plus recheck_time in microseconds.
func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start := time.Now()
	s.Pool.Recheck(r.Context())
	elapsed := time.Since(start)

	out := struct {
		metricsPayload
		RecheckTimeUs int64 `json:"recheck_time"`
	}{
		metricsPayload: buildMetrics(s.Pool.Snapshot()),
		RecheckTimeUs:  elapsed.Microseconds(),
	}
	writeJSON(w, http.StatusOK, out)
}

// addNodeRequest is one element of POST /add_nodes' body.
type addNodeRequest struct {
	URL     string `json:"url"`
	JWTPath string `json:"jwt_path,omitempty"`
}

// handleAddNodes implements POST /add_nodes: append new nodes and run
// an immediate synchronous sweep.
func (s *Server) handleAddNodes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var reqs []addNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonrpc.Err(jsonrpc.ZeroID, jsonrpc.CodeParseError, fmt.Sprintf("parse body: %v", err)))
		return
	}

	var added []*pool.Node
	for _, nr := range reqs {
		path := nr.JWTPath
		if path == "" {
			path = s.DefaultJWTPath
		}
		if path == "" {
			writeJSON(w, http.StatusBadRequest, jsonrpc.Err(jsonrpc.ZeroID, jsonrpc.CodeInvalidRequest,
				fmt.Sprintf("node %q has no jwt_path and no default --jwt-secret", nr.URL)))
			return
		}
		secret, err := jwtauth.LoadSecretFile(path)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, jsonrpc.Err(jsonrpc.ZeroID, jsonrpc.CodeInvalidRequest, err.Error()))
			return
		}
		added = append(added, pool.NewNode(strings.TrimSpace(nr.URL), secret))
	}

	s.Pool.AddNodes(added...)
	s.Pool.Recheck(r.Context())
	s.Log.Info("add_nodes", "count", len(added))
	writeJSON(w, http.StatusOK, buildMetrics(s.Pool.Snapshot()))
}
