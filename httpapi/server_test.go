package httpapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/elmux/engine/fork"
	"github.com/tos-network/elmux/jsonrpc"
	"github.com/tos-network/elmux/pool"
	"github.com/tos-network/elmux/router"
)

func syncedNode(t *testing.T, ethBlockNumber string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		json.NewDecoder(r.Body).Decode(&req)
		switch req.Method {
		case "eth_syncing":
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":false}`))
		default:
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"` + ethBlockNumber + `"}`))
		}
	}))
}

func newTestServer(t *testing.T, servers ...*httptest.Server) *Server {
	t.Helper()
	p := pool.New()
	for _, s := range servers {
		p.AddNodes(pool.NewNode(s.URL, make([]byte, 32)))
	}
	p.Recheck(context.Background())
	r := router.New(p, fork.Mainnet, 0.6, nil)
	return New(p, r, "", nil)
}

func TestHandleRPCMissingMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	s := newTestServer(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
}

func TestHandleRPCMalformedJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`not json`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(jsonrpc.ZeroID), string(resp.ID))
}

func TestHandleRPCEngineMethodRequiresBearer(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1,"method":"engine_getPayloadV1","params":["0x1"]}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRPCNonEngineForwardsToPrimaryWithMintedBearer(t *testing.T) {
	node := syncedNode(t, "0x10")
	defer node.Close()
	s := newTestServer(t, node)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	var result string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, "0x10", result)
}

func TestHandleRPCNonEnginePoolEmptyIsHTTP500(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
}

func TestHandleRPCEnginePoolEmptyIsHTTP500(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1,"method":"engine_getPayloadV1","params":["0x1"]}`)))
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
}

func TestHandleMetrics(t *testing.T) {
	node := syncedNode(t, "0x1")
	defer node.Close()
	s := newTestServer(t, node)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out metricsPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.AliveNodes, 1)
	require.Equal(t, node.URL, out.PrimaryNode)
}

func TestHandleRecheckReportsElapsedTime(t *testing.T) {
	node := syncedNode(t, "0x1")
	defer node.Close()
	s := newTestServer(t, node)

	req := httptest.NewRequest(http.MethodGet, "/recheck", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		metricsPayload
		RecheckTimeUs int64 `json:"recheck_time"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.GreaterOrEqual(t, out.RecheckTimeUs, int64(0))
}

func TestHandleAddNodesAppendsAndSweeps(t *testing.T) {
	node := syncedNode(t, "0x1")
	defer node.Close()
	s := newTestServer(t)

	secretPath := writeSecretFile(t)
	body, _ := json.Marshal([]addNodeRequest{{URL: node.URL, JWTPath: secretPath}})
	req := httptest.NewRequest(http.MethodPost, "/add_nodes", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out metricsPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Contains(t, out.AliveNodes, node.URL)
}

func TestHandleAddNodesMissingJWTIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal([]addNodeRequest{{URL: "http://localhost:1"}})
	req := httptest.NewRequest(http.MethodPost, "/add_nodes", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func writeSecretFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "jwt-secret")
	require.NoError(t, err)
	defer f.Close()
	secret := make([]byte, 32)
	_, err = f.WriteString(hex.EncodeToString(secret))
	require.NoError(t, err)
	return f.Name()
}
