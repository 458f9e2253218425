package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultBuildsSuccessResponse(t *testing.T) {
	resp, err := Result(json.RawMessage("1"), map[string]string{"status": "VALID"})
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `{"status":"VALID"}`, string(resp.Result))
}

func TestErrBuildsErrorResponse(t *testing.T) {
	resp := Err(json.RawMessage("1"), CodeInternal, "boom")
	require.Nil(t, resp.Result)
	require.Equal(t, CodeInternal, resp.Error.Code)
	require.Equal(t, "boom", resp.Error.Message)
}

func TestRequestRoundTrip(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":7,"method":"engine_getPayloadV1","params":["0x1"]}`)
	var req Request
	require.NoError(t, json.Unmarshal(raw, &req))
	require.Equal(t, "engine_getPayloadV1", req.Method)
	require.Len(t, req.Params, 1)
}
