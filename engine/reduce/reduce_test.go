package reduce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/elmux/engine/types"
)

func hash(b byte) *types.Hash {
	var h types.Hash
	h[31] = b
	return &h
}

func valid(hashByte byte) types.PayloadStatusV1 {
	return types.PayloadStatusV1{Status: types.StatusValid, LatestValidHash: hash(hashByte)}
}

func invalid(hashByte byte) types.PayloadStatusV1 {
	return types.PayloadStatusV1{Status: types.StatusInvalid, LatestValidHash: hash(hashByte)}
}

func TestReduceNoResponses(t *testing.T) {
	r := Reduce(nil, 0.6)
	require.Equal(t, NoResponses, r.Outcome)
}

func TestReduceMajorityTwoOfThree(t *testing.T) {
	r := Reduce([]types.PayloadStatusV1{valid(1), valid(1), valid(2)}, 0.6)
	require.Equal(t, Majority, r.Outcome)
	require.Equal(t, types.StatusValid, r.Response.Status)
	require.Equal(t, byte(1), r.Response.LatestValidHash[31])
}

func TestReduceNoMajorityAllDistinct(t *testing.T) {
	r := Reduce([]types.PayloadStatusV1{valid(1), valid(2), valid(3)}, 0.6)
	require.Equal(t, NoMajority, r.Outcome)
}

func TestReduceModalInvalidWinsOutright(t *testing.T) {
	r := Reduce([]types.PayloadStatusV1{invalid(1), invalid(1), valid(2)}, 0.6)
	require.Equal(t, Majority, r.Outcome)
	require.Equal(t, types.StatusInvalid, r.Response.Status)
}

func TestReduceOneNodeIsInvalid(t *testing.T) {
	r := Reduce([]types.PayloadStatusV1{valid(1), valid(1), invalid(9)}, 0.5)
	require.Equal(t, OneNodeIsInvalid, r.Outcome)
}

func TestReduceSingleResponseAlwaysMajority(t *testing.T) {
	r := Reduce([]types.PayloadStatusV1{valid(1)}, 0.6)
	require.Equal(t, Majority, r.Outcome)
}

func TestReduceFourResponsesTwoSuffice(t *testing.T) {
	r := Reduce([]types.PayloadStatusV1{valid(1), valid(1), valid(2), valid(3)}, 0.6)
	require.Equal(t, Majority, r.Outcome)
	require.Equal(t, byte(1), r.Response.LatestValidHash[31])
}
