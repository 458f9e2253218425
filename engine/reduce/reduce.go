// Package reduce implements the fcU/newPayload majority reducer: it
// counts identical PayloadStatusV1 triples across a response set and
// applies the INVALID short-circuit safety rule.
package reduce

import (
	"github.com/tos-network/elmux/engine/types"
)

// Outcome classifies why the reducer did or didn't produce a result.
type Outcome int

const (
	// Majority means Result holds the winning modal response.
	Majority Outcome = iota
	// NoResponses means the input set was empty.
	NoResponses
	// NoMajority means no response met the configured threshold.
	NoMajority
	// OneNodeIsInvalid means the modal response was not INVALID*, but
	// at least one node in the set reported INVALID or
	// INVALID_BLOCK_HASH, so safety cannot be proven.
	OneNodeIsInvalid
)

func (o Outcome) String() string {
	switch o {
	case Majority:
		return "majority"
	case NoResponses:
		return "no_responses"
	case NoMajority:
		return "no_majority"
	case OneNodeIsInvalid:
		return "one_node_is_invalid"
	default:
		return "unknown"
	}
}

// Result is the outcome of Reduce plus, when Outcome is Majority or the
// modal response is itself INVALID*, the winning response.
type Result struct {
	Outcome  Outcome
	Response types.PayloadStatusV1
}

// Reduce picks the modal response of the set under threshold t in
// [0,1].
//
// Step 1 — empty input is NoResponses.
// Step 2 — the modal (most frequent) response must meet count >=
// floor(len(responses) * t) and be the unique maximum, else NoMajority;
// a tie between two or more distinct responses for the top count has no
// well-defined modal element regardless of the threshold.
// Step 3 — a modal INVALID/INVALID_BLOCK_HASH response wins outright:
// the majority itself says the block is bad, so there is nothing to
// protect against.
// Step 4 — otherwise, any lone INVALID/INVALID_BLOCK_HASH response
// anywhere in the set forces OneNodeIsInvalid: the router cannot prove
// the block is safe, so it must stall the CL with SYNCING.
// Step 5 — the modal response wins.
func Reduce(responses []types.PayloadStatusV1, t float64) Result {
	if len(responses) == 0 {
		return Result{Outcome: NoResponses}
	}

	counts := make(map[string]int, len(responses))
	order := make([]string, 0, len(responses))
	values := make(map[string]types.PayloadStatusV1, len(responses))
	for _, r := range responses {
		k := r.Key()
		if _, seen := counts[k]; !seen {
			order = append(order, k)
			values[k] = r
		}
		counts[k]++
	}

	var modalKey string
	var modalCount, tiedAtMax int
	for _, k := range order {
		switch {
		case counts[k] > modalCount:
			modalKey = k
			modalCount = counts[k]
			tiedAtMax = 1
		case counts[k] == modalCount:
			tiedAtMax++
		}
	}
	modal := values[modalKey]

	threshold := floorThreshold(len(responses), t)
	if modalCount < threshold || tiedAtMax > 1 {
		return Result{Outcome: NoMajority}
	}

	if modal.Status.IsInvalid() {
		return Result{Outcome: Majority, Response: modal}
	}

	for _, r := range responses {
		if r.Status.IsInvalid() {
			return Result{Outcome: OneNodeIsInvalid}
		}
	}

	return Result{Outcome: Majority, Response: modal}
}

// floorThreshold returns floor(n * t). With n=1 this is 0 for any
// t < 1, so a single response always clears it: the correct degenerate
// behavior for a 1-node pool.
func floorThreshold(n int, t float64) int {
	return int(float64(n) * t)
}
