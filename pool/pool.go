package pool

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNoPrimary is returned by callers of GetExecutionNode when the pool
// has no alive or syncing node to serve a primary-only method; the
// HTTP surface maps it to a 500.
var ErrNoPrimary = errors.New("pool: no execution node available")

// Pool holds the configured Node set, the three health-partitioned
// membership lists, and the stable primary pointer. Lock order under
// multiple acquisition: nodes, then syncing, then alive, then dead,
// then primary.
type Pool struct {
	nodesMu sync.Mutex
	nodes   []*Node

	syncingMu sync.RWMutex
	syncing   []*Node

	aliveMu sync.RWMutex
	alive   []*Node

	deadMu sync.RWMutex
	dead   []*Node

	primaryMu sync.RWMutex
	primary   *Node
}

// New builds an empty Pool. Call AddNodes to populate it; nodes is
// never empty after a successful config load, but Pool itself doesn't
// enforce that.
func New() *Pool {
	return &Pool{}
}

// AddNodes appends nodes to the master list under the nodes lock.
// It does not run a sweep; callers that need the new nodes classified
// immediately should call Recheck afterward.
func (p *Pool) AddNodes(nodes ...*Node) {
	p.nodesMu.Lock()
	defer p.nodesMu.Unlock()
	p.nodes = append(p.nodes, nodes...)
}

// Nodes returns a snapshot of the master list.
func (p *Pool) Nodes() []*Node {
	p.nodesMu.Lock()
	defer p.nodesMu.Unlock()
	out := make([]*Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// Recheck probes every configured node concurrently, rebuilds the
// three membership lists, re-sorts alive by ascending RTT, and
// recomputes primary. It is invoked by the periodic sweep and
// synchronously by GET /recheck and POST /add_nodes.
func (p *Pool) Recheck(ctx context.Context) {
	nodes := p.Nodes()
	if len(nodes) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(nodes))
	for _, n := range nodes {
		n := n
		go func() {
			defer wg.Done()
			n.CheckStatus(ctx)
		}()
	}
	wg.Wait()

	var newAlive, newSyncing, newDead []*Node
	for _, n := range nodes {
		switch n.Health() {
		case Synced:
			newAlive = append(newAlive, n)
		case OnlineAndSyncing:
			newSyncing = append(newSyncing, n)
		default:
			newDead = append(newDead, n)
		}
	}
	sort.Slice(newAlive, func(i, j int) bool {
		return newAlive[i].LastRTT() < newAlive[j].LastRTT()
	})

	p.syncingMu.Lock()
	p.syncing = newSyncing
	p.syncingMu.Unlock()

	p.aliveMu.Lock()
	p.alive = newAlive
	p.aliveMu.Unlock()

	p.deadMu.Lock()
	p.dead = newDead
	p.deadMu.Unlock()

	p.primaryMu.Lock()
	switch {
	case len(newAlive) > 0:
		p.primary = newAlive[0]
	case len(newSyncing) > 0:
		p.primary = newSyncing[0]
	case len(newDead) > 0:
		p.primary = newDead[0]
	default:
		p.primary = nodes[0]
	}
	p.primaryMu.Unlock()
}

// Alive returns a snapshot of the alive list, ascending by RTT.
func (p *Pool) Alive() []*Node {
	p.aliveMu.RLock()
	defer p.aliveMu.RUnlock()
	out := make([]*Node, len(p.alive))
	copy(out, p.alive)
	return out
}

// Syncing returns a snapshot of the syncing list.
func (p *Pool) Syncing() []*Node {
	p.syncingMu.RLock()
	defer p.syncingMu.RUnlock()
	out := make([]*Node, len(p.syncing))
	copy(out, p.syncing)
	return out
}

// Dead returns a snapshot of the dead list.
func (p *Pool) Dead() []*Node {
	p.deadMu.RLock()
	defer p.deadMu.RUnlock()
	out := make([]*Node, len(p.dead))
	copy(out, p.dead)
	return out
}

// Primary returns the current primary pointer.
func (p *Pool) Primary() *Node {
	p.primaryMu.RLock()
	defer p.primaryMu.RUnlock()
	return p.primary
}

// GetExecutionNode returns the current primary if it's still Synced,
// otherwise promotes the next best candidate: the next alive node that
// isn't the old primary, then the first syncing node, else nil. Takes
// alive then syncing, never both at once.
func (p *Pool) GetExecutionNode() *Node {
	p.primaryMu.RLock()
	primary := p.primary
	p.primaryMu.RUnlock()

	if primary != nil && primary.Health() == Synced {
		return primary
	}

	p.aliveMu.RLock()
	for _, n := range p.alive {
		if n != primary {
			p.aliveMu.RUnlock()
			p.promotePrimary(n)
			return n
		}
	}
	p.aliveMu.RUnlock()

	p.syncingMu.RLock()
	defer p.syncingMu.RUnlock()
	if len(p.syncing) > 0 {
		n := p.syncing[0]
		p.promotePrimary(n)
		return n
	}
	return nil
}

func (p *Pool) promotePrimary(n *Node) {
	p.primaryMu.Lock()
	defer p.primaryMu.Unlock()
	p.primary = n
}

// MakeNodeSyncing demotes n from alive to syncing and marks it
// OnlineAndSyncing. Idempotent if n is already absent from alive.
func (p *Pool) MakeNodeSyncing(n *Node) {
	p.aliveMu.Lock()
	found := false
	kept := p.alive[:0:0]
	for _, a := range p.alive {
		if a == n {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	p.alive = kept
	p.aliveMu.Unlock()

	if !found {
		return
	}

	n.SetHealth(OnlineAndSyncing)

	p.syncingMu.Lock()
	p.syncing = append(p.syncing, n)
	p.syncingMu.Unlock()
}

// Metrics is the snapshot GET /metrics and GET /recheck render.
type Metrics struct {
	ResponseTimes map[string]time.Duration
	AliveNodes    []string
	SyncingNodes  []string
	DeadNodes     []string
	PrimaryNode   string
}

// Snapshot builds a Metrics view of the pool's current state.
func (p *Pool) Snapshot() Metrics {
	alive := p.Alive()
	syncing := p.Syncing()
	dead := p.Dead()
	primary := p.Primary()

	m := Metrics{
		ResponseTimes: make(map[string]time.Duration, len(alive)+len(syncing)+len(dead)),
		AliveNodes:    urls(alive),
		SyncingNodes:  urls(syncing),
		DeadNodes:     urls(dead),
	}
	if primary != nil {
		m.PrimaryNode = primary.URL
	}
	for _, n := range p.Nodes() {
		m.ResponseTimes[n.URL] = n.LastRTT()
	}
	return m
}

func urls(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.URL
	}
	return out
}
