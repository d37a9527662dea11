// Package policysync implements the companion process the spec leaves
// external (§9 Open Questions: "the 15-minute quota refill policy is left to
// an external component"). One instance of policysyncd runs per fleet of
// decisioncore hosts; the instances leader-elect over Redis so exactly one
// of them drives the durable quota refill at a time.
package policysync

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Elector is a Redis-backed leader election loop, adapted from the
// control-plane's lease-acquire/renew/backoff pattern and simplified to a
// single Redis key (no separate durable epoch store: the Redis value itself
// carries this node's acquisition count as its epoch; nothing reads the
// epoch back, so it does not fence writes).
type Elector struct {
	client  *redis.Client
	nodeID  string
	lockKey string
	ttl     time.Duration

	onElected func(ctx context.Context)
	onLost    func()

	mu       sync.RWMutex
	isLeader bool
	epoch    int64

	ctx    context.Context
	cancel context.CancelFunc
}

type lockMetadata struct {
	OwnerID   string    `json:"owner_id"`
	Epoch     int64     `json:"epoch"`
	CreatedAt time.Time `json:"created_at"`
}

// NewElector returns an Elector that has not yet started its loop.
func NewElector(client *redis.Client, nodeID string, ttl time.Duration) *Elector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Elector{
		client:  client,
		nodeID:  nodeID,
		lockKey: "decisioncore:policysync:leader",
		ttl:     ttl,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetCallbacks registers the hooks invoked on leadership transitions.
func (e *Elector) SetCallbacks(onElected func(ctx context.Context), onLost func()) {
	e.onElected = onElected
	e.onLost = onLost
}

// Start begins the acquire/renew loop on its own goroutine. Canceling ctx
// and calling Stop are equivalent; either tears down the loop and releases
// the lease if held.
func (e *Elector) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			e.cancel()
		case <-e.ctx.Done():
		}
	}()
	go e.loop(ctx)
}

// Stop ends the loop and releases leadership if held.
func (e *Elector) Stop() {
	e.cancel()
	if e.IsLeader() {
		e.release(context.Background())
	}
}

// IsLeader reports whether this node currently holds the lease.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// pace paces the poll loop: it ticks fast (ttl/3) while things are healthy
// and backs off exponentially, up to a ceiling of 10*ttl, while the Redis
// round trip keeps failing.
type pace struct {
	floor, ceiling, current time.Duration
}

func newPace(ttl time.Duration) *pace {
	floor := ttl / 3
	return &pace{floor: floor, ceiling: 10 * ttl, current: floor}
}

func (p *pace) ok() time.Duration {
	p.current = p.floor
	return p.current
}

func (p *pace) failed() time.Duration {
	p.current *= 2
	if p.current > p.ceiling {
		p.current = p.ceiling
	}
	return p.current
}

func (e *Elector) loop(ctx context.Context) {
	p := newPace(e.ttl)
	missedRenewals := 0
	const renewalsBeforeStepDown = 3

	timer := time.NewTimer(p.current)
	defer timer.Stop()

	for {
		select {
		case <-e.ctx.Done():
			if e.IsLeader() {
				e.release(context.Background())
			}
			return
		case <-timer.C:
			var failed bool
			if e.IsLeader() {
				failed, missedRenewals = e.holdLease(ctx, missedRenewals, renewalsBeforeStepDown)
			} else {
				failed = e.seekLease(ctx)
				if e.IsLeader() {
					missedRenewals = 0
				}
			}

			next := p.ok()
			if failed {
				next = p.failed()
			}
			timer.Reset(next)
		}
	}
}

// holdLease renews the lease the node currently believes it holds. It
// reports failed=true only on a Redis-level error (worth backing off from);
// losing the lease outright (renewed=false with no error) steps down
// immediately without being treated as a transient failure.
func (e *Elector) holdLease(ctx context.Context, missed, limit int) (failed bool, nextMissed int) {
	renewed, err := e.renew(ctx)
	if err != nil {
		missed++
		log.Printf("policysync: lease renewal error (%d/%d): %v", missed, limit, err)
		if missed >= limit {
			e.stepDown()
			missed = 0
		}
		return true, missed
	}
	if !renewed {
		e.stepDown()
	}
	return false, 0
}

// seekLease attempts to acquire the lease when this node isn't holding it.
// A Redis error counts as a failed attempt; losing the race (the key is
// already held) is not an error, just nothing to do this tick.
func (e *Elector) seekLease(ctx context.Context) bool {
	acquired, err := e.acquire(ctx)
	if err != nil {
		return true
	}
	if acquired {
		e.becomeLeader(ctx)
	}
	return false
}

func (e *Elector) acquire(ctx context.Context) (bool, error) {
	e.mu.Lock()
	epoch := e.epoch + 1
	e.mu.Unlock()

	meta := lockMetadata{OwnerID: e.nodeID, Epoch: epoch, CreatedAt: time.Now()}
	raw, err := json.Marshal(meta)
	if err != nil {
		return false, err
	}

	ok, err := e.client.SetNX(ctx, e.lockKey, string(raw), e.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		e.mu.Lock()
		e.epoch = epoch
		e.mu.Unlock()
	}
	return ok, nil
}

// renewScript extends the lease TTL only if it is still owned by nodeID.
const renewScript = `
local v = redis.call("get", KEYS[1])
if not v then
	return 0
end
local meta = cjson.decode(v)
if meta.owner_id ~= ARGV[1] then
	return -1
end
redis.call("pexpire", KEYS[1], ARGV[2])
return 1
`

func (e *Elector) renew(ctx context.Context) (bool, error) {
	res, err := e.client.Eval(ctx, renewScript, []string{e.lockKey}, e.nodeID, e.ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

const releaseScript = `
local v = redis.call("get", KEYS[1])
if not v then
	return 0
end
local meta = cjson.decode(v)
if meta.owner_id ~= ARGV[1] then
	return 0
end
return redis.call("del", KEYS[1])
`

func (e *Elector) release(ctx context.Context) {
	_, err := e.client.Eval(ctx, releaseScript, []string{e.lockKey}, e.nodeID).Result()
	if err != nil {
		log.Printf("policysync: release failed: %v", err)
	}
	e.mu.Lock()
	e.isLeader = false
	e.mu.Unlock()
	if e.onLost != nil {
		e.onLost()
	}
}

func (e *Elector) becomeLeader(ctx context.Context) {
	e.mu.Lock()
	e.isLeader = true
	e.mu.Unlock()
	if e.onElected != nil {
		e.onElected(ctx)
	}
}

func (e *Elector) stepDown() {
	e.mu.Lock()
	e.isLeader = false
	e.mu.Unlock()
	if e.onLost != nil {
		e.onLost()
	}
}
