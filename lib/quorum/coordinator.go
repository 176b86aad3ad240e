package quorum

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/quorumkv/qkv/lib/store"
	"github.com/quorumkv/qkv/rpc/common"
	"go.uber.org/multierr"
)

var Logger = common.GetLogger("quorum")

// Errors returned by Coordinator.Write. Individual attempt failures are never
// surfaced through these; they are absorbed into non-confirmations.
var (
	ErrNoFollowers      = errors.New(common.ReasonNoFollowers)
	ErrQuorumNotReached = errors.New(common.ReasonQuorumNotReached)
)

// --------------------------------------------------------------------------
// Replicator Interface
// --------------------------------------------------------------------------

// Replicator pushes a single key-value pair to one follower. A nil error
// means the follower acknowledged the write.
type Replicator interface {
	Replicate(ctx context.Context, addr, key, value string) error
}

// ReplicatorFunc adapts a plain function to the Replicator interface.
type ReplicatorFunc func(ctx context.Context, addr, key, value string) error

func (f ReplicatorFunc) Replicate(ctx context.Context, addr, key, value string) error {
	return f(ctx, addr, key, value)
}

// --------------------------------------------------------------------------
// Attempt Outcomes
// --------------------------------------------------------------------------

// Outcome classifies how a single replication attempt ended.
type Outcome uint8

const (
	OutcomeConfirmed Outcome = iota
	OutcomeFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// attemptResult is the ephemeral record of one outbound push to one follower.
// It exists only for the duration of a single write's fan-out.
type attemptResult struct {
	addr    string
	outcome Outcome
	err     error
}

// FollowerStats counts attempt outcomes per follower across the lifetime of
// the process. Detached attempts report into it after the write returned.
type FollowerStats struct {
	Confirmed atomic.Uint64
	Failed    atomic.Uint64
	TimedOut  atomic.Uint64
}

// --------------------------------------------------------------------------
// Coordinator
// --------------------------------------------------------------------------

// Config carries the static fan-out parameters of a Coordinator.
type Config struct {
	// Followers is the ordered list of follower addresses (host:port).
	Followers []string
	// MinDelay and MaxDelay bound the simulated network delay sampled
	// uniformly before each replication call is sent.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Timeout bounds each replication network call. The simulated delay is
	// a separate stage and does not count against it.
	Timeout time.Duration
}

// Result is the terminal outcome of one quorum write.
type Result struct {
	Confirmed int
	Required  int
}

// Coordinator orchestrates leader writes: local commit first, then a
// concurrent fan-out over all followers, racing their responses against the
// configured quorum.
type Coordinator struct {
	store      store.Store
	cell       *Cell
	replicator Replicator
	cfg        Config
	stats      *xsync.MapOf[string, *FollowerStats]

	writeDuration *metrics.Histogram
	writesOK      *metrics.Counter
	writesFailed  *metrics.Counter
}

// NewCoordinator creates a quorum write coordinator. The store is the
// leader's own local store, the cell supplies the quorum at the start of
// each write, and the replicator performs the actual follower pushes.
func NewCoordinator(st store.Store, cell *Cell, replicator Replicator, cfg Config) *Coordinator {
	return &Coordinator{
		store:      st,
		cell:       cell,
		replicator: replicator,
		cfg:        cfg,
		stats:      xsync.NewMapOf[string, *FollowerStats](),

		writeDuration: metrics.GetOrCreateHistogram("qkv_write_duration_seconds"),
		writesOK:      metrics.GetOrCreateCounter(`qkv_writes_total{outcome="ok"}`),
		writesFailed:  metrics.GetOrCreateCounter(`qkv_writes_total{outcome="failed"}`),
	}
}

// Followers returns the configured follower addresses.
func (c *Coordinator) Followers() []string {
	return c.cfg.Followers
}

// Stats returns the per-follower attempt counters.
func (c *Coordinator) Stats(addr string) *FollowerStats {
	return c.statsFor(addr)
}

// Write performs one quorum write.
//
// The local store is mutated unconditionally before any replication happens,
// and is never rolled back: a write that fails to reach quorum still leaves
// the leader's copy updated. The quorum is read once at the start of the
// write, so a concurrent reconfiguration only affects later writes.
//
// Returns ErrNoFollowers when a positive quorum can never be satisfied
// because no followers are configured, and ErrQuorumNotReached when the
// fan-out completed short of quorum. In both cases the Result carries the
// actual confirmation count.
func (c *Coordinator) Write(ctx context.Context, key, value string) (Result, error) {
	start := time.Now()
	defer c.writeDuration.UpdateDuration(start)

	opID := uuid.NewString()
	required := c.cell.Get()

	// Local commit precedes the quorum decision.
	c.store.Set(key, value)

	if len(c.cfg.Followers) == 0 {
		if required <= 0 {
			c.writesOK.Inc()
			return Result{Confirmed: 0, Required: required}, nil
		}
		c.writesFailed.Inc()
		Logger.Warningf("write %s: quorum %d configured but no followers exist", opID, required)
		return Result{Confirmed: 0, Required: required}, ErrNoFollowers
	}

	// Fan out one attempt per follower. Attempt contexts are decoupled from
	// the caller's context so an early quorum return detaches the remaining
	// attempts instead of cancelling them.
	detached := context.WithoutCancel(ctx)
	results := make(chan attemptResult, len(c.cfg.Followers))
	for _, addr := range c.cfg.Followers {
		go c.attempt(detached, opID, addr, key, value, results)
	}

	confirmed := 0
	pending := len(c.cfg.Followers)
	var attemptErrs error

	// Count confirmations in completion order, not dispatch order. A quorum
	// of zero is met before the first attempt even completes.
	for confirmed < required && pending > 0 {
		res := <-results
		pending--
		if res.outcome == OutcomeConfirmed {
			confirmed++
		} else {
			attemptErrs = multierr.Append(attemptErrs, fmt.Errorf("%s: %w", res.addr, res.err))
		}
	}

	if confirmed >= required {
		if pending > 0 {
			go c.drain(opID, results, pending)
		}
		c.writesOK.Inc()
		Logger.Debugf("write %s: quorum met with %d/%d confirmations (%d attempts detached)", opID, confirmed, required, pending)
		return Result{Confirmed: confirmed, Required: required}, nil
	}

	c.writesFailed.Inc()
	Logger.Warningf("write %s: quorum not reached (%d/%d): %v", opID, confirmed, required, attemptErrs)
	return Result{Confirmed: confirmed, Required: required}, ErrQuorumNotReached
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// attempt performs one replication attempt: unconditional simulated delay,
// then the network call bounded by its own timeout. Errors never escape;
// they are classified into an outcome and reported on the results channel.
// The channel is buffered to the fan-out width, so a detached attempt can
// always deliver its result without a receiver.
func (c *Coordinator) attempt(ctx context.Context, opID, addr, key, value string, results chan<- attemptResult) {
	if delay := c.sampleDelay(); delay > 0 {
		time.Sleep(delay)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	err := c.replicator.Replicate(callCtx, addr, key, value)

	stats := c.statsFor(addr)
	var outcome Outcome
	switch {
	case err == nil:
		outcome = OutcomeConfirmed
		stats.Confirmed.Add(1)
	case errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeTimedOut
		stats.TimedOut.Add(1)
	default:
		outcome = OutcomeFailed
		stats.Failed.Add(1)
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`qkv_replication_attempts_total{outcome=%q}`, outcome)).Inc()

	if err != nil {
		Logger.Debugf("write %s: replication to %s %s: %v", opID, addr, outcome, err)
	}

	results <- attemptResult{addr: addr, outcome: outcome, err: err}
}

// drain consumes the results of detached attempts after the write returned.
// Outcomes were already recorded by attempt; this only keeps a debug trace.
func (c *Coordinator) drain(opID string, results <-chan attemptResult, pending int) {
	for i := 0; i < pending; i++ {
		res := <-results
		Logger.Debugf("write %s: detached attempt to %s finished (%s)", opID, res.addr, res.outcome)
	}
}

// sampleDelay draws the simulated network delay uniformly from
// [MinDelay, MaxDelay].
func (c *Coordinator) sampleDelay() time.Duration {
	min, max := c.cfg.MinDelay, c.cfg.MaxDelay
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func (c *Coordinator) statsFor(addr string) *FollowerStats {
	stats, _ := c.stats.LoadOrCompute(addr, func() *FollowerStats {
		return &FollowerStats{}
	})
	return stats
}
