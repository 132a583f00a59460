package heart

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Config holds the three stacked tick intervals driving a Heart.
type Config struct {
	BeatInterval  time.Duration
	CycleInterval time.Duration
	EpochInterval time.Duration
}

// Callbacks are invoked synchronously from the Heart's single run loop:
// if a callback is still running when the next tick is due, that tick is
// skipped rather than queued.
type Callbacks struct {
	OnBeat  func(ctx context.Context)
	OnCycle func(ctx context.Context, currentCycle int)
	OnEpoch func(ctx context.Context, currentEpoch int, personality string)
}

// Snapshot is a point-in-time read of the Heart's counters, exposed to
// the status API.
type Snapshot struct {
	Personality  string
	CurrentCycle int
	CurrentEpoch int
	StartDate    time.Time
	LastBeat     time.Time
	LastCycle    time.Time
	LastEpoch    time.Time
}

// Heart is the scheduler clock: three stacked timers (beat, cycle,
// epoch) driven off a single loop so that ticks are always processed in
// beat < cycle < epoch order and an overrun is skipped, never queued.
type Heart struct {
	cfg Config
	cb  Callbacks

	mu           sync.Mutex
	currentCycle int
	currentEpoch int
	personality  string
	startDate    time.Time
	lastBeat     time.Time
	lastCycle    time.Time
	lastEpoch    time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Heart. Call Start to begin ticking.
func New(cfg Config, cb Callbacks) *Heart {
	return &Heart{cfg: cfg, cb: cb}
}

// Start resets the counters and personality, then begins ticking in a
// background goroutine. Start may be called again after End to resume.
func (h *Heart) Start(ctx context.Context) {
	h.mu.Lock()
	h.startDate = time.Now()
	h.personality = randomPersonality()
	h.currentCycle = 0
	h.currentEpoch = 0
	h.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.run(runCtx)
}

// End stops all timers and returns the Heart to a quiescent state.
func (h *Heart) End() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

func (h *Heart) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.cfg.BeatInterval)
	defer ticker.Stop()

	now := time.Now()
	nextCycle := now.Add(h.cfg.CycleInterval)
	nextEpoch := now.Add(h.cfg.EpochInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			nextCycle, nextEpoch = h.tick(ctx, now, nextCycle, nextEpoch)
		}
	}
}

// tick fires OnBeat, then OnCycle if the cycle boundary has been
// reached, then OnEpoch if the epoch boundary has been reached --
// guaranteeing the required beat < cycle < epoch ordering on any tick
// where more than one fires simultaneously.
func (h *Heart) tick(ctx context.Context, now, nextCycle, nextEpoch time.Time) (time.Time, time.Time) {
	h.mu.Lock()
	h.lastBeat = now
	h.mu.Unlock()
	if h.cb.OnBeat != nil {
		h.cb.OnBeat(ctx)
	}

	if !now.Before(nextCycle) {
		h.mu.Lock()
		h.currentCycle++
		cycle := h.currentCycle
		h.lastCycle = now
		h.mu.Unlock()
		nextCycle = now.Add(h.cfg.CycleInterval)
		if h.cb.OnCycle != nil {
			h.cb.OnCycle(ctx, cycle)
		}
	}

	if !now.Before(nextEpoch) {
		h.mu.Lock()
		h.currentEpoch++
		epoch := h.currentEpoch
		h.personality = randomPersonality()
		personality := h.personality
		h.lastEpoch = now
		h.mu.Unlock()
		nextEpoch = now.Add(h.cfg.EpochInterval)
		if h.cb.OnEpoch != nil {
			h.cb.OnEpoch(ctx, epoch, personality)
		}
	}

	return nextCycle, nextEpoch
}

// Snapshot returns the current counters.
func (h *Heart) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{
		Personality:  h.personality,
		CurrentCycle: h.currentCycle,
		CurrentEpoch: h.currentEpoch,
		StartDate:    h.startDate,
		LastBeat:     h.lastBeat,
		LastCycle:    h.lastCycle,
		LastEpoch:    h.lastEpoch,
	}
}

// randomPersonality returns a uniformly random identifier, independent
// of the sampler's own randomness source in the peer package.
func randomPersonality() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		logger.Warningf("heart: failed to generate personality: %s", err)
	}
	return hex.EncodeToString(buf)
}
