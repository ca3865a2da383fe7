package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned when a vendor is skipped because its breaker is open.
var ErrBreakerOpen = eris.New("resilience: circuit breaker open")

// BreakerState is the state of one vendor's breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerConfig controls when a vendor is taken out of rotation.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// Cooldown is how long an open breaker rejects calls before allowing a probe.
	Cooldown time.Duration
}

// Breaker tracks consecutive failures of a single vendor.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	now      func() time.Time
}

func newBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &Breaker{name: name, cfg: cfg, state: BreakerClosed, now: time.Now}
}

// Allow reports whether a call may proceed. An open breaker whose cooldown
// has elapsed lets one probe through in the half-open state.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrBreakerOpen
		}
		b.setState(BreakerHalfOpen)
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of a call back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state != BreakerClosed {
			b.setState(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.setState(BreakerOpen)
		}
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(to BreakerState) {
	zap.L().Info("resilience: breaker state change",
		zap.String("vendor", b.name),
		zap.String("from", string(b.state)),
		zap.String("to", string(to)),
		zap.Int("failures", b.failures),
	)
	b.state = to
}

// Breakers holds one Breaker per vendor name.
type Breakers struct {
	cfg BreakerConfig

	mu   sync.Mutex
	byID map[string]*Breaker
}

// NewBreakers creates an empty per-vendor breaker set.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, byID: make(map[string]*Breaker)}
}

// For returns the breaker of vendor, creating it on first use.
func (s *Breakers) For(vendor string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[vendor]
	if !ok {
		b = newBreaker(vendor, s.cfg)
		s.byID[vendor] = b
	}
	return b
}

// Snapshot returns the state of every breaker created so far.
func (s *Breakers) Snapshot() map[string]BreakerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]BreakerState, len(s.byID))
	for name, b := range s.byID {
		out[name] = b.State()
	}
	return out
}
