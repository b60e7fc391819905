package jobclient

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("jobclient: circuit breaker is open")

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// breakerConfig mirrors the knobs a distributed pool's allowed-failure
// tolerance is configured with once at construction (spec §9), rather than
// a cron-job retry policy mutated mid-tick.
type breakerConfig struct {
	FailureThreshold int
	Timeout          time.Duration
}

// breaker is a minimal circuit breaker guarding calls to the distributed
// broker: once FailureThreshold consecutive submit failures occur it
// opens for Timeout, after which a single probe call is allowed through.
type breaker struct {
	mu       sync.Mutex
	cfg      breakerConfig
	state    circuitState
	failures int
	openedAt time.Time
}

func newBreaker(cfg breakerConfig) *breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	return &breaker{cfg: cfg, state: circuitClosed}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitOpen:
		if time.Since(b.openedAt) >= b.cfg.Timeout {
			b.state = circuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = circuitClosed
		return
	}

	b.failures++
	if b.state == circuitHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = circuitOpen
		b.openedAt = time.Now()
	}
}
