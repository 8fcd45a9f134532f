package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError reports circuit-open status with a concrete retry delay.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	retryAfter := max(e.RetryAfter, 0)
	if e.Name == "" {
		return fmt.Sprintf("%v: retry in %s", ErrCircuitOpen, retryAfter)
	}
	return fmt.Sprintf("%v for %s: retry in %s", ErrCircuitOpen, e.Name, retryAfter)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

type BreakerConfig struct {
	Name              string
	FailureThreshold  int
	SuccessThreshold  int
	OpenTimeout       time.Duration
	HalfOpenMaxFlight int
	// OnStateChange is called outside the breaker lock.
	OnStateChange func(name string, from, to BreakerState)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 10 * time.Second
	}
	if c.HalfOpenMaxFlight <= 0 {
		c.HalfOpenMaxFlight = 1
	}
	return c
}

// Breaker guards calls to one remote peer.
type Breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig

	state     BreakerState
	failures  int
	successes int
	openUntil time.Time
	inFlight  int
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{
		cfg:   cfg.withDefaults(),
		state: BreakerClosed,
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked(time.Now())
	return b.state
}

// Execute runs fn unless the breaker is open. Caller cancellation does not count as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		b.record(b.releaseLocked)
	case err != nil:
		b.record(b.failLocked)
	default:
		b.record(b.succeedLocked)
	}
	return err
}

func (b *Breaker) admit() error {
	var err error
	b.record(func() {
		now := time.Now()
		b.refreshLocked(now)
		switch b.state {
		case BreakerOpen:
			err = b.openErrLocked(now)
		case BreakerHalfOpen:
			if b.inFlight >= b.cfg.HalfOpenMaxFlight {
				err = b.openErrLocked(now)
				return
			}
			b.inFlight++
		}
	})
	return err
}

// record runs a state mutation under the lock and reports any state change afterwards.
func (b *Breaker) record(mutate func()) {
	b.mu.Lock()
	from := b.state
	mutate()
	to := b.state
	b.mu.Unlock()

	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

func (b *Breaker) succeedLocked() {
	if b.state != BreakerHalfOpen {
		b.failures = 0
		return
	}
	b.releaseLocked()
	b.successes++
	if b.successes >= b.cfg.SuccessThreshold {
		b.resetLocked(BreakerClosed)
	}
}

func (b *Breaker) failLocked() {
	if b.state == BreakerHalfOpen {
		b.tripLocked()
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.tripLocked()
	}
}

func (b *Breaker) releaseLocked() {
	if b.state == BreakerHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
}

func (b *Breaker) refreshLocked(now time.Time) {
	if b.state == BreakerOpen && !now.Before(b.openUntil) {
		b.resetLocked(BreakerHalfOpen)
	}
}

func (b *Breaker) tripLocked() {
	b.resetLocked(BreakerOpen)
	b.openUntil = time.Now().Add(b.cfg.OpenTimeout)
}

func (b *Breaker) resetLocked(state BreakerState) {
	b.state = state
	b.failures = 0
	b.successes = 0
	b.inFlight = 0
}

func (b *Breaker) openErrLocked(now time.Time) error {
	return &CircuitOpenError{
		Name:       b.cfg.Name,
		RetryAfter: max(b.openUntil.Sub(now), 0),
	}
}

// BreakerSet lazily creates one breaker per peer address.
type BreakerSet struct {
	mu       sync.RWMutex
	template BreakerConfig
	breakers map[string]*Breaker
}

func NewBreakerSet(template BreakerConfig) *BreakerSet {
	return &BreakerSet{
		template: template,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (s *BreakerSet) Get(name string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[name]; ok {
		return b
	}
	cfg := s.template
	cfg.Name = name
	b = NewBreaker(cfg)
	s.breakers[name] = b
	return b
}

// Forget drops the breaker for name.
func (s *BreakerSet) Forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakers, name)
}
