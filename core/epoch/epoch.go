package epoch

import (
	"fmt"
	"sync"
	"time"
)

// Source exposes the current epoch number. Epochs are the only clock visible
// to the market engine: a monotonically increasing counter advanced outside of
// it. Implementations must never return a smaller value than a previous call.
type Source interface {
	Current() uint64
}

// Manual is a source advanced explicitly by the host. It backs deterministic
// tests and deployments where another component drives epoch rollover.
type Manual struct {
	mu    sync.Mutex
	epoch uint64
}

// NewManual returns a manual source starting at the supplied epoch.
func NewManual(start uint64) *Manual {
	return &Manual{epoch: start}
}

// Current returns the epoch most recently set or advanced to.
func (m *Manual) Current() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Advance moves the counter forward by delta epochs.
func (m *Manual) Advance(delta uint64) {
	m.mu.Lock()
	m.epoch += delta
	m.mu.Unlock()
}

// Set moves the counter to the supplied epoch. Attempts to move backwards are
// ignored so the source stays monotonic.
func (m *Manual) Set(epoch uint64) {
	m.mu.Lock()
	if epoch > m.epoch {
		m.epoch = epoch
	}
	m.mu.Unlock()
}

// Interval derives the epoch from elapsed wall-clock time since a genesis
// instant. The standalone daemon uses it in place of a consensus-driven
// counter; the derived value is monotonic as long as the host clock is.
type Interval struct {
	genesis time.Time
	length  time.Duration
	nowFn   func() time.Time
}

// NewInterval creates an interval source. The epoch length must be positive.
func NewInterval(genesis time.Time, length time.Duration) (*Interval, error) {
	if length <= 0 {
		return nil, fmt.Errorf("epoch: interval length must be positive")
	}
	return &Interval{genesis: genesis, length: length, nowFn: time.Now}, nil
}

// Current returns the number of whole intervals elapsed since genesis.
func (i *Interval) Current() uint64 {
	elapsed := i.nowFn().Sub(i.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / i.length)
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (i *Interval) SetNowFunc(now func() time.Time) {
	if now == nil {
		i.nowFn = time.Now
		return
	}
	i.nowFn = now
}
