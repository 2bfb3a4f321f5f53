package lamp

import (
	"sync"
	"time"
)

// Supervisor is the hardware watchdog: unless Rearm is called within
// timeout, onExpire runs. It keeps counting after an expiry, as the
// hardware would after a reset.
type Supervisor struct {
	mu       sync.Mutex
	timer    *time.Timer
	timeout  time.Duration
	onExpire func()
	stopped  bool
	expiries int
}

// NewSupervisor starts a watchdog that calls onExpire on every missed re-arm.
func NewSupervisor(timeout time.Duration, onExpire func()) *Supervisor {
	s := &Supervisor{timeout: timeout, onExpire: onExpire}
	s.timer = time.AfterFunc(timeout, s.expire)
	return s
}

func (s *Supervisor) expire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.expiries++
	s.timer.Reset(s.timeout)
	s.mu.Unlock()

	s.onExpire()
}

// Rearm restarts the countdown.
func (s *Supervisor) Rearm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.timer.Reset(s.timeout)
}

// Stop disables the watchdog for good.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.timer.Stop()
}

// Expiries returns how many times the watchdog has fired.
func (s *Supervisor) Expiries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiries
}
