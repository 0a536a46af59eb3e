package mission

import "sync"

// AbortReason says why a mission attempt was cut short.
type AbortReason int

const (
	AbortNone AbortReason = iota
	AbortAuthorityLost
	AbortBatteryCritical
	AbortUserCancelled
)

func (r AbortReason) String() string {
	switch r {
	case AbortAuthorityLost:
		return "authority lost"
	case AbortBatteryCritical:
		return "battery critical"
	case AbortUserCancelled:
		return "user cancelled"
	default:
		return "none"
	}
}

// AbortSignal is the one-shot synchronization primitive between the mission
// controller, the setpoint streamer and the safety monitors. The first Fire
// wins and latches its reason; later calls are no-ops. A fired signal is
// never reset: a fresh mission attempt needs a fresh signal.
type AbortSignal struct {
	once   sync.Once
	done   chan struct{}
	reason AbortReason
}

// NewAbortSignal creates an unfired signal.
func NewAbortSignal() *AbortSignal {
	return &AbortSignal{done: make(chan struct{})}
}

// Fire latches reason and wakes every task waiting on Done. Safe for
// concurrent use; exactly one caller's reason sticks.
func (s *AbortSignal) Fire(reason AbortReason) {
	s.once.Do(func() {
		s.reason = reason
		close(s.done)
	})
}

// Done returns a channel closed once the signal fires.
func (s *AbortSignal) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether the signal has fired.
func (s *AbortSignal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Reason returns the latched abort reason, or AbortNone before the signal
// fires. The reason is written before the done channel closes, so any
// reader woken by Done observes it.
func (s *AbortSignal) Reason() AbortReason {
	if !s.Fired() {
		return AbortNone
	}
	return s.reason
}
