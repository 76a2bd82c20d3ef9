package connection

import "time"

type timerKind uint8

const (
	timerConnect timerKind = iota
	timerPing
	timerPong
	timerReconnect
)

func (k timerKind) String() string {
	switch k {
	case timerConnect:
		return "connect"
	case timerPing:
		return "ping"
	case timerPong:
		return "pong"
	case timerReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// rearmTimer is a single-shot timer with at most one pending fire.
// Arming cancels the previous instance. Fires are delivered through the
// fire callback tagged with a sequence number, and the owner accepts a
// fire only if fired() confirms it is still current, so a fire that raced
// with Cancel is ignored.
//
// Not safe for concurrent use; only the event loop touches it.
type rearmTimer struct {
	kind timerKind
	fire func(kind timerKind, seq uint64)
	t    *time.Timer
	seq  uint64
}

func newRearmTimer(kind timerKind, fire func(timerKind, uint64)) *rearmTimer {
	return &rearmTimer{kind: kind, fire: fire}
}

// Arm schedules a fire after d, replacing any pending one.
func (r *rearmTimer) Arm(d time.Duration) {
	r.Cancel()
	kind, seq, fire := r.kind, r.seq, r.fire
	r.t = time.AfterFunc(d, func() { fire(kind, seq) })
}

// Cancel disarms the timer. Safe to call when nothing is armed.
func (r *rearmTimer) Cancel() {
	if r.t != nil {
		r.t.Stop()
		r.t = nil
	}
	r.seq++
}

// Armed reports whether a fire is pending.
func (r *rearmTimer) Armed() bool {
	return r.t != nil
}

// fired consumes a delivered fire. Returns false for stale fires.
func (r *rearmTimer) fired(seq uint64) bool {
	if r.t == nil || seq != r.seq {
		return false
	}
	r.t = nil
	return true
}
