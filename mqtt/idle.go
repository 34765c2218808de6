package mqtt

import (
	"sync/atomic"
	"time"
)

// IdleTimer tracks inbound activity of a link. The timeout can change
// while the link is live; changing it keeps the last activity mark.
type IdleTimer struct {
	timeout atomic.Int64
	last    atomic.Int64
	now     func() time.Time
}

func NewIdleTimer(timeout time.Duration, now func() time.Time) *IdleTimer {
	t := &IdleTimer{now: now}
	t.timeout.Store(int64(timeout))
	t.Mark()
	return t
}

// Mark records activity now.
func (t *IdleTimer) Mark() {
	t.last.Store(t.now().UnixNano())
}

func (t *IdleTimer) SetTimeout(d time.Duration) {
	t.timeout.Store(int64(d))
}

func (t *IdleTimer) Timeout() time.Duration {
	return time.Duration(t.timeout.Load())
}

// Expired reports whether the timeout has passed since the last mark.
// A zero timeout never expires.
func (t *IdleTimer) Expired() bool {
	timeout := t.timeout.Load()
	if timeout <= 0 {
		return false
	}
	return t.now().UnixNano()-t.last.Load() > timeout
}
