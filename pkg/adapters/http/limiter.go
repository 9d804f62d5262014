package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleSender is how long a sender's limiter is kept after its last message.
const idleSender = 10 * time.Minute

type senderEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// senderLimiter keeps one token bucket per sender.
type senderLimiter struct {
	mu        sync.Mutex
	senders   map[string]*senderEntry
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newSenderLimiter(perSecond float64, burst int) *senderLimiter {
	return &senderLimiter{
		senders: make(map[string]*senderEntry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

func (l *senderLimiter) Allow(sender string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > idleSender {
		for k, e := range l.senders {
			if now.Sub(e.lastSeen) > idleSender {
				delete(l.senders, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.senders[sender]
	if !ok {
		e = &senderEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.senders[sender] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *senderLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.senders)
}
