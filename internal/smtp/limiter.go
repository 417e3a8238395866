package smtp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnectionLimiter caps concurrent SMTP sessions globally and per remote
// IP, and paces how fast new sessions may be opened.
type ConnectionLimiter struct {
	mu       sync.Mutex
	maxConns int
	maxPerIP int
	current  int
	perIP    map[string]int
	rate     *rate.Limiter
}

// NewConnectionLimiter creates a limiter. Non-positive limits disable the
// corresponding check; perMinute is the sustained rate of new sessions.
func NewConnectionLimiter(maxConns, maxPerIP, perMinute int) *ConnectionLimiter {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &ConnectionLimiter{
		maxConns: maxConns,
		maxPerIP: maxPerIP,
		perIP:    make(map[string]int),
		rate:     rate.NewLimiter(limit, burst),
	}
}

// Acquire reserves a slot for ip. Callers must Release it when the session
// ends.
func (l *ConnectionLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxConns > 0 && l.current >= l.maxConns {
		return false
	}
	if l.maxPerIP > 0 && l.perIP[ip] >= l.maxPerIP {
		return false
	}
	if !l.rate.Allow() {
		return false
	}

	l.current++
	l.perIP[ip]++
	return true
}

// Release frees the slot held by ip. Releasing an ip that holds no slot is
// a no-op.
func (l *ConnectionLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch n := l.perIP[ip]; {
	case n > 1:
		l.perIP[ip] = n - 1
		l.current--
	case n == 1:
		delete(l.perIP, ip)
		l.current--
	}
}

// Current is the number of open sessions.
func (l *ConnectionLimiter) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
