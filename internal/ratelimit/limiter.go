package ratelimit

import (
	"net/url"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between requests to the same
// host. A zero interval disables limiting.
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]time.Time
	minInterval time.Duration
}

func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]time.Time),
		minInterval: minInterval,
	}
}

// Allow reports whether a request to host may proceed now. The
// timestamp is only updated on an allowed request, so denied calls do
// not push the window forward.
func (l *Limiter) Allow(host string) bool {
	if l.minInterval <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	last, ok := l.hosts[host]
	if ok && now.Sub(last) < l.minInterval {
		return false
	}
	l.hosts[host] = now
	return true
}

// Wait blocks until a request to the URL's host is permitted. The
// argument may be a bare host or a full URL.
func (l *Limiter) Wait(rawURL string) {
	if l.minInterval <= 0 {
		return
	}

	host := hostOf(rawURL)

	l.mu.Lock()
	now := time.Now()
	last, ok := l.hosts[host]
	var sleep time.Duration
	if ok {
		if elapsed := now.Sub(last); elapsed < l.minInterval {
			sleep = l.minInterval - elapsed
		}
	}
	l.hosts[host] = now.Add(sleep)
	l.mu.Unlock()

	if sleep > 0 {
		time.Sleep(sleep)
	}
}

// Reset clears the recorded timestamp for a host.
func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, host)
}

// ResetAll clears all recorded timestamps.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts = make(map[string]time.Time)
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return rawURL
}
