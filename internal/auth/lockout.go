package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Lockout defaults.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Lockout tracks failed logins per client. MaxAttempts failures within Window
// lock the client for Window. Entries live in a TTL cache that drops them
// once their window or lock has run out.
type Lockout struct {
	MaxAttempts int
	Window      time.Duration

	// mu makes each read-modify-write of an entry atomic.
	mu      sync.Mutex
	clients *ttlcache.Cache[string, *attempts]
	now     func() time.Time
}

type attempts struct {
	count       int
	first       time.Time
	lockedUntil time.Time
}

// NewLockout returns a Lockout. Non-positive arguments select the defaults.
func NewLockout(maxAttempts int, window time.Duration) *Lockout {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Lockout{
		MaxAttempts: maxAttempts,
		Window:      window,
		clients: ttlcache.New[string, *attempts](
			ttlcache.WithTTL[string, *attempts](window),
			ttlcache.WithDisableTouchOnHit[string, *attempts](),
		),
		now: time.Now,
	}
}

// expired reports whether a can be forgotten. Callers hold mu.
func (l *Lockout) expired(a *attempts, now time.Time) bool {
	if !a.lockedUntil.IsZero() {
		return !now.Before(a.lockedUntil)
	}
	return now.Sub(a.first) >= l.Window
}

// get returns the live entry for client, evicting it if expired. Callers hold mu.
func (l *Lockout) get(client string, now time.Time) *attempts {
	item := l.clients.Get(client)
	if item == nil {
		return nil
	}
	a := item.Value()
	if l.expired(a, now) {
		l.clients.Delete(client)
		return nil
	}
	return a
}

// Locked reports whether client is locked out and for how much longer.
func (l *Lockout) Locked(client string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	a := l.get(client, now)
	if a == nil || a.lockedUntil.IsZero() {
		return 0, false
	}
	return a.lockedUntil.Sub(now), true
}

// Fail records a failed attempt. It reports whether this failure locked the
// client and, if so, for how long.
func (l *Lockout) Fail(client string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	a := l.get(client, now)
	if a == nil {
		a = &attempts{first: now}
		l.clients.Set(client, a, ttlcache.DefaultTTL)
	}
	if !a.lockedUntil.IsZero() {
		return a.lockedUntil.Sub(now), true
	}

	a.count++
	if a.count >= l.MaxAttempts {
		a.lockedUntil = now.Add(l.Window)
		// The lock runs a full window from now, past the first-failure TTL.
		l.clients.Set(client, a, l.Window)
		return l.Window, true
	}
	return 0, false
}

// Succeed clears client's failure count.
func (l *Lockout) Succeed(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients.Delete(client)
}

// Sweep evicts every expired entry and returns how many were removed.
func (l *Lockout) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := l.clients.Len()
	now := l.now()
	for client, item := range l.clients.Items() {
		if l.expired(item.Value(), now) {
			l.clients.Delete(client)
		}
	}
	l.clients.DeleteExpired()
	return before - l.clients.Len()
}

// Len returns the number of tracked clients.
func (l *Lockout) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clients.Len()
}

// RunSweeper runs the cache's expiry loop until ctx is done.
func (l *Lockout) RunSweeper(ctx context.Context) {
	go func() {
		<-ctx.Done()
		l.clients.Stop()
	}()
	l.clients.Start()
}
