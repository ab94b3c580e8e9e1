// Package guard admits or rejects incoming connections against capacity
// limits and throttles per-connection event frequency.
package guard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrServerFull rejects a connection when the global cap is reached.
	ErrServerFull = errors.New("server is at capacity, please try again later")
	// ErrTooManyFromAddress rejects a connection over the per-address cap.
	ErrTooManyFromAddress = errors.New("too many connections from your address, please try again later")
)

// Config carries the capacity and rate limits. Zero values fall back to the
// reference defaults.
type Config struct {
	MaxConnections     int
	MaxPerAddress      int
	RateWindow         time.Duration
	MaxEventsPerWindow int
}

func (c Config) withDefaults() Config {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 200
	}
	if c.MaxPerAddress <= 0 {
		c.MaxPerAddress = 50
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	if c.MaxEventsPerWindow <= 0 {
		c.MaxEventsPerWindow = 500
	}
	return c
}

// Guard tracks live connections, per-address counts, and per-connection rate
// limiters. All counters are process-wide and swept periodically.
type Guard struct {
	cfg Config

	mu         sync.Mutex
	active     int
	total      int
	perAddress map[string]int
	limiters   map[string]*connLimiter
}

type connLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func New(cfg Config) *Guard {
	return &Guard{
		cfg:        cfg.withDefaults(),
		perAddress: make(map[string]int),
		limiters:   make(map[string]*connLimiter),
	}
}

// Admit reserves a slot for the connection or reports why it cannot.
func (g *Guard) Admit(connID, addr string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active >= g.cfg.MaxConnections {
		return ErrServerFull
	}
	if g.perAddress[addr] >= g.cfg.MaxPerAddress {
		return ErrTooManyFromAddress
	}

	g.active++
	g.total++
	g.perAddress[addr]++
	log.Printf("connection %s admitted (%d/%d active)", connID, g.active, g.cfg.MaxConnections)
	return nil
}

// Release frees the connection's slot and its rate-limit bookkeeping.
func (g *Guard) Release(connID, addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active > 0 {
		g.active--
	}
	if n := g.perAddress[addr]; n > 1 {
		g.perAddress[addr] = n - 1
	} else {
		delete(g.perAddress, addr)
	}
	delete(g.limiters, connID)
	log.Printf("connection %s released (%d/%d active)", connID, g.active, g.cfg.MaxConnections)
}

// Allow reports whether the connection may process another event. Denied
// events are dropped; the connection stays alive.
func (g *Guard) Allow(connID string) bool {
	g.mu.Lock()
	entry, ok := g.limiters[connID]
	if !ok {
		limit := rate.Limit(float64(g.cfg.MaxEventsPerWindow) / g.cfg.RateWindow.Seconds())
		entry = &connLimiter{lim: rate.NewLimiter(limit, g.cfg.MaxEventsPerWindow)}
		g.limiters[connID] = entry
	}
	entry.lastSeen = time.Now()
	g.mu.Unlock()

	return entry.lim.Allow()
}

// RetryAfter is the backoff hint sent with rate-limit-exceeded.
func (g *Guard) RetryAfter() time.Duration {
	return g.cfg.RateWindow
}

// Active reports the number of admitted connections.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Sweep purges rate-limit entries idle for over twice the window and address
// counts that have decayed to zero.
func (g *Guard) Sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := now.Add(-2 * g.cfg.RateWindow)
	for connID, entry := range g.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(g.limiters, connID)
		}
	}
	for addr, n := range g.perAddress {
		if n <= 0 {
			delete(g.perAddress, addr)
		}
	}
}

// Run sweeps on the given interval until the context is done.
func (g *Guard) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.Sweep(now)
		}
	}
}
