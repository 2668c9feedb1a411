package httpx

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// SlowDownConfig shapes the soft abuse stage: past DelayAfter requests in
// Window, every further request from the same key sleeps for Delay before
// being served. Bursts degrade gracefully before the hard limit rejects.
type SlowDownConfig struct {
	Window     time.Duration
	DelayAfter int
	Delay      time.Duration
}

// DefaultSlowDown mirrors the edge defaults: 100 requests per 15 minutes
// before a 500ms penalty kicks in. Override via SLOWDOWN_{AFTER,WINDOW_SEC,
// DELAY_MS}.
var DefaultSlowDown = SlowDownConfig{
	Window:     15 * time.Minute,
	DelayAfter: 100,
	Delay:      500 * time.Millisecond,
}

func init() {
	if val := os.Getenv("SLOWDOWN_AFTER"); val != "" {
		if after, err := strconv.Atoi(val); err == nil && after > 0 {
			DefaultSlowDown.DelayAfter = after
		}
	}
	if val := os.Getenv("SLOWDOWN_WINDOW_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil && sec > 0 {
			DefaultSlowDown.Window = time.Duration(sec) * time.Second
		}
	}
	if val := os.Getenv("SLOWDOWN_DELAY_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms > 0 {
			DefaultSlowDown.Delay = time.Duration(ms) * time.Millisecond
		}
	}
}

type windowCounter struct {
	mu    sync.Mutex
	start time.Time
	count int
}

// bump advances the counter and reports the count within the current window.
func (c *windowCounter) bump(window time.Duration, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.start) >= window {
		c.start = now
		c.count = 0
	}
	c.count++
	return c.count
}

// SlowDown introduces latency for clients hammering the edge, keyed by IP.
func SlowDown(config SlowDownConfig) Middleware {
	var (
		counters    sync.Map // map[string]*windowCounter
		mu          sync.Mutex
		lastCleanup = time.Now()
	)

	cleanup := func(now time.Time) {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastCleanup) < config.Window {
			return
		}
		lastCleanup = now
		counters.Range(func(key, value any) bool {
			c := value.(*windowCounter)
			c.mu.Lock()
			stale := now.Sub(c.start) >= 2*config.Window
			c.mu.Unlock()
			if stale {
				counters.Delete(key)
			}
			return true
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			key := IPKeyExtractor(r)

			value, _ := counters.LoadOrStore(key, &windowCounter{start: now})
			count := value.(*windowCounter).bump(config.Window, now)
			cleanup(now)

			if count > config.DelayAfter {
				select {
				case <-time.After(config.Delay):
				case <-r.Context().Done():
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
