// Package clock provides the process-wide monotonic time source and
// k-sortable identifier generator shared by every other component.
package clock

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Clock is a wall-clock-seeded, forward-only time source for one process
// lifetime. It never goes backwards even if the system clock is adjusted.
type Clock struct {
	mu      sync.Mutex
	last    time.Time
	entropy *ulid.MonotonicEntropy
}

// New creates a Clock seeded from the current wall clock.
func New() *Clock {
	now := time.Now()
	return &Clock{
		last:    now,
		entropy: ulid.Monotonic(newRandReader(now), 0),
	}
}

// Now returns the current time in milliseconds, never earlier than the
// previous call within this process.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Before(c.last) {
		now = c.last
	}
	c.last = now
	return now.UnixMilli()
}

// Since returns a steady duration source usable for span timing; it is
// independent of wall-clock adjustments.
func (c *Clock) Since(start time.Time) time.Duration {
	return time.Since(start)
}

// NewID returns a k-sortable identifier of the form
// "<prefix>_<time36>_<rand36>" with 80 bits of randomness in the random
// component, globally unique within one install.
func (c *Clock) NewID(prefix string) string {
	c.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy)
	c.mu.Unlock()

	time36 := strings.ToLower(encode36(id.Time()))
	rand36 := strings.ToLower(base32To36(id.Entropy()))
	return prefix + "_" + time36 + "_" + rand36
}

// ID kind prefixes used across the system.
const (
	PrefixTrace      = "tr"
	PrefixSpan       = "sp"
	PrefixTask       = "tsk"
	PrefixDecision   = "dec"
	PrefixAction     = "act"
	PrefixOutcome    = "out"
	PrefixEdge       = "edg"
	PrefixCredential = "cred"
	PrefixPermission = "perm"
	PrefixSession    = "sess"
)

// global is a package-level clock constructed at package initialization.
// Components built by the CLI receive their own explicit *Clock instead.
var global = New()

// Global returns the process-wide clock instance.
func Global() *Clock { return global }
