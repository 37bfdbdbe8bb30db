// Package progress turns the acquisition tool's free-text progress lines
// into structured events and broadcasts download activity to subscribers.
// All pattern matching over tool output is isolated here so the patterns
// can change without touching orchestration.
package progress

import (
	"regexp"
	"strconv"
	"sync"
	"time"
)

// Event is one structured progress sample for a download attempt.
// Percent is monotonically non-decreasing within one attempt.
type Event struct {
	Percent  float64 `json:"percent"`
	Rate     string  `json:"rate"`
	ETA      string  `json:"eta"`
	Strategy string  `json:"strategy"`
}

// Matches lines like:
//
//	[download]  45.3% of 120.53MiB at 2.34MiB/s ETA 00:32
//	[download] 100.0% of ~4.21MiB at Unknown speed ETA Unknown
var progressLine = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%\s+of\s+~?\s*\S+(?:\s+at\s+(\S+(?:\s+speed)?))?(?:\s+ETA\s+(\S+))?`)

// ParseLine extracts a progress sample from one stderr line. Lines that do
// not match are diagnostic noise, not errors.
func ParseLine(line string) (Event, bool) {
	m := progressLine.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil || percent < 0 || percent > 100 {
		return Event{}, false
	}
	ev := Event{Percent: percent, Rate: m[2], ETA: m[3]}
	if ev.ETA == "" || ev.ETA == "Unknown" {
		ev.ETA = "unknown"
	}
	return ev, true
}

// Reporter feeds parsed events from one attempt to a subscriber, throttled
// to at most one emission per interval. The terminal 100% event bypasses
// throttling. Safe for use from the runner's stderr goroutine.
type Reporter struct {
	strategy string
	interval time.Duration
	emit     func(Event)
	now      func() time.Time

	mu       sync.Mutex
	lastEmit time.Time
	percent  float64
}

// NewReporter creates a reporter for one attempt, tagged with the
// attempting strategy. A zero interval defaults to 500ms.
func NewReporter(strategy string, interval time.Duration, emit func(Event)) *Reporter {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Reporter{
		strategy: strategy,
		interval: interval,
		emit:     emit,
		now:      time.Now,
	}
}

// Line consumes one raw stderr line. Unparseable lines and percent
// regressions are dropped.
func (r *Reporter) Line(line string) {
	ev, ok := ParseLine(line)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Percent < r.percent {
		return
	}
	r.percent = ev.Percent

	now := r.now()
	if !r.lastEmit.IsZero() && now.Sub(r.lastEmit) < r.interval {
		return
	}
	r.lastEmit = now

	ev.Strategy = r.strategy
	r.emit(ev)
}

// Finish emits the final 100% event for a successful attempt, regardless of
// throttling.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percent = 100
	r.lastEmit = r.now()
	r.emit(Event{Percent: 100, ETA: "unknown", Strategy: r.strategy})
}
