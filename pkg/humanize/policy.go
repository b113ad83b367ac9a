// Package humanize decides how long to pause between page actions and when
// to add the small incidental scrolls a person reading the page would make.
package humanize

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"yareviews/pkg/config"
	"yareviews/pkg/retry"
)

// DelayKind names a pause in the extraction sequence
type DelayKind int

const (
	Think DelayKind = iota
	Settle
	RetrySettle
	Rotation
	Cooldown
	LazyLoad
	ScrollSettle
	Action
	Fidget
	Reading
	ExpandWait
)

var kindNames = [...]string{
	Think:        "think",
	Settle:       "settle",
	RetrySettle:  "retry_settle",
	Rotation:     "rotation",
	Cooldown:     "cooldown",
	LazyLoad:     "lazy_load",
	ScrollSettle: "scroll_settle",
	Action:       "action",
	Fidget:       "fidget",
	Reading:      "reading",
	ExpandWait:   "expand_wait",
}

func (k DelayKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Policy is the timing strategy injected into the extraction engine
type Policy interface {
	Delay(kind DelayKind) time.Duration
	// ViewportAnchor returns the offset from the viewport top at which an
	// element should land when scrolled into view
	ViewportAnchor(height int) float64
	// Fidget returns a small extraneous scroll, if one should happen now
	Fidget() (float64, bool)
	// ReadingScroll returns a downward scroll made right after a page load
	ReadingScroll() (float64, bool)
}

// Sleep pauses for the policy's delay of kind, or until ctx is done
func Sleep(ctx context.Context, p Policy, kind DelayKind) error {
	return retry.Wait(ctx, p.Delay(kind))
}

// Jitter draws delays and scroll offsets from the configured ranges
type Jitter struct {
	cfg    config.TimingConfig
	ranges map[DelayKind]config.Range

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitter builds a policy from timing configuration. A zero seed seeds from
// the clock. With jitter disabled every delay is its range minimum and no
// incidental scrolling happens.
func NewJitter(cfg config.TimingConfig) *Jitter {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Jitter{
		cfg: cfg,
		ranges: map[DelayKind]config.Range{
			Think:        cfg.Think,
			Settle:       cfg.Settle,
			RetrySettle:  cfg.RetrySettle,
			Rotation:     cfg.Rotation,
			Cooldown:     cfg.Cooldown,
			LazyLoad:     cfg.LazyLoad,
			ScrollSettle: cfg.ScrollSettle,
			Action:       cfg.Action,
			Fidget:       cfg.Fidget,
			Reading:      cfg.Reading,
			ExpandWait:   cfg.ExpandWait,
		},
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (j *Jitter) Delay(kind DelayKind) time.Duration {
	r := j.ranges[kind]
	if !j.cfg.Jitter || r.Max <= r.Min {
		return r.Min
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return r.Min + time.Duration(j.rng.Int63n(int64(r.Max-r.Min)+1))
}

func (j *Jitter) ViewportAnchor(height int) float64 {
	if !j.cfg.Jitter || j.cfg.AnchorMax <= j.cfg.AnchorMin {
		return float64(height) / 3
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	frac := j.cfg.AnchorMin + j.rng.Float64()*(j.cfg.AnchorMax-j.cfg.AnchorMin)
	return float64(height) * frac
}

func (j *Jitter) Fidget() (float64, bool) {
	if !j.cfg.Jitter || j.cfg.FidgetPixels <= 0 {
		return 0, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.rng.Float64() >= j.cfg.FidgetChance {
		return 0, false
	}
	px := j.cfg.FidgetPixels
	return float64(j.rng.Intn(2*px+1) - px), true
}

func (j *Jitter) ReadingScroll() (float64, bool) {
	if !j.cfg.Jitter {
		return 0, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.rng.Float64() >= j.cfg.ReadingChance {
		return 0, false
	}
	lo, hi := j.cfg.ReadingMinPx, j.cfg.ReadingMaxPx
	if hi <= lo {
		return float64(lo), true
	}
	return float64(lo + j.rng.Intn(hi-lo+1)), true
}

// Instant never waits and never scrolls incidentally
type Instant struct{}

func (Instant) Delay(DelayKind) time.Duration     { return 0 }
func (Instant) ViewportAnchor(height int) float64 { return float64(height) / 3 }
func (Instant) Fidget() (float64, bool)           { return 0, false }
func (Instant) ReadingScroll() (float64, bool)    { return 0, false }
