package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound marks a bounded lookup that found nothing. Callers treat it as
// a soft miss and fall back to a default.
var ErrNotFound = errors.New("element not found")

// Viewport describes the visible window of a page
type Viewport struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	ScrollY float64 `json:"scrollY"`
}

// Page is one browser tab. Elements are always addressed by CSS selector and
// looked up fresh on every call, so a re-render between two calls never
// leaves the caller holding a stale node.
type Page interface {
	// Navigate loads url and returns the HTTP status of the main document
	Navigate(ctx context.Context, url string) (int, error)
	// WaitPresent waits up to timeout for sel to match, then returns ErrNotFound
	WaitPresent(ctx context.Context, sel string, timeout time.Duration) error
	Exists(ctx context.Context, sel string) (bool, error)
	OuterHTML(ctx context.Context, sel string) (string, error)
	// Attributes returns attr of every element matching sel, in document order
	Attributes(ctx context.Context, sel, attr string) ([]string, error)
	Click(ctx context.Context, sel string) error
	ScrollIntoView(ctx context.Context, sel string) error
	// ElementTop returns the element's top edge relative to the viewport
	ElementTop(ctx context.Context, sel string) (float64, error)
	Viewport(ctx context.Context) (Viewport, error)
	ScrollTo(ctx context.Context, y float64, smooth bool) error
	ScrollBy(ctx context.Context, dy float64) error
}

// Session is an isolated browser process with its own tab
type Session interface {
	ID() string
	Page() Page
	// Close terminates the browser process. It is safe to call more than once.
	Close() error
}

// LaunchOptions describes the browser to start
type LaunchOptions struct {
	ID          string
	ProfileDir  string
	Fingerprint Fingerprint
	Headless    bool
	ExecPath    string
	NoSandbox   bool
}

// Launcher starts browser sessions
type Launcher interface {
	Launch(ctx context.Context, lo LaunchOptions) (Session, error)
}
