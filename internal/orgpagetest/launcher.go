package orgpagetest

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"yareviews/pkg/browser"
)

// Launcher hands out fake sessions on a Site
type Launcher struct {
	Site *Site
	// LaunchErr fails launches while set. FailLaunches > 0 limits it to that
	// many failures, after which launches succeed again.
	LaunchErr    error
	FailLaunches int

	mu       sync.Mutex
	attempts int
	failed   int
	Launched []browser.LaunchOptions
	Sessions []*Session
}

// NewLauncher creates a launcher for site
func NewLauncher(site *Site) *Launcher {
	return &Launcher{Site: site}
}

// Launch records the options and returns a session with a blank page. Like a real
// browser it writes into the profile directory.
func (l *Launcher) Launch(ctx context.Context, lo browser.LaunchOptions) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	if l.LaunchErr != nil && (l.FailLaunches <= 0 || l.failed < l.FailLaunches) {
		l.failed++
		return nil, l.LaunchErr
	}
	if lo.ProfileDir != "" {
		if err := os.WriteFile(filepath.Join(lo.ProfileDir, "Local State"), []byte("{}"), 0o600); err != nil {
			return nil, err
		}
	}

	s := &Session{id: lo.ID, page: l.Site.NewPage()}
	l.Launched = append(l.Launched, lo)
	l.Sessions = append(l.Sessions, s)
	return s, nil
}

// Launches reports how many sessions were started
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Sessions)
}

// Attempts reports how many launches were tried, failed ones included
func (l *Launcher) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// Last returns the most recent session
func (l *Launcher) Last() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Sessions) == 0 {
		return nil
	}
	return l.Sessions[len(l.Sessions)-1]
}

// Session is a fake browser session
type Session struct {
	id   string
	page *Page

	mu     sync.Mutex
	closes int
}

func (s *Session) ID() string { return s.id }

func (s *Session) Page() browser.Page { return s.page }

// FakePage exposes the concrete page for assertions
func (s *Session) FakePage() *Page { return s.page }

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++

	s.page.site.mu.Lock()
	s.page.closed = true
	s.page.site.mu.Unlock()
	return nil
}

// Closed reports whether Close was called at least once
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes > 0
}
