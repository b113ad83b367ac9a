// Package session manages the lifecycle of isolated browser sessions and runs
// one extraction at a time on them.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yareviews/pkg/browser"
	"yareviews/pkg/config"
	errs "yareviews/pkg/errors"
	"yareviews/pkg/extract"
	"yareviews/pkg/humanize"
	"yareviews/pkg/logger"
	"yareviews/pkg/metrics"
	"yareviews/pkg/models"
	"yareviews/pkg/ratelimit"
	"yareviews/pkg/retry"
)

// Rotation reasons
const (
	ReasonThreshold = "threshold"
	ReasonBlock     = "suspected_block"
	ReasonTransport = "transport"
	ReasonManual    = "manual"
)

// Error strings returned in models.Result
const (
	MsgNotFound   = "page not found"
	MsgBlocked    = "possible block detected"
	prefixBrowser = "browser error: "
	prefixUnknown = "unexpected error: "
)

// ErrClosed is returned once the manager has been closed
var ErrClosed = errors.New("session manager closed")

// Options configures a Manager
type Options struct {
	Launcher browser.Launcher
	Policy   humanize.Policy
	// Limiter paces navigations; it may be shared between managers
	Limiter ratelimit.Limiter
	Logger  logger.Logger

	Browser config.BrowserConfig
	Session config.SessionConfig
	Scrape  config.ScrapeConfig
	Seed    int64
}

// OptionsFromConfig copies the relevant configuration sections into Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Browser: cfg.Browser,
		Session: cfg.Session,
		Scrape:  cfg.Scrape,
		Seed:    cfg.Timing.Seed,
	}
}

// Manager owns one browser session at a time: it provisions it, counts its
// use, replaces it on threshold, fault or suspected block, and removes its
// profile directory when done. RunExtraction, Rotate and Close are
// serialized.
type Manager struct {
	opts Options
	log  logger.Logger
	rng  *rand.Rand

	mu         sync.Mutex
	current    browser.Session
	profileDir string
	uses       int
	closed     bool
}

// New creates a manager. No browser is started until the first extraction.
func New(opts Options) *Manager {
	if opts.Policy == nil {
		opts.Policy = humanize.Instant{}
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(0)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Scrape.URLTemplate == "" {
		opts.Scrape.URLTemplate = config.DefaultURLTemplate
	}
	if opts.Session.MaxExtractions <= 0 {
		opts.Session.MaxExtractions = 8
	}
	if opts.Session.CleanupAttempts <= 0 {
		opts.Session.CleanupAttempts = 1
	}
	if opts.Session.LaunchAttempts <= 0 {
		opts.Session.LaunchAttempts = 1
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Manager{
		opts: opts,
		log:  opts.Logger.WithField("component", "session"),
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// SessionID returns the id of the live session, or "" when there is none
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID()
}

// ProfileDir returns the profile directory of the live session
func (m *Manager) ProfileDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profileDir
}

// Uses returns how many extractions the live session has served
func (m *Manager) Uses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uses
}

// EnsureSession starts a session when there is none or when the live one has
// reached its extraction budget
func (m *Manager) EnsureSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureSession(ctx)
}

// Rotate replaces the live session with a fresh one. It is safe to call
// without a live session.
func (m *Manager) Rotate(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.rotate(ctx, reason)
}

// Close tears down the live session. Further calls are no-ops.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.teardown()
}

func (m *Manager) ensureSession(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	if m.current == nil {
		return m.provision(ctx)
	}
	if m.uses >= m.opts.Session.MaxExtractions {
		return m.rotate(ctx, ReasonThreshold)
	}
	return nil
}

func (m *Manager) rotate(ctx context.Context, reason string) error {
	oldID := ""
	if m.current != nil {
		oldID = m.current.ID()
	}
	if err := m.teardown(); err != nil {
		m.log.WithError(err).Warn("Previous session did not shut down cleanly")
	}
	metrics.ObserveRotation(reason)

	if err := m.provision(ctx); err != nil {
		return err
	}
	logger.LogRotation(m.log, oldID, m.current.ID(), reason)
	return nil
}

func (m *Manager) provision(ctx context.Context) error {
	root := m.opts.Session.ProfileRoot
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create profile root: %w", err)
	}

	id := uuid.NewString()
	dir := filepath.Join(root, "yareviews-"+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	b := m.opts.Browser
	fp := browser.RandomFingerprint(m.rng, b.UserAgents, browser.ViewportBounds{
		MinWidth: b.MinWidth, MaxWidth: b.MaxWidth,
		MinHeight: b.MinHeight, MaxHeight: b.MaxHeight,
	})

	lo := browser.LaunchOptions{
		ID:          id,
		ProfileDir:  dir,
		Fingerprint: fp,
		Headless:    b.Headless,
		ExecPath:    b.ExecPath,
		NoSandbox:   b.NoSandbox,
	}
	sess, err := retry.DoWithResult(func() (browser.Session, error) {
		return m.opts.Launcher.Launch(ctx, lo)
	}, m.launchRetry(ctx, id))
	if err != nil {
		if rmErr := m.removeDir(dir); rmErr != nil {
			m.log.WithError(rmErr).Warn("Could not remove profile of failed launch")
		}
		return err
	}

	m.current, m.profileDir, m.uses = sess, dir, 0
	metrics.SessionsOpen.Inc()
	m.log.InfoWithFields("Session opened", map[string]interface{}{
		"session":     id,
		"profile":     dir,
		"fingerprint": fp.String(),
	})

	return humanize.Sleep(ctx, m.opts.Policy, humanize.Rotation)
}

// teardown stops the browser process and then removes its profile directory.
// Both steps always run.
func (m *Manager) teardown() error {
	if m.current == nil {
		return nil
	}
	sess, dir := m.current, m.profileDir
	m.current, m.profileDir, m.uses = nil, "", 0
	metrics.SessionsOpen.Dec()

	closeErr := sess.Close()
	removeErr := m.removeDir(dir)

	m.log.DebugWithFields("Session closed", map[string]interface{}{"session": sess.ID()})
	return errors.Join(closeErr, removeErr)
}

// launchRetry retries transport faults during start-up with exponential
// backoff. Cancellation and any other error end the attempts at once.
func (m *Manager) launchRetry(ctx context.Context, id string) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = m.opts.Session.LaunchAttempts
	cfg.Backoff = &retry.ExponentialBackoff{
		Initial: m.opts.Session.LaunchBackoff,
		Max:     8 * m.opts.Session.LaunchBackoff,
		Factor:  2,
		Jitter:  0.2,
	}
	cfg.Context = ctx
	cfg.Logger = m.log
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		m.log.WithError(err).WarnWithFields("Browser launch failed, retrying", map[string]interface{}{
			"session":  id,
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		})
	}
	return cfg
}

func (m *Manager) removeDir(dir string) error {
	if dir == "" {
		return nil
	}
	return retry.Do(func() error {
		return os.RemoveAll(dir)
	}, &retry.Config{
		MaxAttempts: m.opts.Session.CleanupAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: m.opts.Session.CleanupDelay},
		RetryIf:     func(error) bool { return true },
		Context:     context.Background(),
		Logger:      m.log,
	})
}

// RunExtraction extracts one organisation. It never returns an error or
// panics: every outcome, failures included, is a models.Result.
func (m *Manager) RunExtraction(ctx context.Context, orgID int64, mode models.Mode) (result models.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.log.ErrorWithFields("Extraction panicked", map[string]interface{}{
				"org_id": orgID,
				"panic":  fmt.Sprint(r),
			})
			if err := m.teardown(); err != nil {
				m.log.WithError(err).Warn("Teardown after panic failed")
			}
			result = models.Result{Error: prefixUnknown + fmt.Sprint(r)}
		}
		m.observe(orgID, mode, result, time.Since(start))
	}()

	res, err := m.extract(ctx, orgID, mode)
	if err != nil {
		return m.failure(ctx, err)
	}
	return res
}

func (m *Manager) observe(orgID int64, mode models.Mode, result models.Result, dur time.Duration) {
	outcome := "ok"
	var err error
	if result.Failed() {
		err = errors.New(result.Error)
		switch {
		case result.Error == MsgNotFound:
			outcome = string(errs.ErrorTypeNotFound)
		case result.Error == MsgBlocked:
			outcome = string(errs.ErrorTypeSuspectedBlock)
		case strings.HasPrefix(result.Error, prefixBrowser):
			outcome = string(errs.ErrorTypeTransport)
		default:
			outcome = string(errs.ErrorTypeUnexpected)
		}
	}
	metrics.ObserveExtraction(string(mode), outcome, len(result.CompanyReviews), dur)
	logger.LogExtraction(m.log, orgID, string(mode), len(result.CompanyReviews), dur, err)
}

// failure maps an error onto the result taxonomy. A transport fault also
// replaces the live session so the next call starts clean. When the fault
// came from provisioning itself, after every launch attempt was spent, there
// is no live session and nothing is launched here; the next call provisions
// afresh.
func (m *Manager) failure(ctx context.Context, err error) models.Result {
	var typed *errs.Error
	if !errors.As(err, &typed) {
		return models.Result{Error: prefixUnknown + err.Error()}
	}

	switch typed.Type {
	case errs.ErrorTypeNotFound:
		return models.Result{Error: MsgNotFound}
	case errs.ErrorTypeSuspectedBlock:
		return models.Result{Error: MsgBlocked}
	case errs.ErrorTypeTransport:
		if m.current == nil {
			return models.Result{Error: prefixBrowser + typed.Message}
		}
		if rotErr := m.rotate(ctx, ReasonTransport); rotErr != nil {
			m.log.WithError(rotErr).Warn("Could not replace session after browser fault")
		}
		return models.Result{Error: prefixBrowser + typed.Message}
	default:
		return models.Result{Error: prefixUnknown + typed.Message}
	}
}

func (m *Manager) extract(ctx context.Context, orgID int64, mode models.Mode) (models.Result, error) {
	if err := m.ensureSession(ctx); err != nil {
		return models.Result{}, err
	}
	url := fmt.Sprintf(m.opts.Scrape.URLTemplate, orgID)

	if err := humanize.Sleep(ctx, m.opts.Policy, humanize.Think); err != nil {
		return models.Result{}, err
	}
	engine, err := m.open(ctx, url)
	if err != nil {
		return models.Result{}, err
	}
	if err := humanize.Sleep(ctx, m.opts.Policy, humanize.Settle); err != nil {
		return models.Result{}, err
	}

	info, err := engine.Summary.Extract(ctx)
	if err != nil {
		return models.Result{}, err
	}

	if info.Name == nil {
		m.log.WarnWithFields("Organisation header missing, retrying on a fresh session", map[string]interface{}{
			"org_id":  orgID,
			"session": m.current.ID(),
		})
		if info, engine, err = m.retryBlocked(ctx, url); err != nil {
			return models.Result{}, err
		}
		if info.Name == nil {
			return models.Result{}, errs.Block(MsgBlocked)
		}
	}

	var result models.Result
	if mode.IncludesInfo() {
		result.CompanyInfo = &info
	}
	if mode.IncludesReviews() {
		reviews, err := engine.Reviews(ctx)
		if err != nil {
			return models.Result{}, err
		}
		result.CompanyReviews = reviews
	}

	m.uses++
	return result, nil
}

// retryBlocked cools down, rotates and reads the summary once more
func (m *Manager) retryBlocked(ctx context.Context, url string) (models.CompanyInfo, *extract.Engine, error) {
	if err := humanize.Sleep(ctx, m.opts.Policy, humanize.Cooldown); err != nil {
		return models.CompanyInfo{}, nil, err
	}
	if err := m.rotate(ctx, ReasonBlock); err != nil {
		return models.CompanyInfo{}, nil, err
	}

	engine, err := m.open(ctx, url)
	if err != nil {
		return models.CompanyInfo{}, nil, err
	}
	if err := humanize.Sleep(ctx, m.opts.Policy, humanize.RetrySettle); err != nil {
		return models.CompanyInfo{}, nil, err
	}

	info, err := engine.Summary.Extract(ctx)
	return info, engine, err
}

// open navigates the live session to url, makes the post-load reading
// scroll and waits for the organisation header. A header that never shows up
// is not an error here; the summary read decides.
func (m *Manager) open(ctx context.Context, url string) (*extract.Engine, error) {
	page := m.current.Page()

	if err := m.opts.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	status, err := page.Navigate(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errs.NotFound(MsgNotFound)
	}

	if dy, ok := m.opts.Policy.ReadingScroll(); ok {
		if err := page.ScrollBy(ctx, dy); err != nil {
			return nil, err
		}
		if err := humanize.Sleep(ctx, m.opts.Policy, humanize.Reading); err != nil {
			return nil, err
		}
	}

	err = page.WaitPresent(ctx, extract.HeaderSelector, m.opts.Browser.HeaderTimeout)
	if err != nil && !errors.Is(err, browser.ErrNotFound) {
		return nil, err
	}

	return extract.NewEngine(page, extract.Options{
		Policy:              m.opts.Policy,
		Logger:              m.log,
		LocateTimeout:       m.opts.Browser.LocateTimeout,
		ReplyTimeout:        m.opts.Browser.LocateTimeout,
		MaxScrollIterations: m.opts.Scrape.MaxScrollIterations,
	}), nil
}
