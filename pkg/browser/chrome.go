package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	errs "yareviews/pkg/errors"
	"yareviews/pkg/logger"
)

const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// ChromeLauncher starts headless or headed Chrome through the DevTools protocol
type ChromeLauncher struct {
	Logger logger.Logger
	// NavigationTimeout bounds a single page load
	NavigationTimeout time.Duration
	// ActionTimeout bounds every other round trip to the browser
	ActionTimeout time.Duration
}

// NewChromeLauncher creates a launcher with the given timeouts
func NewChromeLauncher(log logger.Logger, navigation, action time.Duration) *ChromeLauncher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ChromeLauncher{Logger: log, NavigationTimeout: navigation, ActionTimeout: action}
}

func (l *ChromeLauncher) allocatorOptions(lo LaunchOptions) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", lo.Headless),
		chromedp.UserDataDir(lo.ProfileDir),
		chromedp.WindowSize(lo.Fingerprint.Width, lo.Fingerprint.Height),

		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-gpu", lo.Headless),
		chromedp.Flag("no-sandbox", lo.NoSandbox),
	)

	if lo.Fingerprint.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(lo.Fingerprint.UserAgent))
	}
	if lo.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(lo.ExecPath))
	}
	return opts
}

// Launch starts a browser process bound to lo.ProfileDir. The process
// outlives ctx; ctx only bounds the start-up itself.
func (l *ChromeLauncher) Launch(ctx context.Context, lo LaunchOptions) (Session, error) {
	log := l.Logger.WithField("session", lo.ID)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions(lo)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverJS).Do(ctx)
		return err
	}))
	stop()
	if err != nil {
		tabCancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Transport(fmt.Errorf("launch browser: %w", err))
	}

	log.DebugWithFields("Browser started", map[string]interface{}{
		"profile":     lo.ProfileDir,
		"fingerprint": lo.Fingerprint.String(),
		"headless":    lo.Headless,
	})

	return &chromeSession{
		id:          lo.ID,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		page: &chromePage{
			tabCtx:            tabCtx,
			navigationTimeout: orDefault(l.NavigationTimeout, 45*time.Second),
			actionTimeout:     orDefault(l.ActionTimeout, 15*time.Second),
		},
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

type chromeSession struct {
	id          string
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	page        *chromePage

	closeOnce sync.Once
	closeErr  error
}

func (s *chromeSession) ID() string { return s.id }
func (s *chromeSession) Page() Page { return s.page }

// Close asks the browser to exit and waits for the process to go away
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = errs.Transport(fmt.Errorf("close browser: %w", err))
		}
		s.tabCancel()
		s.allocCancel()
	})
	return s.closeErr
}

type chromePage struct {
	tabCtx            context.Context
	navigationTimeout time.Duration
	actionTimeout     time.Duration
}

// run executes actions on the tab under timeout and ties them to the caller's
// ctx. soft marks bounded waits whose timeout means "absent" rather than a
// hung browser.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, soft bool, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return p.classify(ctx, runCtx, soft, chromedp.Run(runCtx, actions...))
}

func (p *chromePage) classify(ctx, runCtx context.Context, soft bool, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case p.tabCtx.Err() != nil:
		return errs.Transport(fmt.Errorf("browser gone: %w", err))
	case soft && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return ErrNotFound
	default:
		return errs.Transport(err)
	}
}

func (p *chromePage) eval(ctx context.Context, js string, out interface{}) error {
	return p.run(ctx, p.actionTimeout, false, chromedp.Evaluate(js, out))
}

func (p *chromePage) Navigate(ctx context.Context, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	runCtx, cancel := context.WithTimeout(p.tabCtx, p.navigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return 0, p.classify(ctx, runCtx, false, err)
	}
	if resp == nil {
		return 0, nil
	}
	return int(resp.Status), nil
}

func (p *chromePage) WaitPresent(ctx context.Context, sel string, timeout time.Duration) error {
	return p.run(ctx, timeout, true, chromedp.WaitReady(sel, chromedp.ByQuery))
}

func (p *chromePage) Exists(ctx context.Context, sel string) (bool, error) {
	var found bool
	err := p.eval(ctx, fmt.Sprintf(`!!document.querySelector(%s)`, jsString(sel)), &found)
	return found, err
}

type lookup struct {
	Found bool    `json:"found"`
	HTML  string  `json:"html"`
	Top   float64 `json:"top"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (p *chromePage) OuterHTML(ctx context.Context, sel string) (string, error) {
	var res lookup
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? {found: true, html: el.outerHTML} : {found: false};
	})()`, jsString(sel))
	if err := p.eval(ctx, js, &res); err != nil {
		return "", err
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.HTML, nil
}

func (p *chromePage) Attributes(ctx context.Context, sel, attr string) ([]string, error) {
	var values []string
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(el => el.getAttribute(%s) || "")`,
		jsString(sel), jsString(attr))
	if err := p.eval(ctx, js, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// Click dispatches a real mouse click at the element's centre, scrolling it
// into view first when it is off screen.
func (p *chromePage) Click(ctx context.Context, sel string) error {
	var res lookup
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return {found: false};
		let r = el.getBoundingClientRect();
		if (r.bottom < 0 || r.top > window.innerHeight) {
			el.scrollIntoView({block: "center"});
			r = el.getBoundingClientRect();
		}
		return {found: true, x: r.left + r.width / 2, y: r.top + r.height / 2};
	})()`, jsString(sel))
	if err := p.eval(ctx, js, &res); err != nil {
		return err
	}
	if !res.Found {
		return ErrNotFound
	}
	return p.run(ctx, p.actionTimeout, false, chromedp.MouseClickXY(res.X, res.Y))
}

func (p *chromePage) ScrollIntoView(ctx context.Context, sel string) error {
	var found bool
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.scrollIntoView();
		return true;
	})()`, jsString(sel))
	if err := p.eval(ctx, js, &found); err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (p *chromePage) ElementTop(ctx context.Context, sel string) (float64, error) {
	var res lookup
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? {found: true, top: el.getBoundingClientRect().top} : {found: false};
	})()`, jsString(sel))
	if err := p.eval(ctx, js, &res); err != nil {
		return 0, err
	}
	if !res.Found {
		return 0, ErrNotFound
	}
	return res.Top, nil
}

func (p *chromePage) Viewport(ctx context.Context) (Viewport, error) {
	var vp Viewport
	err := p.eval(ctx, `({width: window.innerWidth, height: window.innerHeight, scrollY: window.scrollY})`, &vp)
	return vp, err
}

func (p *chromePage) ScrollTo(ctx context.Context, y float64, smooth bool) error {
	behavior := "instant"
	if smooth {
		behavior = "smooth"
	}
	js := fmt.Sprintf(`window.scrollTo({top: %f, behavior: %s})`, y, jsString(behavior))
	return p.eval(ctx, js, nil)
}

func (p *chromePage) ScrollBy(ctx context.Context, dy float64) error {
	return p.eval(ctx, fmt.Sprintf(`window.scrollBy(0, %f)`, dy), nil)
}

// jsString renders s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
