package orgpagetest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"yareviews/pkg/browser"
	errs "yareviews/pkg/errors"
)

const (
	viewportWidth  = 1280
	viewportHeight = 900
	headerHeight   = 400
	cardHeight     = 300
	cardSelector   = ".business-reviews-card-view__review"
)

var orgIDPattern = regexp.MustCompile(`/org/(\d+)`)

// Site is the set of organisations reachable through the fake browser
type Site struct {
	mu     sync.Mutex
	orgs   map[int64]*Org
	visits map[int64]int

	// PageSize is how many cards each lazy-load step reveals; 0 shows all
	PageSize int
	// BlockedVisits renders the first n visits to an org without a header
	BlockedVisits map[int64]int
	// FailOn makes the named Page method return the error
	FailOn map[string]error
}

// NewSite creates a site serving the given organisations
func NewSite(orgs map[int64]*Org) *Site {
	return &Site{
		orgs:          orgs,
		visits:        make(map[int64]int),
		BlockedVisits: make(map[int64]int),
		FailOn:        make(map[string]error),
	}
}

// Visits reports how many navigations reached the organisation
func (s *Site) Visits(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[id]
}

// Fail makes method fail with err from now on; nil clears it
func (s *Site) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.FailOn, method)
		return
	}
	s.FailOn[method] = err
}

// NewPage opens a blank tab on the site
func (s *Site) NewPage() *Page {
	return &Page{site: s}
}

// Page is one fake browser tab
type Page struct {
	site *Site

	org        *Org
	hideHeader bool
	loaded     int
	expanded   map[int]bool
	replies    map[int]bool
	locates    map[int]int
	detached   map[int]bool
	scrollY    float64
	closed     bool

	// Clicks lists every clicked selector in order
	Clicks []string
	// ScrollIntoViews counts ScrollIntoView calls
	ScrollIntoViews int
	// OuterHTMLs counts snapshot reads per selector
	OuterHTMLs map[string]int
}

func (p *Page) enter(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return errs.Transport(errors.New("browser closed"))
	}
	if err := p.site.FailOn[method]; err != nil {
		return err
	}
	return nil
}

func (p *Page) render() *goquery.Document {
	var b strings.Builder
	b.WriteString(`<html><head></head><body>`)
	if p.org != nil {
		renderHeader(&b, p.org, p.hideHeader)
		b.WriteString(`<div class="business-reviews-card-view__reviews-container">`)
		for i := 0; i < p.loaded; i++ {
			if p.detached[i+1] {
				continue
			}
			renderReview(&b, i+1, p.org.Reviews[i], p.expanded[i+1], p.replies[i+1])
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</body></html>`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	if err != nil {
		panic(fmt.Sprintf("orgpagetest: render: %v", err))
	}
	return doc
}

func (p *Page) find(sel string) *goquery.Selection {
	return p.render().Find(sel)
}

func (p *Page) pageSize() int {
	if p.site.PageSize <= 0 || p.org == nil {
		return len(p.orgReviews())
	}
	return p.site.PageSize
}

func (p *Page) orgReviews() []Review {
	if p.org == nil {
		return nil
	}
	return p.org.Reviews
}

func ordinalOf(s *goquery.Selection) int {
	n, _ := strconv.Atoi(s.Closest(cardSelector).AttrOr("aria-posinset", "0"))
	return n
}

func cardY(ordinal int) float64 {
	return float64(headerHeight + (ordinal-1)*cardHeight)
}

// Navigate serves the organisation named in url, or a 404 page
func (p *Page) Navigate(ctx context.Context, url string) (int, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "Navigate"); err != nil {
		return 0, err
	}

	p.org, p.loaded, p.scrollY = nil, 0, 0
	p.expanded, p.replies = make(map[int]bool), make(map[int]bool)
	p.locates, p.detached = make(map[int]int), make(map[int]bool)

	m := orgIDPattern.FindStringSubmatch(url)
	if m == nil {
		return http.StatusNotFound, nil
	}
	id, _ := strconv.ParseInt(m[1], 10, 64)
	org, ok := p.site.orgs[id]
	if !ok {
		return http.StatusNotFound, nil
	}

	p.site.visits[id]++
	p.org = org
	p.hideHeader = p.site.visits[id] <= p.site.BlockedVisits[id]
	p.loaded = min(p.pageSize(), len(org.Reviews))
	return http.StatusOK, nil
}

func (p *Page) WaitPresent(ctx context.Context, sel string, timeout time.Duration) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "WaitPresent"); err != nil {
		return err
	}
	node := p.find(sel).First()
	if node.Length() == 0 {
		return browser.ErrNotFound
	}
	if node.Is(cardSelector) && p.detach(ordinalOf(node)) {
		return browser.ErrNotFound
	}
	return nil
}

// detach counts a lookup of a volatile card and drops it from the DOM once
// it has used up its lookups
func (p *Page) detach(ordinal int) bool {
	limit, ok := p.org.Volatile[ordinal]
	if !ok {
		return false
	}
	p.locates[ordinal]++
	if p.locates[ordinal] > limit {
		p.detached[ordinal] = true
	}
	return p.detached[ordinal]
}

func (p *Page) Exists(ctx context.Context, sel string) (bool, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "Exists"); err != nil {
		return false, err
	}
	return p.find(sel).Length() > 0, nil
}

func (p *Page) OuterHTML(ctx context.Context, sel string) (string, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "OuterHTML"); err != nil {
		return "", err
	}
	node := p.find(sel).First()
	if node.Length() == 0 {
		return "", browser.ErrNotFound
	}
	if p.OuterHTMLs == nil {
		p.OuterHTMLs = make(map[string]int)
	}
	p.OuterHTMLs[sel]++
	return goquery.OuterHtml(node)
}

func (p *Page) Attributes(ctx context.Context, sel, attr string) ([]string, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "Attributes"); err != nil {
		return nil, err
	}
	var values []string
	p.find(sel).Each(func(_ int, s *goquery.Selection) {
		values = append(values, s.AttrOr(attr, ""))
	})
	return values, nil
}

// Click expands a review body or an owner reply when it hits their control
func (p *Page) Click(ctx context.Context, sel string) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "Click"); err != nil {
		return err
	}
	node := p.find(sel).First()
	if node.Length() == 0 {
		return browser.ErrNotFound
	}

	p.Clicks = append(p.Clicks, sel)
	switch {
	case node.HasClass("business-review-view__expand"):
		p.expanded[ordinalOf(node)] = true
	case node.HasClass("business-review-view__comment-expand"):
		p.replies[ordinalOf(node)] = true
	}
	return nil
}

// ScrollIntoView reveals the next batch of cards when the last loaded card
// comes into view
func (p *Page) ScrollIntoView(ctx context.Context, sel string) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "ScrollIntoView"); err != nil {
		return err
	}
	node := p.find(sel).First()
	if node.Length() == 0 {
		return browser.ErrNotFound
	}

	p.ScrollIntoViews++
	ord := ordinalOf(node)
	if ord > 0 {
		p.scrollY = cardY(ord)
	}
	if ord == p.loaded {
		p.loaded = min(p.loaded+p.pageSize(), len(p.orgReviews()))
	}
	return nil
}

func (p *Page) ElementTop(ctx context.Context, sel string) (float64, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "ElementTop"); err != nil {
		return 0, err
	}
	node := p.find(sel).First()
	if node.Length() == 0 {
		return 0, browser.ErrNotFound
	}
	if ord := ordinalOf(node); ord > 0 {
		return cardY(ord) - p.scrollY, nil
	}
	return -p.scrollY, nil
}

func (p *Page) Viewport(ctx context.Context) (browser.Viewport, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "Viewport"); err != nil {
		return browser.Viewport{}, err
	}
	return browser.Viewport{Width: viewportWidth, Height: viewportHeight, ScrollY: p.scrollY}, nil
}

func (p *Page) ScrollTo(ctx context.Context, y float64, smooth bool) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "ScrollTo"); err != nil {
		return err
	}
	p.scrollY = max(0, y)
	return nil
}

func (p *Page) ScrollBy(ctx context.Context, dy float64) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err := p.enter(ctx, "ScrollBy"); err != nil {
		return err
	}
	p.scrollY = max(0, p.scrollY+dy)
	return nil
}

// ScrollY reports the current scroll offset
func (p *Page) ScrollY() float64 {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	return p.scrollY
}

// Loaded reports how many cards are currently rendered
func (p *Page) Loaded() int {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	return p.loaded
}

var _ browser.Page = (*Page)(nil)
