// Package orgpagetest provides an in-memory organisation reviews page that
// implements browser.Page for tests. Every call renders the page afresh and
// evaluates selectors with goquery, so no node survives between calls.
package orgpagetest

import (
	"fmt"
	"html"
	"strings"
)

// Review describes one review card. Empty strings leave the matching element
// out of the markup.
type Review struct {
	Name   string
	Avatar string
	Date   string
	Text   string
	// Stars lists the star modifiers in order, e.g. "_full", "_half", "_empty"
	Stars []string
	Reply string
	// Collapsed hides the body behind an expand control until clicked
	Collapsed bool
	// ReplyCollapsed hides the owner reply until its control is clicked
	ReplyCollapsed bool
}

// Org is the organisation page content
type Org struct {
	// Name is the header text; empty renders no header at all
	Name   string
	Rating []string
	Count  string
	Stars  []string
	// NoRatingBlock leaves out the summary rating block
	NoRatingBlock bool
	Reviews       []Review
	// Volatile maps an ordinal to how many times its card can be located
	// before the list re-renders without it. The other cards keep their
	// ordinals.
	Volatile map[int]int
}

// FullStars returns n full stars padded with empty ones to five
func FullStars(n int) []string {
	stars := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		if i < n {
			stars = append(stars, "_full")
		} else {
			stars = append(stars, "_empty")
		}
	}
	return stars
}

const collapsedLen = 24

func renderStars(b *strings.Builder, stars []string) {
	b.WriteString(`<div class="business-rating-badge-view__stars _spacing_normal">`)
	for _, s := range stars {
		fmt.Fprintf(b, `<span class="inline-image _loaded icon business-rating-badge-view__star %s"></span>`, html.EscapeString(s))
	}
	b.WriteString(`</div>`)
}

func renderHeader(b *strings.Builder, org *Org, hideHeader bool) {
	if org.Name != "" && !hideHeader {
		fmt.Fprintf(b, `<h1 class="orgpage-header-view__header">%s</h1>`, html.EscapeString(org.Name))
	}
	if org.NoRatingBlock {
		return
	}

	b.WriteString(`<div class="business-summary-rating-badge-view__rating-and-stars">`)
	b.WriteString(`<div class="business-summary-rating-badge-view__rating">`)
	for _, part := range org.Rating {
		fmt.Fprintf(b, `<span class="business-summary-rating-badge-view__rating-text">%s</span>`, html.EscapeString(part))
	}
	b.WriteString(`</div>`)
	renderStars(b, org.Stars)
	fmt.Fprintf(b, `<div class="business-summary-rating-badge-view__rating-count"><span class="business-rating-amount-view _summary">%s</span></div>`,
		html.EscapeString(org.Count))
	b.WriteString(`</div>`)
}

func renderReview(b *strings.Builder, ordinal int, r Review, expanded, replyExpanded bool) {
	fmt.Fprintf(b, `<div class="business-reviews-card-view__review" aria-posinset="%d"><div class="business-review-view">`, ordinal)

	b.WriteString(`<div class="business-review-view__author-container">`)
	if r.Avatar != "" {
		style := fmt.Sprintf(`background-image: url("%s");`, r.Avatar)
		fmt.Fprintf(b, `<div class="user-icon-view__icon" style="%s"></div>`, html.EscapeString(style))
	}
	if r.Name != "" {
		fmt.Fprintf(b, `<div class="business-review-view__author-name"><span itemprop="name">%s</span></div>`, html.EscapeString(r.Name))
	}
	b.WriteString(`</div>`)

	if r.Date != "" {
		fmt.Fprintf(b, `<meta itemprop="datePublished" content="%s">`, html.EscapeString(r.Date))
	}
	if r.Stars != nil {
		renderStars(b, r.Stars)
	}

	if r.Text != "" {
		text := r.Text
		truncated := r.Collapsed && !expanded && len([]rune(text)) > collapsedLen
		if truncated {
			text = string([]rune(text)[:collapsedLen]) + "…"
		}
		fmt.Fprintf(b, `<div class="business-review-view__body"><span class="spoiler-view__text-container">%s</span></div>`, html.EscapeString(text))
		if r.Collapsed && !expanded {
			b.WriteString(`<span class="business-review-view__expand" role="button">Ещё</span>`)
		}
	}

	if r.Reply != "" {
		if r.ReplyCollapsed && !replyExpanded {
			b.WriteString(`<div class="business-review-view__comment-expand" role="button">Посмотреть ответ организации</div>`)
		} else {
			fmt.Fprintf(b, `<div class="business-review-comment-content__bubble">%s</div>`, html.EscapeString(r.Reply))
		}
	}

	b.WriteString(`</div></div>`)
}
