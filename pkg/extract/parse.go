package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxStars = 5

var (
	cssURLPattern = regexp.MustCompile(`url\(\s*(?:"([^"]*)"|'([^']*)'|([^)'"\s]+))\s*\)`)
	dateLayouts   = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
)

// textOf returns the trimmed text of the first match of sel under s
func textOf(s *goquery.Selection, sel string) (string, bool) {
	node := s.Find(sel).First()
	if node.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(node.Text())
	return text, text != ""
}

// attrOf returns attr of the first match of sel under s
func attrOf(s *goquery.Selection, sel, attr string) (string, bool) {
	node := s.Find(sel).First()
	if node.Length() == 0 {
		return "", false
	}
	v, ok := node.Attr(attr)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// cssURL pulls the address out of an inline style such as
// `background-image: url("https://…")`.
func cssURL(style string) (string, bool) {
	m := cssURLPattern.FindStringSubmatch(style)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g != "" {
			return g, true
		}
	}
	return "", false
}

func parseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// countStars scores the first five star spans of a rating badge
func countStars(stars *goquery.Selection) float64 {
	var total float64
	stars.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= maxStars {
			return false
		}
		switch {
		case s.HasClass("_full"):
			total++
		case s.HasClass("_half"):
			total += 0.5
		}
		return true
	})
	return clampStars(total)
}

func clampStars(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxStars {
		return maxStars
	}
	return v
}

// parseRating joins the split rating parts ("4", ",", "8") into 4.8
func parseRating(parts []string) float64 {
	joined := strings.Join(parts, "")
	joined = strings.Map(func(r rune) rune {
		switch {
		case r == ',':
			return '.'
		case r == '.' || (r >= '0' && r <= '9'):
			return r
		}
		return -1
	}, joined)

	v, err := strconv.ParseFloat(joined, 64)
	if err != nil {
		return 0
	}
	return v
}

// digits keeps only the decimal digits of s, so "1 234 оценки" becomes 1234
func digits(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
