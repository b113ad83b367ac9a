package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yareviews/pkg/browser"
	errs "yareviews/pkg/errors"
	"yareviews/pkg/models"
)

// SummaryExtractor reads the organisation's aggregate rating block
type SummaryExtractor struct {
	page browser.Page
}

// NewSummaryExtractor creates a summary extractor
func NewSummaryExtractor(page browser.Page) *SummaryExtractor {
	return &SummaryExtractor{page: page}
}

// Extract reads the header name and the rating block independently. A
// missing header leaves Name nil; a missing block leaves all numbers at 0.
func (x *SummaryExtractor) Extract(ctx context.Context) (models.CompanyInfo, error) {
	var info models.CompanyInfo

	header, err := x.snapshot(ctx, HeaderSelector)
	if err != nil {
		return info, err
	}
	if header != nil {
		if name := strings.TrimSpace(header.Text()); name != "" {
			info.Name = &name
		}
	}

	block, err := x.snapshot(ctx, ratingBlockSelector)
	if err != nil {
		return info, err
	}
	if block != nil {
		ParseRatingBlock(block, &info)
	}
	return info, nil
}

// snapshot returns a parsed copy of the first match of sel, or nil when
// there is none
func (x *SummaryExtractor) snapshot(ctx context.Context, sel string) (*goquery.Selection, error) {
	html, err := x.page.OuterHTML(ctx, sel)
	if errors.Is(err, browser.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Unexpected(err)
	}
	return doc.Find(sel).First(), nil
}

// ParseRatingBlock fills the numeric fields of info from the rating block
func ParseRatingBlock(block *goquery.Selection, info *models.CompanyInfo) {
	var parts []string
	block.Find(ratingTextSelector).Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, strings.TrimSpace(s.Text()))
	})
	info.AverageRating = parseRating(parts)

	if count, ok := textOf(block, ratingCountSelector); ok {
		info.RatingCount = digits(count)
	}
	info.StarRating = countStars(block.Find(starsSelector))
}
