package extract

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"yareviews/pkg/browser"
	errs "yareviews/pkg/errors"
	"yareviews/pkg/humanize"
	"yareviews/pkg/logger"
	"yareviews/pkg/models"
)

// RecordExtractor reads one review card into a ReviewRecord
type RecordExtractor struct {
	page         browser.Page
	policy       humanize.Policy
	replyTimeout time.Duration
	log          logger.Logger
}

// NewRecordExtractor creates a record extractor. replyTimeout bounds the
// wait for an owner reply to render after its control is clicked.
func NewRecordExtractor(page browser.Page, policy humanize.Policy, replyTimeout time.Duration, log logger.Logger) *RecordExtractor {
	return &RecordExtractor{page: page, policy: policy, replyTimeout: replyTimeout, log: log}
}

// Extract snapshots the card and parses it. Missing fields keep their
// defaults; only a failure to read the card itself is returned.
func (x *RecordExtractor) Extract(ctx context.Context, item ItemHandle) (models.ReviewRecord, error) {
	if err := x.openReply(ctx, item); err != nil {
		return models.ReviewRecord{}, err
	}

	html, err := x.page.OuterHTML(ctx, item.Selector)
	if err != nil {
		return models.ReviewRecord{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.ReviewRecord{}, errs.Unexpected(err)
	}
	return ParseReview(doc.Selection), nil
}

// openReply clicks a collapsed owner reply open. Anything short of a
// transport fault or cancellation is ignored.
func (x *RecordExtractor) openReply(ctx context.Context, item ItemHandle) error {
	control := within(item.Selector, replyExpandSelector)
	collapsed, err := x.page.Exists(ctx, control)
	if err != nil || !collapsed {
		return x.soft(ctx, item, err)
	}

	if err := x.page.Click(ctx, control); err != nil {
		return x.soft(ctx, item, err)
	}
	if err := humanize.Sleep(ctx, x.policy, humanize.ExpandWait); err != nil {
		return err
	}
	err = x.page.WaitPresent(ctx, within(item.Selector, replyBubbleSelector), x.replyTimeout)
	return x.soft(ctx, item, err)
}

func (x *RecordExtractor) soft(ctx context.Context, item ItemHandle, err error) error {
	if err == nil || errors.Is(err, browser.ErrNotFound) {
		return nil
	}
	if isFatal(ctx, err) {
		return err
	}
	x.log.WithError(err).DebugWithFields("Owner reply not opened", map[string]interface{}{
		"ordinal": item.Ordinal,
	})
	return nil
}

// ParseReview reads every field of a review card independently
func ParseReview(card *goquery.Selection) models.ReviewRecord {
	var rec models.ReviewRecord

	if name, ok := textOf(card, authorNameSelector); ok {
		rec.AuthorName = &name
	}
	if style, ok := attrOf(card, avatarSelector, "style"); ok {
		if href, ok := cssURL(style); ok {
			rec.AvatarRef = &href
		}
	}
	if raw, ok := attrOf(card, dateSelector, "content"); ok {
		rec.PublishedAt, _ = parseDate(raw)
	}
	if body, ok := textOf(card, bodySelector); ok {
		rec.BodyText = &body
	}
	rec.StarRating = countStars(card.Find(starsSelector))
	if reply, ok := textOf(card, replyBubbleSelector); ok {
		rec.OwnerReply = &reply
	}
	return rec
}
