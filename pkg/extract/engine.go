package extract

import (
	"context"
	"errors"
	"time"

	"yareviews/pkg/browser"
	"yareviews/pkg/humanize"
	"yareviews/pkg/logger"
	"yareviews/pkg/models"
)

// Options configures an Engine
type Options struct {
	Policy              humanize.Policy
	Logger              logger.Logger
	LocateTimeout       time.Duration
	ReplyTimeout        time.Duration
	MaxScrollIterations int
}

// Engine runs the review pipeline against one page: load the whole list,
// expand every card, then read the cards in ordinal order.
type Engine struct {
	Index    *PositionIndex
	Scroller *LazyLoadScroller
	Expander *ExpansionEngine
	Records  *RecordExtractor
	Summary  *SummaryExtractor

	log logger.Logger
}

// NewEngine wires the extraction components for page
func NewEngine(page browser.Page, opts Options) *Engine {
	if opts.Policy == nil {
		opts.Policy = humanize.Instant{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = 2 * time.Second
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = 2 * time.Second
	}
	if opts.MaxScrollIterations <= 0 {
		opts.MaxScrollIterations = 2000
	}

	index := NewPositionIndex(page, opts.LocateTimeout)
	return &Engine{
		Index:    index,
		Scroller: NewLazyLoadScroller(index, page, opts.Policy, opts.MaxScrollIterations, opts.Logger),
		Expander: NewExpansionEngine(index, page, opts.Policy, opts.Logger),
		Records:  NewRecordExtractor(page, opts.Policy, opts.ReplyTimeout, opts.Logger),
		Summary:  NewSummaryExtractor(page),
		log:      opts.Logger,
	}
}

// Reviews returns one record per located card in ascending ordinal order. A
// card that cannot be located or read is logged and skipped.
func (e *Engine) Reviews(ctx context.Context) ([]models.ReviewRecord, error) {
	iterations, err := e.Scroller.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	report, err := e.Expander.ExpandAll(ctx)
	if err != nil {
		return nil, err
	}

	ordinals, err := e.Index.Ordinals(ctx)
	if err != nil {
		return nil, err
	}

	e.log.DebugWithFields("Review list prepared", map[string]interface{}{
		"items":      len(ordinals),
		"scrolls":    iterations,
		"expanded":   report.Clicked,
		"not_opened": report.Count(ExpandFailed),
	})

	records := make([]models.ReviewRecord, 0, len(ordinals))
	for _, ordinal := range ordinals {
		item, err := e.Index.Locate(ctx, ordinal)
		if err == nil {
			var rec models.ReviewRecord
			rec, err = e.Records.Extract(ctx, item)
			if err == nil {
				records = append(records, rec)
				continue
			}
		}

		if !errors.Is(err, browser.ErrNotFound) {
			return nil, err
		}
		e.log.WarnWithFields("Review card vanished, skipping", map[string]interface{}{
			"ordinal": ordinal,
		})
	}
	return records, nil
}
