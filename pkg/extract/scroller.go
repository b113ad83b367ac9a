package extract

import (
	"context"
	"errors"

	"yareviews/pkg/browser"
	"yareviews/pkg/humanize"
	"yareviews/pkg/logger"
)

// LazyLoadScroller keeps scrolling to the last card until the page stops
// appending new ones
type LazyLoadScroller struct {
	index         *PositionIndex
	page          browser.Page
	policy        humanize.Policy
	maxIterations int
	log           logger.Logger
}

// NewLazyLoadScroller creates a scroller bounded to maxIterations passes
func NewLazyLoadScroller(index *PositionIndex, page browser.Page, policy humanize.Policy, maxIterations int, log logger.Logger) *LazyLoadScroller {
	return &LazyLoadScroller{index: index, page: page, policy: policy, maxIterations: maxIterations, log: log}
}

// LoadAll materializes the whole list and returns the number of scroll
// passes made. An empty list takes none; a list that does not grow takes one.
func (s *LazyLoadScroller) LoadAll(ctx context.Context) (int, error) {
	last, err := s.index.Last(ctx)
	if err != nil || last == 0 {
		return 0, err
	}

	iterations := 0
	for iterations < s.maxIterations {
		iterations++

		err := s.page.ScrollIntoView(ctx, OrdinalSelector(last))
		if err != nil && !errors.Is(err, browser.ErrNotFound) {
			return iterations, err
		}
		if err := humanize.Sleep(ctx, s.policy, humanize.LazyLoad); err != nil {
			return iterations, err
		}

		next, err := s.index.Last(ctx)
		if err != nil {
			return iterations, err
		}
		if next == last {
			s.log.DebugWithFields("Review list fully loaded", map[string]interface{}{
				"items":      last,
				"iterations": iterations,
			})
			return iterations, nil
		}
		last = next
	}

	s.log.WarnWithFields("Scroll ceiling reached before the list stopped growing", map[string]interface{}{
		"items":      last,
		"iterations": iterations,
	})
	return iterations, nil
}
