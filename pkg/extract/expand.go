package extract

import (
	"context"
	"errors"
	"fmt"

	"yareviews/pkg/browser"
	errs "yareviews/pkg/errors"
	"yareviews/pkg/humanize"
	"yareviews/pkg/logger"
)

// ItemState tracks one card through the expansion pass
type ItemState int

const (
	Collapsed ItemState = iota
	ExpandRequested
	Expanded
	ExpandFailed
	Missing
)

func (s ItemState) String() string {
	switch s {
	case Collapsed:
		return "collapsed"
	case ExpandRequested:
		return "expand_requested"
	case Expanded:
		return "expanded"
	case ExpandFailed:
		return "expand_failed"
	case Missing:
		return "missing"
	}
	return fmt.Sprintf("ItemState(%d)", int(s))
}

// Report summarizes an expansion pass
type Report struct {
	// States holds the final state of every visited ordinal
	States map[int]ItemState
	// Clicked counts cards whose expand control was clicked
	Clicked int
}

// Count returns how many ordinals ended in state
func (r Report) Count(state ItemState) int {
	n := 0
	for _, s := range r.States {
		if s == state {
			n++
		}
	}
	return n
}

// ExpansionEngine opens every truncated review body
type ExpansionEngine struct {
	index  *PositionIndex
	page   browser.Page
	policy humanize.Policy
	log    logger.Logger
}

// NewExpansionEngine creates an expansion engine
func NewExpansionEngine(index *PositionIndex, page browser.Page, policy humanize.Policy, log logger.Logger) *ExpansionEngine {
	return &ExpansionEngine{index: index, page: page, policy: policy, log: log}
}

// ExpandAll visits ordinals 1..N in order and expands each collapsed card.
// Per-card failures are logged and skipped; only a transport fault or a
// cancelled ctx ends the pass early.
func (e *ExpansionEngine) ExpandAll(ctx context.Context) (Report, error) {
	report := Report{States: make(map[int]ItemState)}

	last, err := e.index.Last(ctx)
	if err != nil || last == 0 {
		return report, err
	}
	vp, err := e.page.Viewport(ctx)
	if err != nil {
		return report, err
	}

	for ordinal := 1; ordinal <= last; ordinal++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		state, clicked, err := e.expandOne(ctx, ordinal, vp.Height)
		if clicked {
			report.Clicked++
		}
		if err != nil {
			if isFatal(ctx, err) {
				report.States[ordinal] = ExpandFailed
				return report, err
			}
			e.log.WithError(err).WarnWithFields("Could not expand review", map[string]interface{}{
				"ordinal": ordinal,
				"state":   state.String(),
			})
			if state != Missing && state != Expanded {
				state = ExpandFailed
			}
		}
		report.States[ordinal] = state
	}
	return report, nil
}

// expandOne walks one card through the state machine. clicked reports
// whether the expand control was actually hit.
func (e *ExpansionEngine) expandOne(ctx context.Context, ordinal, viewportHeight int) (state ItemState, clicked bool, err error) {
	item, err := e.index.Locate(ctx, ordinal)
	if err != nil {
		return Missing, false, err
	}

	control := within(item.Selector, expandSelector)
	collapsed, err := e.page.Exists(ctx, control)
	if err != nil {
		return Collapsed, false, err
	}
	if !collapsed {
		return Expanded, false, nil
	}

	if err := e.bringIntoView(ctx, item, viewportHeight); err != nil {
		return Collapsed, false, err
	}

	if err := e.page.Click(ctx, control); err != nil {
		return ExpandRequested, false, err
	}
	if err := humanize.Sleep(ctx, e.policy, humanize.Action); err != nil {
		return ExpandRequested, true, err
	}

	if dy, ok := e.policy.Fidget(); ok {
		if err := e.page.ScrollBy(ctx, dy); err != nil {
			return Expanded, true, err
		}
		if err := humanize.Sleep(ctx, e.policy, humanize.Fidget); err != nil {
			return Expanded, true, err
		}
	}
	return Expanded, true, nil
}

// bringIntoView smooth-scrolls an off-screen card to a randomized anchor
// inside the viewport
func (e *ExpansionEngine) bringIntoView(ctx context.Context, item ItemHandle, viewportHeight int) error {
	top, err := e.page.ElementTop(ctx, item.Selector)
	if err != nil {
		return err
	}
	if top >= 0 && top < float64(viewportHeight) {
		return nil
	}

	// earlier clicks and fidget scrolls have moved the page since the pass began
	vp, err := e.page.Viewport(ctx)
	if err != nil {
		return err
	}
	target := max(0, vp.ScrollY+top-e.policy.ViewportAnchor(viewportHeight))
	if err := e.page.ScrollTo(ctx, target, true); err != nil {
		return err
	}
	return humanize.Sleep(ctx, e.policy, humanize.ScrollSettle)
}

// isFatal reports errors that must end a pass: transport faults and the
// caller's own cancellation
func isFatal(ctx context.Context, err error) bool {
	if errs.IsTransport(err) {
		return true
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return true
	}
	return false
}
