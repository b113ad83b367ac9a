package extract

import (
	"context"
	"sort"
	"strconv"
	"time"

	"yareviews/pkg/browser"
)

// ItemHandle addresses one review card by its ordinal. It never holds a live
// node, so it stays valid across re-renders of the list.
type ItemHandle struct {
	Ordinal  int
	Selector string
}

// PositionIndex finds review cards by their page-assigned ordinal
type PositionIndex struct {
	page    browser.Page
	timeout time.Duration
}

// NewPositionIndex creates an index over page. Locate waits up to timeout
// for a card to appear.
func NewPositionIndex(page browser.Page, timeout time.Duration) *PositionIndex {
	return &PositionIndex{page: page, timeout: timeout}
}

// Locate looks the card up fresh in the current DOM. It returns
// browser.ErrNotFound when the card does not show up in time.
func (ix *PositionIndex) Locate(ctx context.Context, ordinal int) (ItemHandle, error) {
	sel := OrdinalSelector(ordinal)
	if err := ix.page.WaitPresent(ctx, sel, ix.timeout); err != nil {
		return ItemHandle{}, err
	}
	return ItemHandle{Ordinal: ordinal, Selector: sel}, nil
}

// Ordinals lists the ordinals currently in the DOM in ascending order
func (ix *PositionIndex) Ordinals(ctx context.Context) ([]int, error) {
	raw, err := ix.page.Attributes(ctx, ReviewCardSelector+"["+OrdinalAttr+"]", OrdinalAttr)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(raw))
	ordinals := make([]int, 0, len(raw))
	for _, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		ordinals = append(ordinals, n)
	}
	sort.Ints(ordinals)
	return ordinals, nil
}

// Last returns the highest ordinal in the DOM, or 0 for an empty list
func (ix *PositionIndex) Last(ctx context.Context) (int, error) {
	ordinals, err := ix.Ordinals(ctx)
	if err != nil || len(ordinals) == 0 {
		return 0, err
	}
	return ordinals[len(ordinals)-1], nil
}
