package orgpagetest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yareviews/pkg/browser"
)

func TestPageLazyLoadsAndExpands(t *testing.T) {
	ctx := context.Background()
	site := NewSite(map[int64]*Org{
		7: {
			Name: "Cafe",
			Reviews: []Review{
				{Name: "A", Text: "short"},
				{Name: "B", Text: "a very long body that is hidden behind the control", Collapsed: true},
				{Name: "C", Text: "c"},
			},
		},
	})
	site.PageSize = 2
	p := site.NewPage()

	status, err := p.Navigate(ctx, "https://yandex.ru/maps/org/7/reviews/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, p.Loaded())

	require.NoError(t, p.ScrollIntoView(ctx, cardSelector+"[aria-posinset='2']"))
	assert.Equal(t, 3, p.Loaded())

	expand := cardSelector + "[aria-posinset='2'] .business-review-view__expand"
	ok, err := p.Exists(ctx, expand)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Click(ctx, expand))
	ok, err = p.Exists(ctx, expand)
	require.NoError(t, err)
	assert.False(t, ok)

	html, err := p.OuterHTML(ctx, cardSelector+"[aria-posinset='2']")
	require.NoError(t, err)
	assert.Contains(t, html, "hidden behind the control")
}

func TestPageNotFoundAndBlocked(t *testing.T) {
	ctx := context.Background()
	site := NewSite(map[int64]*Org{1: {Name: "Org"}})
	site.BlockedVisits[1] = 1
	p := site.NewPage()

	status, err := p.Navigate(ctx, "https://yandex.ru/maps/org/404/reviews/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	_, err = p.Navigate(ctx, "https://yandex.ru/maps/org/1/reviews/")
	require.NoError(t, err)
	assert.ErrorIs(t, p.WaitPresent(ctx, "h1.orgpage-header-view__header", 0), browser.ErrNotFound)

	_, err = p.Navigate(ctx, "https://yandex.ru/maps/org/1/reviews/")
	require.NoError(t, err)
	assert.NoError(t, p.WaitPresent(ctx, "h1.orgpage-header-view__header", 0))
	assert.Equal(t, 2, site.Visits(1))
}

func TestPageVolatileCardLeavesTheDOM(t *testing.T) {
	ctx := context.Background()
	site := NewSite(map[int64]*Org{
		3: {Name: "Shop", Reviews: []Review{{Name: "A"}, {Name: "B"}, {Name: "C"}}, Volatile: map[int]int{2: 1}},
	})
	p := site.NewPage()
	_, err := p.Navigate(ctx, "https://yandex.ru/maps/org/3/reviews/")
	require.NoError(t, err)

	second := cardSelector + "[aria-posinset='2']"
	require.NoError(t, p.WaitPresent(ctx, second, 0))
	assert.ErrorIs(t, p.WaitPresent(ctx, second, 0), browser.ErrNotFound)

	ordinals, err := p.Attributes(ctx, cardSelector, "aria-posinset")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ordinals)

	// a fresh navigation renders the full list again
	_, err = p.Navigate(ctx, "https://yandex.ru/maps/org/3/reviews/")
	require.NoError(t, err)
	assert.NoError(t, p.WaitPresent(ctx, second, 0))
}
