package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func starsDoc(t *testing.T, classes ...string) *goquery.Selection {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<div class="business-rating-badge-view__stars _spacing_normal">`)
	for _, c := range classes {
		b.WriteString(`<span class="business-rating-badge-view__star ` + c + `"></span>`)
	}
	b.WriteString(`</div>`)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	require.NoError(t, err)
	return doc.Find(starsSelector)
}

func TestCountStars(t *testing.T) {
	tests := []struct {
		name    string
		classes []string
		want    float64
	}{
		{"none", nil, 0},
		{"all empty", []string{"_empty", "_empty", "_empty", "_empty", "_empty"}, 0},
		{"three full", []string{"_full", "_full", "_full", "_empty", "_empty"}, 3},
		{"half", []string{"_full", "_full", "_full", "_full", "_half"}, 4.5},
		{"all full", []string{"_full", "_full", "_full", "_full", "_full"}, 5},
		{"extra spans ignored", []string{"_full", "_full", "_full", "_full", "_full", "_full", "_full"}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countStars(starsDoc(t, tt.classes...)))
		})
	}
}

func TestCountStarsMonotonic(t *testing.T) {
	prev := -1.0
	for filled := 0; filled <= 5; filled++ {
		classes := make([]string, 5)
		for i := range classes {
			classes[i] = "_empty"
			if i < filled {
				classes[i] = "_full"
			}
		}
		got := countStars(starsDoc(t, classes...))
		assert.Greater(t, got, prev)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 5.0)
		prev = got
	}
}

func TestParseRating(t *testing.T) {
	assert.Equal(t, 4.8, parseRating([]string{"4", ",", "8"}))
	assert.Equal(t, 5.0, parseRating([]string{"5"}))
	assert.Equal(t, 3.9, parseRating([]string{"3.9"}))
	assert.Equal(t, 4.2, parseRating([]string{" 4", ",", "2 "}))
	assert.Zero(t, parseRating(nil))
	assert.Zero(t, parseRating([]string{"нет"}))
}

func TestDigits(t *testing.T) {
	assert.Equal(t, 1234, digits("1 234 оценки"))
	assert.Equal(t, 87, digits("87 оценок"))
	assert.Zero(t, digits("нет оценок"))
}

func TestCSSURL(t *testing.T) {
	tests := []struct {
		style string
		want  string
		ok    bool
	}{
		{`background-image: url("https://avatars.mds.yandex.net/get-yapic/1/islands-68");`, "https://avatars.mds.yandex.net/get-yapic/1/islands-68", true},
		{`background-image: url('https://a/b.png')`, "https://a/b.png", true},
		{`background-image: url(https://a/c.png)`, "https://a/c.png", true},
		{`background-color: red`, "", false},
	}
	for _, tt := range tests {
		got, ok := cssURL(tt.style)
		assert.Equal(t, tt.ok, ok, tt.style)
		assert.Equal(t, tt.want, got, tt.style)
	}
}

func TestParseDate(t *testing.T) {
	got, ok := parseDate("2023-05-01T10:00:00.000Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC), *got)

	got, ok = parseDate("2021-12-31")
	require.True(t, ok)
	assert.Equal(t, 2021, got.Year())

	got, ok = parseDate("вчера")
	assert.False(t, ok)
	assert.Nil(t, got)
}
