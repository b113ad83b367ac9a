package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultJSONShapes(t *testing.T) {
	name := "Cafe"
	info := &CompanyInfo{Name: &name, AverageRating: 4.8, RatingCount: 12, StarRating: 4.5}

	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"error only", Result{Error: "possible block detected", CompanyInfo: info}, `{"error":"possible block detected"}`},
		{"info only", Result{CompanyInfo: info}, `{"company_info":{"name":"Cafe","rating":4.8,"count_rating":12,"stars":4.5}}`},
		{"empty reviews kept", Result{CompanyReviews: []ReviewRecord{}}, `{"company_reviews":[]}`},
		{"nothing", Result{}, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.result)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestReviewRecordJSONUsesNulls(t *testing.T) {
	when := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := ReviewRecord{BodyText: StringPtr("ok"), PublishedAt: &when, StarRating: 4}

	got, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":null,"icon_href":null,"date":"2023-05-01T10:00:00Z","text":"ok","stars":4,"answer":null}`, string(got))
}

func TestMode(t *testing.T) {
	assert.True(t, ModeAll.IncludesInfo())
	assert.True(t, ModeAll.IncludesReviews())
	assert.True(t, ModeInfo.IncludesInfo())
	assert.False(t, ModeInfo.IncludesReviews())
	assert.False(t, ModeReviews.IncludesInfo())
	assert.True(t, Mode("").IncludesReviews())
	assert.False(t, Mode("everything").Valid())
	assert.Nil(t, StringPtr(""))
}
