package models

import (
	"encoding/json"
	"time"
)

// ReviewRecord is one review card as read from the page
type ReviewRecord struct {
	AuthorName  *string    `json:"name"`
	AvatarRef   *string    `json:"icon_href"`
	PublishedAt *time.Time `json:"date"`
	BodyText    *string    `json:"text"`
	StarRating  float64    `json:"stars"`
	OwnerReply  *string    `json:"answer"`
}

// CompanyInfo is the aggregate rating block of an organisation
type CompanyInfo struct {
	Name          *string `json:"name"`
	AverageRating float64 `json:"rating"`
	RatingCount   int     `json:"count_rating"`
	StarRating    float64 `json:"stars"`
}

// Result is the outcome of one extraction call. Exactly one of the shapes
// {info, reviews}, {info}, {reviews} or {error} is populated.
type Result struct {
	CompanyInfo    *CompanyInfo   `json:"company_info,omitempty"`
	CompanyReviews []ReviewRecord `json:"company_reviews,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// MarshalJSON emits only the populated shape. Unlike omitempty it keeps an
// empty, non-nil review list so "no reviews" stays distinguishable from
// "reviews not requested".
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(map[string]string{"error": r.Error})
	}
	out := make(map[string]interface{}, 2)
	if r.CompanyInfo != nil {
		out["company_info"] = r.CompanyInfo
	}
	if r.CompanyReviews != nil {
		out["company_reviews"] = r.CompanyReviews
	}
	return json.Marshal(out)
}

// Failed reports whether the result carries an error
func (r Result) Failed() bool {
	return r.Error != ""
}

// Mode selects which parts of the page end up in a Result
type Mode string

const (
	ModeAll     Mode = "all"
	ModeInfo    Mode = "info"
	ModeReviews Mode = "reviews"
)

// IncludesInfo reports whether company info is part of the output
func (m Mode) IncludesInfo() bool {
	return m == ModeAll || m == ModeInfo || m == ""
}

// IncludesReviews reports whether reviews are part of the output
func (m Mode) IncludesReviews() bool {
	return m == ModeAll || m == ModeReviews || m == ""
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	switch m {
	case ModeAll, ModeInfo, ModeReviews:
		return true
	}
	return false
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
