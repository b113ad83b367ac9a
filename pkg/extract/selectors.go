package extract

import "fmt"

// Page markup the engine relies on
const (
	ReviewCardSelector = ".business-reviews-card-view__review"
	OrdinalAttr        = "aria-posinset"
	HeaderSelector     = "h1.orgpage-header-view__header"

	expandSelector      = ".business-review-view__expand"
	replyExpandSelector = ".business-review-view__comment-expand"
	replyBubbleSelector = ".business-review-comment-content__bubble"

	authorNameSelector = "span[itemprop='name']"
	avatarSelector     = "div.user-icon-view__icon"
	dateSelector       = "meta[itemprop='datePublished']"
	bodySelector       = "span.spoiler-view__text-container"
	starsSelector      = "div.business-rating-badge-view__stars._spacing_normal > span"

	ratingBlockSelector = ".business-summary-rating-badge-view__rating-and-stars"
	ratingTextSelector  = ".business-summary-rating-badge-view__rating > span.business-summary-rating-badge-view__rating-text"
	ratingCountSelector = ".business-summary-rating-badge-view__rating-count > span.business-rating-amount-view._summary"
)

// OrdinalSelector addresses the review card with the given ordinal
func OrdinalSelector(ordinal int) string {
	return fmt.Sprintf("%s[%s='%d']", ReviewCardSelector, OrdinalAttr, ordinal)
}

func within(scope, sel string) string {
	return scope + " " + sel
}
