// Package ratelimit paces navigations to the review pages.
//
// A single SlidingWindow is shared by every worker of a run so that the
// configured requests-per-minute budget holds for the process as a whole,
// independent of how many browser sessions are open.
//
//	limiter := ratelimit.New(cfg.Scrape.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
