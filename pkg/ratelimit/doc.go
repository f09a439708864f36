// Package ratelimit paces requests to the Shopify Admin API.
//
// The paginator waits on a Limiter before every page request so long runs
// stay under the store's request budget:
//
//	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
//
// A rate of zero disables limiting.
package ratelimit
