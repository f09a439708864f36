// Package retry runs an operation up to a fixed number of attempts with a
// pluggable backoff between them.
//
// Downloads use a constant delay:
//
//	err := retry.Do(func() error {
//		return fetchOnce(ctx, url, dest)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     &retry.ConstantBackoff{Delay: time.Second},
//		RetryIf:     func(error) bool { return true },
//		Context:     ctx,
//	})
//
// Page requests to Shopify use NewErrorTypeBackoff so a THROTTLED response
// waits longer than a dropped connection.
//
// No delay is taken after the final attempt; Do returns an *ExhaustedError
// wrapping the last failure as soon as the budget is spent.
package retry
