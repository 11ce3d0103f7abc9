// Package resilience groups the fault-tolerance helpers used around the
// relay's external calls.
//
//   - circuitbreaker: sony/gobreaker wrappers for the Meta Graph API and the Telegram Bot API
//   - retry: bounded exponential backoff, used both inside the Graph adapter
//     (400ms doubling on 429/5xx) and around whole processing attempts
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.GraphAPIConfig())
//	media, err := circuitbreaker.Call(cb, func() (*entity.Media, error) {
//	    return fetch(ctx)
//	})
//
//	err := retry.WithBackoff(ctx, retry.GraphAPIConfig(), func() error {
//	    return performOperation()
//	})
package resilience
