// Package retry runs operations that can fail transiently with bounded,
// cancellable backoff.
//
// It backs the cleanup of browser profile directories, which can stay locked
// for a moment after the browser process exits, and the launch of new
// browser sessions.
//
//	err := retry.Do(func() error {
//		return os.RemoveAll(dir)
//	}, &retry.Config{
//		MaxAttempts: 5,
//		Backoff:     &retry.ConstantBackoff{Delay: 200 * time.Millisecond},
//		RetryIf:     func(error) bool { return true },
//		Context:     ctx,
//	})
//
// Wait is also the cancellable sleep used by the pacing policies.
package retry
