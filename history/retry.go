package history

import "time"

// withRetry calls fn up to attempts times, sleeping delay between tries,
// and returns the first nil-error result. Used by the HTTP-backed
// secondary providers, whose transient failures are worth a few retries
// unlike the archive read path, which fails fast to the next ladder rung.
func withRetry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
