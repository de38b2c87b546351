package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	return code == 429 || code >= 500
}

// ExponentialBackoff computes a deterministic capped backoff duration.
// A zero cap disables capping.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if cap > 0 && d >= cap {
			return cap
		}
	}
	return d
}
