package provider

import "fmt"

// ProviderError is returned for any non-2xx response from the mail API. The
// client itself never retries; callers decide whether the pass is retried on
// the next trigger.
type ProviderError struct {
	StatusCode int
	Body       string
	Operation  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth retrying on a later pass.
// 4xx responses other than 429 indicate a caller or credential problem.
func (e *ProviderError) Retryable() bool {
	if e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}
