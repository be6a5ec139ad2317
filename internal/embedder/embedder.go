// Package embedder provides HTTP clients for external embedding services
// (OpenAI-compatible APIs and Ollama). Plain HTTP, no SDK dependencies.
//
// Failures are classified as retryable (network errors, timeouts, 429, 5xx)
// or permanent (other 4xx such as input-too-long) so callers can retry
// transient failures exactly once.
package embedder

import (
	"context"
	"errors"
	"fmt"
)

// Embedder converts text into fixed-length embedding vectors. Deterministic
// for identical input within one model version. Implementations must be safe
// for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// StatusError reports a non-2xx response from the embedding backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("embedder: HTTP %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("embedder: HTTP %d", e.Code)
}

// IsRetryable reports whether the error is a transient failure worth one
// retry. Permanent failures (malformed input, input too long) are not, and
// neither is caller cancellation.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	// Timeouts and unclassified transport errors (connection refused, EOF)
	// are treated as transient.
	return true
}
