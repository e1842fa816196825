package client

import (
	"context"
	"errors"
	"fmt"
)

// StatusError reports a non-success HTTP status from the agent host. It is
// the only transport-level failure surfaced to the operator as an error.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: agent host returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: agent host returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsCanceled reports whether err stems from a deliberate cancellation. Such
// errors are discarded silently, never shown to the operator.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
