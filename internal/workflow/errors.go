package workflow

import (
	"errors"

	"github.com/csheth/paperproducer/internal/api"
)

var (
	ErrEmptyQuery  = errors.New("query is empty")
	ErrNoQuerySpec = errors.New("no analyzed query to generate from")
	ErrNoReport    = errors.New("no report to regenerate")
)

// ValidationError is a local rejection; it never reaches the remote service.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// failureDetail prefers the service's own diagnostic text.
func failureDetail(err error) string {
	var svcErr *api.ServiceError
	if errors.As(err, &svcErr) && svcErr.Detail != "" {
		return svcErr.Detail
	}
	return err.Error()
}
