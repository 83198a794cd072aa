package transport

import "fmt"

// RemoteError represents a non-success response from the service: either a
// non-2xx HTTP status or a response body whose success flag is false.
type RemoteError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}
