package prowl

import "github.com/ternarybob/prowl/internal/transport"

// RemoteError is returned when the service reports a non-success response:
// a non-2xx HTTP status or a success:false body.
type RemoteError = transport.RemoteError

// RetryPolicy bounds retries for 502 gateway responses.
type RetryPolicy = transport.RetryPolicy

// DefaultRetryPolicy retries a 502 twice with short pauses.
func DefaultRetryPolicy() RetryPolicy {
	return transport.DefaultRetryPolicy()
}
