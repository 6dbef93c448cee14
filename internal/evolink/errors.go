package evolink

import "fmt"

var (
	// ErrMissingAPIKey is returned before any network call when the vendor
	// credential was not configured.
	ErrMissingAPIKey = fmt.Errorf("evolink: missing API key")
)

// ValidationError reports a malformed or out-of-range generation request.
// It is raised before the vendor is contacted and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// VendorError reports a non-2xx HTTP response or a 2xx response carrying an
// embedded vendor error code. RawBody keeps the unparsed response for
// diagnostics. Vendor errors are assumed deterministic and are not retried.
type VendorError struct {
	StatusCode int
	Code       int
	Message    string
	RawBody    string
}

func (e *VendorError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("evolink error: %s (http %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("evolink error: http %d", e.StatusCode)
}

// NetworkError reports a transport-level failure after all retries were
// exhausted.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("evolink request failed after %d attempts: %s", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
