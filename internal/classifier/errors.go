package classifier

import "fmt"

// TransportError reports a non-2xx status from the classification endpoint.
// The body is not trusted on these responses.
type TransportError struct {
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("classification endpoint returned HTTP %d", e.StatusCode)
}

// ServerError carries the structured error message the backend returned in
// an otherwise successful response.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("classifier error: %s", e.Message)
}

// NetworkError wraps connectivity, timeout, and malformed-response failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("classification request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
