package vault

import "fmt"

// ConnectionError covers timeouts and refused connections, the two
// failures that mean the vault service is unreachable rather than
// unhappy.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string { return e.Reason }
func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError is a 401 from the vault service.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "Authentication failed (401). Check your vault API key."
}
func (e *AuthError) Unwrap() error { return e.Err }

// APIError is any other non-success HTTP status. 404 is special-cased by
// the tool layer into a model-visible "not found" message.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 404 {
		return fmt.Sprintf("Resource not found (404) at '%s'", e.Path)
	}
	return fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Body)
}

// TransportError is the catch-all for request failures that are neither
// a timeout, a refused connection, nor an HTTP status.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("An unexpected request error occurred: %v", e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }
