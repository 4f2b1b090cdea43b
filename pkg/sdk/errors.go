package bioatlas

import "fmt"

// APIError is a non-2xx response from the service.
// Code and Message come from the error body when it parses; Code is empty
// for responses the server did not shape.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bioatlas: %s (%s, http %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("bioatlas: http %d: %s", e.Status, e.Message)
}
