package notion

import "fmt"

// PersistenceError reports a rejected or failed page write
type PersistenceError struct {
	StatusCode int    // HTTP status, 0 when the request never got a response
	Code       string // Notion error code, e.g. "unauthorized" or "validation_error"
	Message    string
	Err        error
}

func (e *PersistenceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Code != "":
		return fmt.Sprintf("notion API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("notion API error (status %d): %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return "notion request failed: " + e.Err.Error()
	default:
		return "notion request failed: " + e.Message
	}
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
