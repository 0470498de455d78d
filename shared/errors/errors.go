package errors

// ErrorWithStatusCode is the boundary error type: handlers and the store
// client map it straight to/from an HTTP status. Errors without a status
// code are treated as internal (500) at the boundary.
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}
