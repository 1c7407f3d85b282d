package filters

import "fmt"

// ValidationError reports a filter map that cannot be translated into a query.
// It is always raised before the row source is touched.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("filter error in field %s: %s (got %v)", e.Field, e.Message, e.Value)
	}
	return "filter error in field " + e.Field + ": " + e.Message
}

func invalid(field, message string, value any) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}
