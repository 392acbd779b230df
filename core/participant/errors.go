package participant

import "fmt"

// ValidationError reports a malformed participant record.
type ValidationError struct {
	Key    string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Key == "" && e.Field == "":
		return "invalid participant: " + e.Reason
	case e.Key == "":
		return fmt.Sprintf("invalid participant: %s %s", e.Field, e.Reason)
	case e.Field == "":
		return fmt.Sprintf("participant %s: %s", e.Key, e.Reason)
	default:
		return fmt.Sprintf("participant %s: %s %s", e.Key, e.Field, e.Reason)
	}
}

func invalid(key, field, reason string) error {
	return &ValidationError{Key: key, Field: field, Reason: reason}
}
