package meritorder

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleState is returned by Calculate when the Order was already
	// calculated or its records changed since, and no rebuild was allowed.
	ErrStaleState = errors.New("merit order is stale, rebuild required")
	// ErrNotCalculated is returned when results are requested before Calculate.
	ErrNotCalculated = errors.New("merit order not calculated")
	// ErrNegativeHour is returned for hour lookups below zero.
	ErrNegativeHour = errors.New("hour cannot be negative")
	// ErrNoDispatchables is returned when the supply stack is empty.
	ErrNoDispatchables = errors.New("no dispatchable participants")
)

// NotFoundError reports a lookup or replacement for an unknown key.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("participant %s not found", e.Key)
}
