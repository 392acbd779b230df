package market

import "errors"

var (
	// ErrDuplicateZone is returned when two zones share a name.
	ErrDuplicateZone = errors.New("duplicate zone")
	// ErrDuplicateInterconnector is returned when a zone pair, or a key,
	// is linked twice.
	ErrDuplicateInterconnector = errors.New("duplicate interconnector")
	// ErrUnknownZone is returned for names that are not part of the area.
	ErrUnknownZone = errors.New("unknown zone")
	// ErrNoInterconnector is returned when two zones are not linked.
	ErrNoInterconnector = errors.New("no interconnector")
	// ErrPhase is returned when an operation does not fit the loop phase.
	ErrPhase = errors.New("invalid phase")
)
