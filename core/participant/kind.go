package participant

import "fmt"

// Kind tags the variant of a participant record.
type Kind int

const (
	MustRunProducer Kind = iota
	VolatileProducer
	CurveProducer
	DispatchableProducer
	TotalConsumptionUser
	LoadCurveUser
	ConsumptionShareUser
	GenericFlex
	StorageFlex
	// ImportLeg is the virtual producer an interconnector adds to the
	// receiving zone.
	ImportLeg
	// ExportLeg is the virtual flexible consumer an interconnector adds to
	// the sending zone.
	ExportLeg
)

var kindNames = map[Kind]string{
	MustRunProducer:      "MustRunProducer",
	VolatileProducer:     "VolatileProducer",
	CurveProducer:        "CurveProducer",
	DispatchableProducer: "DispatchableProducer",
	TotalConsumptionUser: "TotalConsumptionUser",
	LoadCurveUser:        "LoadCurveUser",
	ConsumptionShareUser: "ConsumptionShareUser",
	GenericFlex:          "GenericFlex",
	StorageFlex:          "StorageFlex",
	ImportLeg:            "ImportLeg",
	ExportLeg:            "ExportLeg",
}

// String returns the canonical type name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind resolves a canonical type name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unsupported participant type %q", s)
}

// IsUser reports whether the kind is a demand participant.
func (k Kind) IsUser() bool {
	return k == TotalConsumptionUser || k == LoadCurveUser || k == ConsumptionShareUser
}

// AlwaysOn reports whether the kind is always fully dispatched and never
// sets the price.
func (k Kind) AlwaysOn() bool {
	return k == MustRunProducer || k == VolatileProducer || k == CurveProducer
}

// Dispatchable reports whether the kind sits in the ascending-cost supply stack.
func (k Kind) Dispatchable() bool {
	return k == DispatchableProducer || k == ImportLeg || k == StorageFlex
}

// Flexible reports whether the kind can take energy out of the system.
func (k Kind) Flexible() bool {
	return k == GenericFlex || k == StorageFlex || k == ExportLeg
}

// Leg reports whether the kind is an interconnector leg.
func (k Kind) Leg() bool { return k == ImportLeg || k == ExportLeg }

// Known reports whether k is a declared kind.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}
