package meritorder

import (
	"fmt"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/participant"
)

// State is the lifecycle position of an Order.
type State int

const (
	// Built means the dispatch stack reflects the cached records.
	Built State = iota
	// Calculated means a Result was produced and the Order is locked.
	Calculated
	// Stale means records changed after Calculate; Rebuild is required.
	Stale
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Calculated:
		return "calculated"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// CurveKind selects the participant field replaced by InjectCurve.
type CurveKind int

const (
	AvailabilityCurve CurveKind = iota
	LoadProfile
	CostCurve
)

func (k CurveKind) String() string {
	switch k {
	case AvailabilityCurve:
		return "availability"
	case LoadProfile:
		return "load_profile"
	case CostCurve:
		return "marginal_costs"
	default:
		return "unknown"
	}
}

// Order is a merit order: a cache of participant records plus the stack and
// result derived from them.
type Order struct {
	cache  *participant.Set
	stack  *stack
	state  State
	result *Result
}

// New returns an empty Order in the Built state.
func New() *Order {
	return &Order{cache: participant.NewSet()}
}

// State returns the current lifecycle state.
func (o *Order) State() State { return o.state }

// AddParticipant adds a producer, flexible participant or interconnector leg.
func (o *Order) AddParticipant(p participant.Participant) error {
	if p.Kind.IsUser() {
		return &participant.ValidationError{Key: p.Key, Field: "type", Reason: "is a user, use AddUser"}
	}
	return o.add(p)
}

// AddUser adds a demand participant.
func (o *Order) AddUser(p participant.Participant) error {
	if !p.Kind.IsUser() {
		return &participant.ValidationError{Key: p.Key, Field: "type", Reason: fmt.Sprintf("%s is not a user", p.Kind)}
	}
	return o.add(p)
}

// Add routes p to AddUser or AddParticipant based on its kind.
func (o *Order) Add(p participant.Participant) error {
	if p.Kind.IsUser() {
		return o.AddUser(p)
	}
	return o.AddParticipant(p)
}

func (o *Order) add(p participant.Participant) error {
	if err := o.cache.Add(p); err != nil {
		return err
	}
	o.touch()
	return nil
}

// Replace swaps the cached record that has the same key as p.
func (o *Order) Replace(p participant.Participant) error {
	found, err := o.cache.Replace(p)
	if !found {
		return &NotFoundError{Key: p.Key}
	}
	if err != nil {
		return err
	}
	o.touch()
	return nil
}

// InjectCurve replaces one curve field of the cached record identified by
// key. The Order must be rebuilt before the next Calculate.
func (o *Order) InjectCurve(key string, values curve.Curve, kind CurveKind) error {
	p, ok := o.cache.Get(key)
	if !ok {
		return &NotFoundError{Key: key}
	}
	if !values.Defined() {
		return &participant.ValidationError{Key: key, Field: kind.String(), Reason: "curve is empty"}
	}
	switch kind {
	case AvailabilityCurve:
		p.AvailabilityCurve = values
	case LoadProfile:
		p.LoadProfile = values
	case CostCurve:
		p.CostCurve = values
	default:
		return &participant.ValidationError{Key: key, Field: "curve", Reason: "kind is not supported"}
	}
	return o.Replace(p)
}

// Participant returns a copy of the cached record.
func (o *Order) Participant(key string) (participant.Participant, error) {
	p, ok := o.cache.Get(key)
	if !ok {
		return participant.Participant{}, &NotFoundError{Key: key}
	}
	return p, nil
}

// Participants returns copies of all cached records in insertion order.
func (o *Order) Participants() []participant.Participant { return o.cache.All() }

// Len returns the number of cached records.
func (o *Order) Len() int { return o.cache.Len() }

// Rebuild reconstructs the stack from the cached records, drops the last
// result and unlocks the Order.
func (o *Order) Rebuild() {
	o.stack = build(o.cache.All())
	o.result = nil
	o.state = Built
}

// CalculateOption tunes a Calculate call.
type CalculateOption func(*calculateOptions)

type calculateOptions struct {
	autoRebuild bool
}

// WithAutoRebuild lets Calculate rebuild a locked or stale Order once
// instead of failing with ErrStaleState.
func WithAutoRebuild() CalculateOption {
	return func(o *calculateOptions) { o.autoRebuild = true }
}

// Calculate dispatches every hour of the year and locks the Order.
func (o *Order) Calculate(opts ...CalculateOption) (*Result, error) {
	var co calculateOptions
	for _, opt := range opts {
		opt(&co)
	}
	if o.state != Built {
		if !co.autoRebuild {
			return nil, fmt.Errorf("%w (state %s)", ErrStaleState, o.state)
		}
		o.Rebuild()
	}
	if o.stack == nil {
		o.stack = build(o.cache.All())
	}
	o.result = o.stack.dispatch()
	o.state = Calculated
	return o.result, nil
}

// Result returns the last result. It fails unless the Order is Calculated.
func (o *Order) Result() (*Result, error) {
	if o.state != Calculated || o.result == nil {
		return nil, fmt.Errorf("%w (state %s)", ErrNotCalculated, o.state)
	}
	return o.result, nil
}

func (o *Order) touch() {
	switch o.state {
	case Calculated, Stale:
		o.state = Stale
	default:
		o.stack = nil
	}
}
