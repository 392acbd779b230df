package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/interconnector"
	"github.com/kilianp07/meurit/core/participant"
	"github.com/kilianp07/meurit/infra/logger"
)

// Table file names inside a participant source folder.
const (
	SupplyFile          = "supply.csv"
	DemandFile          = "demand.csv"
	FlexFile            = "flex.csv"
	InterconnectorsFile = "interconnectors.csv"
)

var flexKinds = map[string]participant.Kind{
	"generic": participant.GenericFlex,
	"storage": participant.StorageFlex,
}

// Folder is a participant source on disk.
type Folder struct {
	dir    string
	log    logger.Logger
	curves *curveLoader
}

// Option configures a Folder.
type Option func(*Folder)

// WithLogger sets the logger used for skipped rows.
func WithLogger(l logger.Logger) Option {
	return func(f *Folder) { f.log = l }
}

// Open checks that dir holds every table of a participant source.
func Open(dir string, opts ...Option) (*Folder, error) {
	for _, name := range []string{SupplyFile, DemandFile, FlexFile, InterconnectorsFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return nil, &MissingResourceError{Path: path}
		}
	}
	f := &Folder{
		dir:    dir,
		log:    logger.NopLogger{},
		curves: &curveLoader{dir: dir, cache: make(map[string]curve.Curve)},
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Dir returns the folder path.
func (f *Folder) Dir() string { return f.dir }

// Participants returns producers, users and flex in that order. Invalid rows
// are left out and reported together in the returned error as RowErrors;
// see SkippedRows.
func (f *Folder) Participants() ([]participant.Participant, error) {
	var out []participant.Participant
	var errs []error
	for _, read := range []func() ([]participant.Participant, error){f.Producers, f.Users, f.Flex} {
		ps, err := read()
		out = append(out, ps...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// Producers reads supply.csv.
func (f *Folder) Producers() ([]participant.Participant, error) {
	return f.participants(SupplyFile, f.producer)
}

// Users reads demand.csv. The user kind follows from the columns a row
// fills: consumption_share, then total_consumption, else a load curve.
func (f *Folder) Users() ([]participant.Participant, error) {
	return f.participants(DemandFile, f.user)
}

// Flex reads flex.csv.
func (f *Folder) Flex() ([]participant.Participant, error) {
	return f.participants(FlexFile, f.flex)
}

func (f *Folder) participants(file string, parse func(row, string) (participant.Participant, error)) ([]participant.Participant, error) {
	rows, err := readTable(filepath.Join(f.dir, file))
	if err != nil {
		return nil, err
	}
	var out []participant.Participant
	var errs []error
	for _, r := range rows {
		key := participant.NormalizeKey(r.str("key"))
		if key == "" {
			errs = append(errs, &RowError{File: file, Line: r.line, Err: errors.New(`"key" cannot be empty`)})
			continue
		}
		p, err := parse(r, key)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			errs = append(errs, &RowError{File: file, Line: r.line, Err: err})
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}

// common fills the columns shared by producers and flex.
func (f *Folder) common(r row, key string, p *participant.Participant) error {
	var err error
	fields := []struct {
		col string
		dst *float64
		def float64
	}{
		{"marginal_costs", &p.MarginalCost, 0},
		{"output_capacity_per_unit", &p.OutputCapacity, 0},
		{"input_capacity_per_unit", &p.InputCapacity, 0},
		{"number_of_units", &p.Units, 1},
		{"full_load_hours", &p.FullLoadHours, 0},
		{"fixed_costs_per_unit", &p.FixedCostsPerUnit, 0},
		{"fixed_om_costs_per_unit", &p.FixedOMCostsPerUnit, 0},
	}
	for _, fl := range fields {
		if *fl.dst, err = r.float(key, fl.col, fl.def); err != nil {
			return err
		}
	}
	// an empty cell leaves the unit fully available, an explicit 0 takes it offline
	if r.has("availability") {
		a, err := r.float(key, "availability", 1)
		if err != nil {
			return err
		}
		p.Availability = participant.Fraction(a)
	}
	if p.AvailabilityCurve, err = f.curves.load(r, key, "availability_curve"); err != nil {
		return err
	}
	if p.AvailabilityCurve, err = curve.NormalizeFractions(p.AvailabilityCurve); err != nil {
		return r.fail(key, "availability_curve", err)
	}
	if p.LoadProfile, err = f.curves.load(r, key, "load_profile"); err != nil {
		return err
	}
	return nil
}

func (f *Folder) producer(r row, key string) (participant.Participant, error) {
	p := participant.Participant{Key: key}
	kind, err := participant.ParseKind(r.str("type"))
	if err != nil || !(kind.AlwaysOn() || kind == participant.DispatchableProducer) {
		return p, r.fail(key, fmt.Sprintf("type should be one of MustRunProducer, VolatileProducer, CurveProducer, DispatchableProducer, got %q", r.str("type")), nil)
	}
	p.Kind = kind
	return p, f.common(r, key, &p)
}

func (f *Folder) user(r row, key string) (participant.Participant, error) {
	p := participant.Participant{Key: key}
	var err error
	if p.LoadProfile, err = f.curves.load(r, key, "load_profile"); err != nil {
		return p, err
	}
	switch {
	case r.has("consumption_share"):
		p.Kind = participant.ConsumptionShareUser
		p.ConsumptionShare, err = r.float(key, "consumption_share", 0)
	case r.has("total_consumption"):
		p.Kind = participant.TotalConsumptionUser
		p.TotalConsumption, err = r.float(key, "total_consumption", 0)
	default:
		p.Kind = participant.LoadCurveUser
	}
	return p, err
}

func (f *Folder) flex(r row, key string) (participant.Participant, error) {
	p := participant.Participant{Key: key}
	kind, ok := flexKinds[r.str("type")]
	if !ok {
		return p, r.fail(key, fmt.Sprintf("flex type %q is not supported", r.str("type")), nil)
	}
	p.Kind = kind
	if err := f.common(r, key, &p); err != nil {
		return p, err
	}
	volume, err := r.float(key, "volume_per_unit", 0)
	if err != nil {
		return p, err
	}
	p.VolumeMWh = volume * p.Units
	p.ConsumeFromDispatchables, err = r.bool(key, "consume_from_dispatchables", false)
	return p, err
}

// Interconnectors reads interconnectors.csv. Rows with in_service=false are
// skipped.
func (f *Folder) Interconnectors() ([]interconnector.Spec, error) {
	rows, err := readTable(filepath.Join(f.dir, InterconnectorsFile))
	if err != nil {
		return nil, err
	}
	var out []interconnector.Spec
	var errs []error
	for _, r := range rows {
		s, keep, err := f.interconnector(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !keep {
			f.log.Debugf("skipping out of service interconnector %s", s.Key)
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}

func (f *Folder) interconnector(r row) (interconnector.Spec, bool, error) {
	s := interconnector.Spec{Key: participant.NormalizeKey(r.str("key")), ToRegion: r.str("to_region")}
	if s.Key == "" {
		return s, false, r.fail("", `"key" cannot be empty`, nil)
	}
	var err error
	if s.InService, err = r.bool(s.Key, "in_service", true); err != nil {
		return s, false, err
	}
	if !s.InService {
		return s, false, nil
	}
	if s.Capacity, err = r.float(s.Key, "p_mw", 0); err != nil {
		return s, false, err
	}
	if s.Capacity < 0 {
		return s, false, r.fail(s.Key, "p_mw must be >= 0", nil)
	}
	if s.MarginalCost, err = r.float(s.Key, "marginal_costs", 0); err != nil {
		return s, false, err
	}
	if s.Scaling, err = r.float(s.Key, "scaling", 1); err != nil {
		return s, false, err
	}
	if s.AvailabilityCurve, err = f.curves.load(r, s.Key, "availability_curve"); err != nil {
		return s, false, err
	}
	if s.AvailabilityCurve, err = curve.NormalizeFractions(s.AvailabilityCurve); err != nil {
		return s, false, r.fail(s.Key, "availability_curve", err)
	}
	return s, true, nil
}
