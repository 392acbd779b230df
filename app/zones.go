package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/meurit/config"
	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/interconnector"
	"github.com/kilianp07/meurit/core/market"
	"github.com/kilianp07/meurit/core/participant"
	"github.com/kilianp07/meurit/infra/logger"
	"github.com/kilianp07/meurit/infra/source"
	"github.com/kilianp07/meurit/infra/wholesale"
)

// ZoneSource is a participant folder prepared for one zone. Interconnector
// rows pointing at a simulated zone are kept aside as Links; every other
// row is already turned into static legs inside Participants.
type ZoneSource struct {
	Name         string
	Participants []participant.Participant
	Links        []interconnector.Spec
	Static       []interconnector.Spec
}

// ReadZoneSource reads dir for zone name. simulated resolves a to_region
// value to the name of a zone of the run, or "" when the region is not
// simulated. Invalid participant rows are logged and left out; a missing or
// unreadable table fails the zone.
func ReadZoneSource(name, dir string, simulated func(string) string, log logger.Logger) (*ZoneSource, error) {
	f, err := source.Open(dir, source.WithLogger(log))
	if err != nil {
		return nil, err
	}
	ps, err := f.Participants()
	skipped, err := source.SkippedRows(err)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", name, err)
	}
	for _, row := range skipped {
		log.Warnf("zone %s: skipping invalid row %v", name, row)
	}
	specs, err := f.Interconnectors()
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", name, err)
	}
	zs := &ZoneSource{Name: name, Participants: ps}
	for _, s := range specs {
		if to := simulated(s.ToRegion); to != "" && to != name {
			s.ToRegion = to
			zs.Links = append(zs.Links, s)
			continue
		}
		imp, exp := interconnector.StaticLegs(s)
		zs.Participants = append(zs.Participants, imp, exp)
		zs.Static = append(zs.Static, s)
	}
	return zs, nil
}

// buildArea creates every configured zone, then the configured links, then
// the links declared by source folders. A zone pair is linked once; the
// first declaration wins.
func buildArea(ctx context.Context, cfg *config.Config, runID string, log logger.Logger) (*market.Area, error) {
	names := make(map[string]string, len(cfg.Zones))
	for _, z := range cfg.Zones {
		names[strings.ToLower(z.Name)] = z.Name
	}
	simulated := func(region string) string { return names[strings.ToLower(strings.TrimSpace(region))] }

	var zoneOpts []market.ZoneOption
	if cfg.Simulation.AutoRebuild {
		zoneOpts = append(zoneOpts, market.WithAutoRebuild())
	}

	var (
		zones   []market.Zone
		pending []*ZoneSource
	)
	for _, zc := range cfg.Zones {
		if zc.Reference() {
			prices, err := referencePrices(ctx, zc, log)
			if err != nil {
				return nil, fmt.Errorf("zone %s: %w", zc.Name, err)
			}
			z, err := market.NewReferenceZone(zc.Name, prices)
			if err != nil {
				return nil, fmt.Errorf("zone %s: %w", zc.Name, err)
			}
			zones = append(zones, z)
			continue
		}
		zs, err := ReadZoneSource(zc.Name, zc.Source, simulated, log)
		if err != nil {
			return nil, err
		}
		z, err := market.NewActiveZone(zc.Name, zs.Participants, zoneOpts...)
		if err != nil {
			return nil, err
		}
		log.Infof("zone %s: %d participants, %d static links, %d coupled links", zc.Name, len(zs.Participants), len(zs.Static), len(zs.Links))
		zones = append(zones, z)
		pending = append(pending, zs)
	}

	area, err := market.NewArea(zones, market.WithMaxPasses(cfg.Simulation.MaxPasses), market.WithRunID(runID))
	if err != nil {
		return nil, err
	}
	for _, ic := range cfg.Interconnectors {
		opts, err := linkOptions(ic)
		if err != nil {
			return nil, err
		}
		if _, err := area.Connect(ic.From, ic.To, ic.CapacityMW, opts...); err != nil {
			return nil, err
		}
	}
	for _, zs := range pending {
		for _, s := range zs.Links {
			if linked(area, zs.Name, s.ToRegion) {
				log.Debugf("zone %s: %s duplicates an existing link to %s", zs.Name, s.Key, s.ToRegion)
				continue
			}
			opts := []interconnector.Option{interconnector.WithKey(s.Key), interconnector.WithScaling(s.Scaling)}
			if s.AvailabilityCurve.Defined() {
				opts = append(opts, interconnector.WithImportAvailabilityCurve(s.AvailabilityCurve))
			}
			if _, err := area.Connect(zs.Name, s.ToRegion, s.Capacity, opts...); err != nil {
				return nil, fmt.Errorf("zone %s: %w", zs.Name, err)
			}
		}
	}
	return area, nil
}

func referencePrices(ctx context.Context, zc config.ZoneConfig, log logger.Logger) (curve.Curve, error) {
	if zc.Wholesale == nil {
		return source.ReadReferenceCurve(zc.ReferenceCurve, log)
	}
	w := zc.Wholesale
	opts := []wholesale.Option{wholesale.WithLogger(log), wholesale.WithWindow(w.Window)}
	if w.BaseURL != "" {
		opts = append(opts, wholesale.WithBaseURL(w.BaseURL))
	}
	client := wholesale.NewClient(wholesale.AuthConfig{ClientID: w.ClientID, ClientSecret: w.ClientSecret, AuthURL: w.AuthURL}, opts...)
	start, end := w.Period()
	log.Infof("zone %s: fetching wholesale prices from %s to %s", zc.Name, start.Format(time.RFC3339), end.Format(time.RFC3339))
	return client.Prices(ctx, start, end)
}

func linked(area *market.Area, a, b string) bool {
	for _, l := range area.Interconnectors() {
		if l.Connects(a, b) {
			return true
		}
	}
	return false
}

func linkOptions(c config.InterconnectorConfig) ([]interconnector.Option, error) {
	var opts []interconnector.Option
	if c.Key != "" {
		opts = append(opts, interconnector.WithKey(c.Key))
	}
	if c.Scaling != nil {
		opts = append(opts, interconnector.WithScaling(*c.Scaling))
	}
	if c.ImportAvailability != nil {
		opts = append(opts, interconnector.WithImportAvailability(*c.ImportAvailability))
	}
	if c.ExportAvailability != nil {
		opts = append(opts, interconnector.WithExportAvailability(*c.ExportAvailability))
	}
	if c.ImportAvailabilityCurve != "" {
		cv, err := source.ReadAvailabilityCurve(c.ImportAvailabilityCurve)
		if err != nil {
			return nil, fmt.Errorf("interconnector %s: %w", c.Key, err)
		}
		opts = append(opts, interconnector.WithImportAvailabilityCurve(cv))
	}
	if c.ExportAvailabilityCurve != "" {
		cv, err := source.ReadAvailabilityCurve(c.ExportAvailabilityCurve)
		if err != nil {
			return nil, fmt.Errorf("interconnector %s: %w", c.Key, err)
		}
		opts = append(opts, interconnector.WithExportAvailabilityCurve(cv))
	}
	return opts, nil
}
