package market

import (
	"time"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/exchange"
	"github.com/kilianp07/meurit/core/metrics"
)

// RoundResult is what one round leaves behind: prices after the round's
// calculation and the cumulative link flows that produced them.
type RoundResult struct {
	Round  int
	Phase  Phase
	Prices map[string]curve.Curve
	Flows  exchange.Flows
	// Table and ExchangePrices are empty for the isolated round.
	Table          exchange.Table
	ExchangePrices map[string]curve.Curve
	Passes         int

	ZoneSummaries []metrics.ZoneSummary
	LinkSummaries []metrics.LinkSummary
}

func (a *Area) collect(round int, phase Phase, out *exchange.Outcome) (*RoundResult, error) {
	rr := &RoundResult{
		Round:  round,
		Phase:  phase,
		Prices: make(map[string]curve.Curve, len(a.zones)),
		Flows:  a.flows.Clone(),
	}
	for _, z := range a.zones {
		p, err := z.PriceCurve()
		if err != nil {
			return nil, err
		}
		rr.Prices[z.Name()] = p
		rr.ZoneSummaries = append(rr.ZoneSummaries, metrics.ZoneSummary{Zone: z.Name(), Price: p.Summarize()})
	}
	selected := map[string]int{}
	if out != nil {
		rr.Table = out.Table
		rr.ExchangePrices = out.Prices
		rr.Passes = out.Passes
		for _, row := range out.Table {
			if row.Selected() {
				selected[row.Link]++
			}
		}
	}
	for _, l := range a.links {
		rr.LinkSummaries = append(rr.LinkSummaries, metrics.LinkSummary{
			Link:     l.Key,
			Volume:   rr.Flows[l.Key].Summarize(),
			Selected: selected[l.Key],
		})
	}
	return rr, nil
}

// PriceSummary returns the price summary of a zone.
func (r *RoundResult) PriceSummary(zone string) (curve.Summary, bool) {
	for _, s := range r.ZoneSummaries {
		if s.Zone == zone {
			return s.Price, true
		}
	}
	return curve.Summary{}, false
}

// VolumeSummary returns the flow summary of a link.
func (r *RoundResult) VolumeSummary(link string) (curve.Summary, bool) {
	for _, s := range r.LinkSummaries {
		if s.Link == link {
			return s.Volume, true
		}
	}
	return curve.Summary{}, false
}

// Event converts the result into a metrics event.
func (r *RoundResult) Event(runID string, at time.Time) metrics.RoundEvent {
	return metrics.RoundEvent{
		RunID:  runID,
		Round:  r.Round,
		Phase:  r.Phase.String(),
		Passes: r.Passes,
		Zones:  r.ZoneSummaries,
		Links:  r.LinkSummaries,
		Time:   at,
	}
}
