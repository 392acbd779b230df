// Package market couples zones through interconnectors.
//
// A zone is either active, dispatching its own merit order, or a reference
// zone that only offers a fixed price curve. An Area holds the zones and
// their links and drives the convergence loop: every zone is first
// calculated in isolation, the links are then enabled, and each coupling
// round exchanges capacity on a read-only snapshot of the previous round
// before injecting the resulting flows and neighbour prices into every
// zone's interconnector legs and recalculating. The number of rounds is
// fixed by the caller; there is no automatic convergence detection.
package market
