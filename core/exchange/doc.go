// Package exchange allocates interconnector capacity between zones by price
// differential.
//
// The allocation is greedy. For every hour independently it picks the single
// link with the largest absolute price difference that still has headroom and
// a non-zero volume bound, moves min(exporter surplus, headroom, importer
// deficit) from the cheaper zone to the dearer one, and repeats in further
// passes until nothing more can move or the pass budget is spent. A zone
// with a Margin only offers the spare capacity priced below its neighbour,
// and only takes what displaces output priced above it, so every volume
// moved can actually be produced on one side and consumed on the other. Prices are
// held fixed for the whole round, so the result is not a joint optimum across
// links; the outer convergence loop is what lets prices react to the flows.
package exchange
