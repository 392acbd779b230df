// Package meritorder builds a merit order from participant records and runs
// hourly economic dispatch over one simulated year.
//
// An Order owns the participant records. Calculate builds the dispatch stack
// from those records, dispatches every hour and locks the Order. Any change to
// the records after that leaves the Order Stale until Rebuild is called, so a
// Result is never computed from a mix of old and new records. Results are
// immutable and stay readable after the Order moves on.
package meritorder
