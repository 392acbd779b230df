// Package source reads the inputs of a simulation from disk.
//
// A participant source is a folder holding four tables: supply.csv,
// demand.csv, flex.csv and interconnectors.csv. Curve columns
// (availability_curve, load_profile and its legacy name
// path_to_load_profile) hold paths relative to the folder, each pointing at
// a file with one number per line. Reference zones read a single price
// column instead.
package source
