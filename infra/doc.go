// Package infra holds the adapters of the simulator: participant sources,
// wholesale price downloads, metrics sinks, MQTT publishing, logging and
// error monitoring. They depend on the core packages, never the reverse.
package infra
