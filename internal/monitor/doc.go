// Package monitor periodically samples connection manager statistics.
//
// Each cycle logs one line per source and hands the sample to a Sink,
// which wsbeat uses to journal stats events.
package monitor
