// Package journal records connection lifecycle events in PostgreSQL.
//
// A Recorder wraps a connection.Handler and turns every hook into an Event.
// Events flow through a GrowableBuffer to the Writer, which batches them
// into the connection_events table. Rows are append-only.
package journal
