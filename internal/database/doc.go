// Package database provides connection pool management for the PostgreSQL
// or TimescaleDB instance that stores the connection event journal.
package database
