// Package record persists telemetry feed samples to SQLite so a
// capture session can be analyzed after the fact.
//
// A recording groups samples under a session; each sample stores one
// row per field. Use ":memory:" as the database path for throwaway
// recordings and tests.
package record
