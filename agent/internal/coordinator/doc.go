// Package coordinator is the background context of the agent.
//
// It owns the in-memory copy of the protection flag, drives the rule manager,
// ingests page reports and resets the daily counter at local midnight.
//
// Every mutation runs as a job on a single goroutine (Run), so counter
// read-modify-write sequences from concurrent page reports cannot lose
// increments. Reads of persisted stats go straight to the store.
package coordinator
