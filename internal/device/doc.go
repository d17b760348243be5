// Package device owns the board's hardware handle.
//
// A Driver talks to the physical sensors and actuators; Port wraps exactly
// one Driver and serialises every call behind a single lock, so the sampler
// and concurrent request handlers never touch the bus at the same time.
package device
