// Package domain holds the board's value types and the closed catalogs of
// sensors and actuators shared by the sampler, the dispatcher and the wire
// envelopes.
package domain
