// Package broadcast fans operation envelopes out to real-time subscribers.
//
// The Registry is an actor: one goroutine owns the subscriber map and is driven
// by a command channel, so registration, removal and fan-out never race. Each
// message is serialized once and handed to every subscriber whose regexp filter
// matches the serialized body or the message name. Sinks must not block; the
// websocket Writer queues into a bounded buffer and disconnects itself when
// the buffer is full.
package broadcast
