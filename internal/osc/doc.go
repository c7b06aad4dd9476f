// Package osc implements encoding and decoding of Open Sound Control 1.0
// messages and bundles as carried in UDP datagrams. It models arguments as a
// tagged union over the OSC primitive types and provides the address pattern
// matching used to route inbound messages to handlers.
package osc
