// Package server implements the UDP server for receiving OSC packets and the
// HTTP API for monitoring. It handles concurrent packet processing, decodes
// messages and bundles, and routes each message to the handler registered
// for its address pattern.
package server
