// Package forward transmits outbound OSC messages. It defines the Sender
// interface the bridge handlers emit through, a fire-and-forget UDP client,
// and a fan-out composition for attaching secondary sinks.
package forward
