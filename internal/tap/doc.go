// Package tap mirrors outbound OSC messages to an MQTT broker as JSON
// documents. The tap is an optional debugging aid: it implements the same
// sender interface as the UDP client so it can be composed alongside the
// primary target in either bridge role.
package tap
