package forward

import (
	"errors"

	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// Sender transmits one outbound message to a fixed destination.
type Sender interface {
	Send(address string, args []osc.Argument) error
}

// MultiSender fans a single send out to several senders, so secondary sinks
// (such as an MQTT tap) observe the stream alongside the primary UDP target.
// Every sender is attempted regardless of earlier failures; the errors are
// joined.
type MultiSender []Sender

// Send delivers the message to every composed sender.
func (m MultiSender) Send(address string, args []osc.Argument) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(address, args); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
