package osc

import (
	"fmt"
	"strings"
)

// Message is one OSC message: an address and an ordered argument list.
type Message struct {
	Address   string
	Arguments []Argument
}

// NewMessage builds a message for the given address and arguments.
func NewMessage(address string, args ...Argument) *Message {
	return &Message{Address: address, Arguments: args}
}

// String returns a human-readable representation of the message.
func (m *Message) String() string {
	parts := make([]string, len(m.Arguments))
	for i, arg := range m.Arguments {
		parts[i] = arg.String()
	}
	return fmt.Sprintf("Message{Address:%q, Arguments:[%s]}", m.Address, strings.Join(parts, " "))
}

// ValidateAddress checks that an address is usable on the wire.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("empty address")
	}
	if !strings.HasPrefix(address, "/") {
		return fmt.Errorf("address must start with '/': %q", address)
	}
	if strings.ContainsRune(address, 0) {
		return fmt.Errorf("address contains a null byte: %q", address)
	}
	return nil
}

// MatchAddress reports whether an address pattern matches a concrete message
// address. Two forms are supported: exact equality, and a trailing '*' that
// matches any address sharing the preceding prefix. The rest of the OSC
// pattern syntax ('?', '[]', '{}') is not used by the bridge and is not
// implemented.
func MatchAddress(pattern, address string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(address, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == address
}
