package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// EncodeMessage serializes a message into OSC 1.0 wire format: the padded
// address string, the padded ","-prefixed type tag string, then the argument
// payloads in order, with all integers and floats big-endian.
func EncodeMessage(msg *Message) ([]byte, error) {
	if err := ValidateAddress(msg.Address); err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	tags := make([]byte, 0, len(msg.Arguments)+1)
	tags = append(tags, ',')
	for _, arg := range msg.Arguments {
		if !IsValidTag(arg.Tag) {
			return nil, fmt.Errorf("unsupported type tag: 0x%02x", byte(arg.Tag))
		}
		tags = append(tags, byte(arg.Tag))
	}

	buf := &bytes.Buffer{}
	writePaddedString(buf, msg.Address)
	writePaddedString(buf, string(tags))

	for i, arg := range msg.Arguments {
		if err := writeArgument(buf, arg); err != nil {
			return nil, fmt.Errorf("failed to encode argument %d: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}

// writePaddedString writes s followed by a null terminator, padded with
// further nulls to the next 4-byte boundary.
func writePaddedString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	for n := 4 - len(s)%4; n > 0; n-- {
		buf.WriteByte(0)
	}
}

// writeArgument writes the payload bytes for a single argument. T, F and N
// arguments carry no payload beyond their type tag.
func writeArgument(buf *bytes.Buffer, arg Argument) error {
	switch arg.Tag {
	case TypeInt32:
		return binary.Write(buf, binary.BigEndian, int32(arg.Int))
	case TypeInt64:
		return binary.Write(buf, binary.BigEndian, arg.Int)
	case TypeFloat32:
		return binary.Write(buf, binary.BigEndian, float32(arg.Float))
	case TypeFloat64:
		return binary.Write(buf, binary.BigEndian, arg.Float)
	case TypeString:
		if strings.ContainsRune(arg.Str, 0) {
			return fmt.Errorf("string argument contains a null byte")
		}
		writePaddedString(buf, arg.Str)
		return nil
	case TypeBlob:
		if err := binary.Write(buf, binary.BigEndian, int32(len(arg.Blob))); err != nil {
			return err
		}
		buf.Write(arg.Blob)
		for n := pad(len(arg.Blob)); n > 0; n-- {
			buf.WriteByte(0)
		}
		return nil
	case TypeTrue, TypeFalse, TypeNil:
		return nil
	default:
		return fmt.Errorf("unsupported type tag: 0x%02x", byte(arg.Tag))
	}
}

// pad returns the number of null bytes needed to align n to a 4-byte boundary.
func pad(n int) int {
	return (4 - n%4) % 4
}
