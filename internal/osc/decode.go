package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	bundleHeader = "#bundle"

	// maxBundleDepth bounds recursion on nested bundles so a crafted
	// datagram cannot exhaust the stack.
	maxBundleDepth = 8
)

// DecodePacket decodes one raw datagram into its messages. A plain message
// yields a single element; a #bundle is flattened into its member messages in
// order, recursively. Bundle time tags are ignored: every element is returned
// for immediate dispatch.
func DecodePacket(data []byte) ([]Message, error) {
	return decodePacket(data, 0)
}

func decodePacket(data []byte, depth int) ([]Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty packet")
	}
	if data[0] == '#' {
		return decodeBundle(data, depth)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	return []Message{*msg}, nil
}

// DecodeMessage decodes a single OSC message. A packet that ends right after
// the address decodes as a message with no arguments.
func DecodeMessage(data []byte) (*Message, error) {
	d := &decoder{data: data}

	address, err := d.readPaddedString()
	if err != nil {
		return nil, fmt.Errorf("failed to read address: %w", err)
	}
	if err := ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	msg := &Message{Address: address}
	if d.remaining() == 0 {
		return msg, nil
	}

	tags, err := d.readPaddedString()
	if err != nil {
		return nil, fmt.Errorf("failed to read type tag string: %w", err)
	}
	if !strings.HasPrefix(tags, ",") {
		return nil, fmt.Errorf("type tag string must start with ',': %q", tags)
	}

	msg.Arguments = make([]Argument, 0, len(tags)-1)
	for _, tag := range []byte(tags[1:]) {
		arg, err := d.readArgument(TypeTag(tag))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %q argument: %w", string(tag), err)
		}
		msg.Arguments = append(msg.Arguments, arg)
	}

	return msg, nil
}

func decodeBundle(data []byte, depth int) ([]Message, error) {
	if depth >= maxBundleDepth {
		return nil, fmt.Errorf("bundle nesting exceeds %d levels", maxBundleDepth)
	}

	d := &decoder{data: data}
	head, err := d.readPaddedString()
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle header: %w", err)
	}
	if head != bundleHeader {
		return nil, fmt.Errorf("invalid bundle header: %q", head)
	}
	// The 8-byte time tag is read and discarded.
	if _, err := d.readBytes(8); err != nil {
		return nil, fmt.Errorf("failed to read bundle time tag: %w", err)
	}

	var messages []Message
	for d.remaining() > 0 {
		size, err := d.readInt32()
		if err != nil {
			return nil, fmt.Errorf("failed to read bundle element size: %w", err)
		}
		if size < 0 || int(size) > d.remaining() {
			return nil, fmt.Errorf("bundle element size %d exceeds remaining %d bytes", size, d.remaining())
		}
		element, err := d.readBytes(int(size))
		if err != nil {
			return nil, err
		}
		nested, err := decodePacket(element, depth+1)
		if err != nil {
			return nil, fmt.Errorf("failed to decode bundle element: %w", err)
		}
		messages = append(messages, nested...)
	}

	return messages, nil
}

// decoder walks a packet with bounds checking.
type decoder struct {
	data []byte
	off  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if d.remaining() < n {
		return nil, fmt.Errorf("truncated packet: need %d bytes at offset %d, have %d", n, d.off, d.remaining())
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) readInt32() (int32, error) {
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (d *decoder) readInt64() (int64, error) {
	b, err := d.readBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// readPaddedString reads a null-terminated string and skips its padding to
// the next 4-byte boundary.
func (d *decoder) readPaddedString() (string, error) {
	rest := d.data[d.off:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at offset %d", d.off)
	}
	total := end + (4 - end%4)
	if total > len(rest) {
		return "", fmt.Errorf("string padding truncated at offset %d", d.off)
	}
	d.off += total
	return string(rest[:end]), nil
}

func (d *decoder) readArgument(tag TypeTag) (Argument, error) {
	switch tag {
	case TypeInt32:
		v, err := d.readInt32()
		if err != nil {
			return Argument{}, err
		}
		return Int32(v), nil
	case TypeInt64:
		v, err := d.readInt64()
		if err != nil {
			return Argument{}, err
		}
		return Int64(v), nil
	case TypeFloat32:
		b, err := d.readBytes(4)
		if err != nil {
			return Argument{}, err
		}
		return Float32(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case TypeFloat64:
		b, err := d.readBytes(8)
		if err != nil {
			return Argument{}, err
		}
		return Float64(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case TypeString:
		s, err := d.readPaddedString()
		if err != nil {
			return Argument{}, err
		}
		return String(s), nil
	case TypeBlob:
		size, err := d.readInt32()
		if err != nil {
			return Argument{}, err
		}
		if size < 0 {
			return Argument{}, fmt.Errorf("negative blob length: %d", size)
		}
		b, err := d.readBytes(int(size))
		if err != nil {
			return Argument{}, err
		}
		if _, err := d.readBytes(pad(int(size))); err != nil {
			return Argument{}, fmt.Errorf("blob padding truncated: %w", err)
		}
		blob := make([]byte, size)
		copy(blob, b)
		return Blob(blob), nil
	case TypeTrue:
		return Bool(true), nil
	case TypeFalse:
		return Bool(false), nil
	case TypeNil:
		return Nil(), nil
	default:
		return Argument{}, fmt.Errorf("unknown type tag: 0x%02x", byte(tag))
	}
}
