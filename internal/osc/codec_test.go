package osc

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestEncodeMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      *Message
		expected []byte
	}{
		{
			name: "single float32",
			msg:  NewMessage("/wek/outputs", Float32(0.5)),
			expected: []byte{
				'/', 'w', 'e', 'k', '/', 'o', 'u', 't', 'p', 'u', 't', 's', 0, 0, 0, 0, // address, 4-byte aligned
				',', 'f', 0, 0, // type tags
				0x3F, 0x00, 0x00, 0x00, // 0.5 as big-endian float32
			},
		},
		{
			name: "mixed argument types",
			msg:  NewMessage("/a", Int32(7), String("hi"), Blob([]byte{1, 2, 3}), Bool(true)),
			expected: []byte{
				'/', 'a', 0, 0,
				',', 'i', 's', 'b', 'T', 0, 0, 0,
				0x00, 0x00, 0x00, 0x07, // int32 7
				'h', 'i', 0, 0, // string "hi"
				0x00, 0x00, 0x00, 0x03, 1, 2, 3, 0, // blob: length, content, padding
			},
		},
		{
			name: "no arguments",
			msg:  NewMessage("/ping"),
			expected: []byte{
				'/', 'p', 'i', 'n', 'g', 0, 0, 0,
				',', 0, 0, 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeMessage(tt.msg)
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if !bytes.Equal(data, tt.expected) {
				t.Errorf("Encoded bytes mismatch:\n  got:      % x\n  expected: % x", data, tt.expected)
			}
		})
	}
}

func TestEncodeMessageErrors(t *testing.T) {
	tests := []struct {
		name     string
		msg      *Message
		errorMsg string
	}{
		{
			name:     "empty address",
			msg:      NewMessage(""),
			errorMsg: "empty address",
		},
		{
			name:     "address without leading slash",
			msg:      NewMessage("wek/outputs"),
			errorMsg: "must start with '/'",
		},
		{
			name:     "unsupported type tag",
			msg:      NewMessage("/a", Argument{Tag: 'z'}),
			errorMsg: "unsupported type tag",
		},
		{
			name:     "string argument with null byte",
			msg:      NewMessage("/a", String("bad\x00string")),
			errorMsg: "null byte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeMessage(tt.msg)
			if err == nil {
				t.Errorf("Expected error but got none")
			} else if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectError bool
		errorMsg    string
		validate    func(*Message) bool
	}{
		{
			name: "single float32",
			data: []byte{
				'/', 'p', 'a', 'r', 's', 'e', 'd', '/', 'o', 'u', 't', 'p', 'u', 't', '-', '1', 0, 0, 0, 0,
				',', 'f', 0, 0,
				0x3D, 0xCC, 0xCC, 0xCD, // 0.1 as big-endian float32
			},
			validate: func(m *Message) bool {
				return m.Address == "/parsed/output-1" &&
					len(m.Arguments) == 1 &&
					m.Arguments[0].Equal(Float32(0.1))
			},
		},
		{
			name: "no type tag string decodes as zero arguments",
			data: []byte{'/', 'p', 'i', 'n', 'g', 0, 0, 0},
			validate: func(m *Message) bool {
				return m.Address == "/ping" && len(m.Arguments) == 0
			},
		},
		{
			name: "empty type tag list",
			data: []byte{'/', 'p', 'i', 'n', 'g', 0, 0, 0, ',', 0, 0, 0},
			validate: func(m *Message) bool {
				return m.Address == "/ping" && len(m.Arguments) == 0
			},
		},
		{
			name:        "empty data",
			data:        []byte{},
			expectError: true,
			errorMsg:    "failed to read address",
		},
		{
			name:        "unterminated address",
			data:        []byte{'/', 'a', 'b', 'c'},
			expectError: true,
			errorMsg:    "unterminated string",
		},
		{
			name:        "address padding truncated",
			data:        []byte{'/', 'a', 'b', 'c', 'd', 0},
			expectError: true,
			errorMsg:    "padding truncated",
		},
		{
			name:        "address without leading slash",
			data:        []byte{'a', 'b', 0, 0},
			expectError: true,
			errorMsg:    "invalid address",
		},
		{
			name: "type tag string without comma",
			data: []byte{
				'/', 'a', 0, 0,
				'f', 'f', 0, 0,
			},
			expectError: true,
			errorMsg:    "must start with ','",
		},
		{
			name: "unknown type tag",
			data: []byte{
				'/', 'a', 0, 0,
				',', 'z', 0, 0,
			},
			expectError: true,
			errorMsg:    "unknown type tag",
		},
		{
			name: "truncated int32 argument",
			data: []byte{
				'/', 'a', 0, 0,
				',', 'i', 0, 0,
				0x00, 0x01,
			},
			expectError: true,
			errorMsg:    "truncated packet",
		},
		{
			name: "blob padding truncated",
			data: []byte{
				'/', 'b', 0, 0,
				',', 'b', 0, 0,
				0x00, 0x00, 0x00, 0x03, 1, 2, 3,
			},
			expectError: true,
			errorMsg:    "blob padding truncated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := DecodeMessage(tt.data)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if tt.validate != nil && !tt.validate(result) {
					t.Errorf("Validation failed for result: %v", result)
				}
			}
		})
	}
}

func TestDecodePacket(t *testing.T) {
	msg1 := mustEncode(t, NewMessage("/parsed/output-1", Float32(0.1)))
	msg2 := mustEncode(t, NewMessage("/parsed/output-2", Float32(0.2)))

	t.Run("plain message", func(t *testing.T) {
		messages, err := DecodePacket(msg1)
		if err != nil {
			t.Fatalf("Expected no error but got: %v", err)
		}
		if len(messages) != 1 {
			t.Fatalf("Expected 1 message, got %d", len(messages))
		}
		if messages[0].Address != "/parsed/output-1" {
			t.Errorf("Expected address /parsed/output-1, got %s", messages[0].Address)
		}
	})

	t.Run("bundle flattens in order", func(t *testing.T) {
		bundle := buildBundle(t, msg1, msg2)

		messages, err := DecodePacket(bundle)
		if err != nil {
			t.Fatalf("Expected no error but got: %v", err)
		}
		if len(messages) != 2 {
			t.Fatalf("Expected 2 messages, got %d", len(messages))
		}
		if messages[0].Address != "/parsed/output-1" || messages[1].Address != "/parsed/output-2" {
			t.Errorf("Unexpected message order: %s, %s", messages[0].Address, messages[1].Address)
		}
	})

	t.Run("nested bundle", func(t *testing.T) {
		inner := buildBundle(t, msg2)
		outer := buildBundle(t, msg1, inner)

		messages, err := DecodePacket(outer)
		if err != nil {
			t.Fatalf("Expected no error but got: %v", err)
		}
		if len(messages) != 2 {
			t.Fatalf("Expected 2 messages, got %d", len(messages))
		}
		if messages[1].Address != "/parsed/output-2" {
			t.Errorf("Expected nested message last, got %s", messages[1].Address)
		}
	})

	t.Run("excessive bundle nesting", func(t *testing.T) {
		packet := msg1
		for i := 0; i < maxBundleDepth+1; i++ {
			packet = buildBundle(t, packet)
		}

		_, err := DecodePacket(packet)
		if err == nil {
			t.Errorf("Expected error but got none")
		} else if !strings.Contains(err.Error(), "bundle nesting exceeds") {
			t.Errorf("Expected nesting error, got: %v", err)
		}
	})

	t.Run("invalid bundle header", func(t *testing.T) {
		_, err := DecodePacket([]byte{'#', 'b', 'o', 'g', 'u', 's', 0, 0})
		if err == nil {
			t.Errorf("Expected error but got none")
		} else if !strings.Contains(err.Error(), "invalid bundle header") {
			t.Errorf("Expected bundle header error, got: %v", err)
		}
	})

	t.Run("bundle element size exceeds packet", func(t *testing.T) {
		bundle := buildBundle(t, msg1)
		// Inflate the first element's size field past the packet end.
		binary.BigEndian.PutUint32(bundle[16:20], 9999)

		_, err := DecodePacket(bundle)
		if err == nil {
			t.Errorf("Expected error but got none")
		} else if !strings.Contains(err.Error(), "exceeds remaining") {
			t.Errorf("Expected element size error, got: %v", err)
		}
	})

	t.Run("empty packet", func(t *testing.T) {
		_, err := DecodePacket(nil)
		if err == nil {
			t.Errorf("Expected error but got none")
		} else if !strings.Contains(err.Error(), "empty packet") {
			t.Errorf("Expected empty packet error, got: %v", err)
		}
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := NewMessage("/all/types",
		Int32(-1),
		Int64(1<<40),
		Float32(0.1),
		Float64(0.25),
		String("str"),
		Blob([]byte{9, 8, 7, 6, 5}),
		Bool(true),
		Bool(false),
		Nil(),
	)

	data, err := EncodeMessage(original)
	if err != nil {
		t.Fatalf("Failed to encode message: %v", err)
	}

	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}

	if decoded.Address != original.Address {
		t.Errorf("Expected address %q, got %q", original.Address, decoded.Address)
	}
	if len(decoded.Arguments) != len(original.Arguments) {
		t.Fatalf("Expected %d arguments, got %d", len(original.Arguments), len(decoded.Arguments))
	}
	for i, arg := range original.Arguments {
		if !decoded.Arguments[i].Equal(arg) {
			t.Errorf("Argument %d mismatch: expected %v, got %v", i, arg, decoded.Arguments[i])
		}
	}
}

// Helper functions for tests

func mustEncode(t *testing.T, msg *Message) []byte {
	t.Helper()

	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("Failed to encode message %v: %v", msg, err)
	}
	return data
}

// buildBundle wraps the given encoded packets into a #bundle with an
// immediate-dispatch time tag.
func buildBundle(t *testing.T, elements ...[]byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	writePaddedString(buf, "#bundle")

	var timeTag [8]byte
	binary.BigEndian.PutUint64(timeTag[:], 1)
	buf.Write(timeTag[:])

	for _, element := range elements {
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(element)))
		buf.Write(size[:])
		buf.Write(element)
	}
	return buf.Bytes()
}
