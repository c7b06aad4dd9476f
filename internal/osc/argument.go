package osc

import (
	"bytes"
	"fmt"
	"strconv"
)

// TypeTag identifies the wire type of a single message argument.
type TypeTag byte

// Argument type tags from the OSC 1.0 specification.
const (
	TypeInt32   TypeTag = 'i' // 32-bit big-endian signed integer
	TypeFloat32 TypeTag = 'f' // 32-bit big-endian IEEE 754 float
	TypeString  TypeTag = 's' // Null-terminated string, padded to 4 bytes
	TypeBlob    TypeTag = 'b' // Length-prefixed byte sequence, padded to 4 bytes
	TypeInt64   TypeTag = 'h' // 64-bit big-endian signed integer
	TypeFloat64 TypeTag = 'd' // 64-bit big-endian IEEE 754 float
	TypeTrue    TypeTag = 'T' // No payload
	TypeFalse   TypeTag = 'F' // No payload
	TypeNil     TypeTag = 'N' // No payload
)

// Argument is one value carried by a message, modeled as a tagged union
// over the supported OSC primitive types. Only the field matching Tag is
// meaningful; the bridge forwards arguments without interpreting them.
type Argument struct {
	Tag   TypeTag
	Int   int64   // i, h
	Float float64 // f, d
	Str   string  // s
	Blob  []byte  // b
}

// Int32 builds an int32 argument.
func Int32(v int32) Argument {
	return Argument{Tag: TypeInt32, Int: int64(v)}
}

// Int64 builds an int64 argument.
func Int64(v int64) Argument {
	return Argument{Tag: TypeInt64, Int: v}
}

// Float32 builds a float32 argument.
func Float32(v float32) Argument {
	return Argument{Tag: TypeFloat32, Float: float64(v)}
}

// Float64 builds a float64 argument.
func Float64(v float64) Argument {
	return Argument{Tag: TypeFloat64, Float: v}
}

// String builds a string argument.
func String(v string) Argument {
	return Argument{Tag: TypeString, Str: v}
}

// Blob builds a blob argument.
func Blob(v []byte) Argument {
	return Argument{Tag: TypeBlob, Blob: v}
}

// Bool builds a true or false argument.
func Bool(v bool) Argument {
	if v {
		return Argument{Tag: TypeTrue}
	}
	return Argument{Tag: TypeFalse}
}

// Nil builds a nil argument.
func Nil() Argument {
	return Argument{Tag: TypeNil}
}

// IsValidTag checks if the type tag is one the codec supports.
func IsValidTag(tag TypeTag) bool {
	switch tag {
	case TypeInt32, TypeFloat32, TypeString, TypeBlob, TypeInt64, TypeFloat64, TypeTrue, TypeFalse, TypeNil:
		return true
	}
	return false
}

// Value returns the argument as a native Go value: int64 for integers,
// float64 for floats, string, []byte, bool, or nil.
func (a Argument) Value() any {
	switch a.Tag {
	case TypeInt32, TypeInt64:
		return a.Int
	case TypeFloat32, TypeFloat64:
		return a.Float
	case TypeString:
		return a.Str
	case TypeBlob:
		return a.Blob
	case TypeTrue:
		return true
	case TypeFalse:
		return false
	default:
		return nil
	}
}

// Equal reports whether two arguments have the same tag and value.
func (a Argument) Equal(b Argument) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TypeInt32, TypeInt64:
		return a.Int == b.Int
	case TypeFloat32, TypeFloat64:
		return a.Float == b.Float
	case TypeString:
		return a.Str == b.Str
	case TypeBlob:
		return bytes.Equal(a.Blob, b.Blob)
	default:
		return true
	}
}

// String returns a human-readable representation of the argument value.
func (a Argument) String() string {
	switch a.Tag {
	case TypeInt32, TypeInt64:
		return strconv.FormatInt(a.Int, 10)
	case TypeFloat32:
		return strconv.FormatFloat(a.Float, 'g', -1, 32)
	case TypeFloat64:
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(a.Str)
	case TypeBlob:
		return fmt.Sprintf("blob(%d bytes)", len(a.Blob))
	case TypeTrue:
		return "true"
	case TypeFalse:
		return "false"
	case TypeNil:
		return "nil"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(a.Tag))
	}
}
