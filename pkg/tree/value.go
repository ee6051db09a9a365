package tree

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// ValueKind tags a Value.
type ValueKind int

const (
	ValueBool ValueKind = iota
	ValueInt
	ValueUint
	ValueFloat
	ValueString
	ValueBytes
	ValueEnum
	ValueMessage
	ValueList
)

// Value is a display copy of a field read from the live message. Only the
// members matching Kind are set. Enums carry the number in Int and the label
// in String (empty for numbers the schema does not declare). Len counts list
// elements, or the populated fields of a message.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Int    int64
	Uint   uint64
	Float  float64
	String string
	Bytes  []byte
	Len    int
}

// Text renders the value the way the editor shows it.
func (v Value) Text() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueUint:
		return strconv.FormatUint(v.Uint, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.String)
	case ValueBytes:
		return hex.EncodeToString(v.Bytes)
	case ValueEnum:
		if v.String == "" {
			return strconv.FormatInt(v.Int, 10)
		}
		return v.String
	case ValueMessage:
		return fmt.Sprintf("{%d set}", v.Len)
	case ValueList:
		return fmt.Sprintf("[%d]", v.Len)
	default:
		return "?"
	}
}

func scalarValue(fd protoreflect.FieldDescriptor, pv protoreflect.Value) Value {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return Value{Kind: ValueBool, Bool: pv.Bool()}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return Value{Kind: ValueInt, Int: pv.Int()}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return Value{Kind: ValueUint, Uint: pv.Uint()}
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return Value{Kind: ValueFloat, Float: pv.Float()}
	case protoreflect.StringKind:
		return Value{Kind: ValueString, String: pv.String()}
	case protoreflect.BytesKind:
		return Value{Kind: ValueBytes, Bytes: append([]byte(nil), pv.Bytes()...)}
	case protoreflect.EnumKind:
		num := pv.Enum()
		v := Value{Kind: ValueEnum, Int: int64(num)}
		if ev := fd.Enum().Values().ByNumber(num); ev != nil {
			v.String = string(ev.Name())
		}
		return v
	default:
		return Value{Kind: ValueMessage, Len: populated(pv.Message())}
	}
}

func populated(m protoreflect.Message) int {
	if m == nil || !m.IsValid() {
		return 0
	}
	n := 0
	m.Range(func(protoreflect.FieldDescriptor, protoreflect.Value) bool {
		n++
		return true
	})
	return n
}
