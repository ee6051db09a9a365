package tree

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/reflect/protoreflect"
)

var boolTokens = map[string]bool{
	"true": true, "yes": true, "on": true, "1": true, "t": true, "y": true,
	"false": false, "no": false, "off": false, "0": false, "f": false, "n": false,
}

// coerce converts user input to a value of fd's type. On failure it returns
// a description of what was expected.
func coerce(fd protoreflect.FieldDescriptor, raw string) (protoreflect.Value, string, error) {
	text := strings.TrimSpace(raw)
	switch fd.Kind() {
	case protoreflect.BoolKind:
		b, ok := boolTokens[strings.ToLower(text)]
		if !ok {
			return protoreflect.Value{}, "bool (true/false, yes/no, on/off, 1/0)", fmt.Errorf("not a boolean")
		}
		return protoreflect.ValueOfBool(b), "", nil

	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		n, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			return protoreflect.Value{}, fmt.Sprintf("int32 (%d..%d)", math.MinInt32, math.MaxInt32), err
		}
		return protoreflect.ValueOfInt32(int32(n)), "", nil

	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return protoreflect.Value{}, "int64", err
		}
		return protoreflect.ValueOfInt64(n), "", nil

	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		n, err := strconv.ParseUint(text, 0, 32)
		if err != nil {
			return protoreflect.Value{}, fmt.Sprintf("uint32 (0..%d)", uint32(math.MaxUint32)), err
		}
		return protoreflect.ValueOfUint32(uint32(n)), "", nil

	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		n, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return protoreflect.Value{}, "uint64", err
		}
		return protoreflect.ValueOfUint64(n), "", nil

	case protoreflect.FloatKind:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return protoreflect.Value{}, "float32", err
		}
		return protoreflect.ValueOfFloat32(float32(f)), "", nil

	case protoreflect.DoubleKind:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return protoreflect.Value{}, "float64", err
		}
		return protoreflect.ValueOfFloat64(f), "", nil

	case protoreflect.StringKind:
		if !utf8.ValidString(raw) {
			return protoreflect.Value{}, "UTF-8 text", fmt.Errorf("invalid UTF-8")
		}
		return protoreflect.ValueOfString(raw), "", nil

	case protoreflect.BytesKind:
		b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(text), "0x"))
		if err != nil {
			return protoreflect.Value{}, "hex bytes", err
		}
		return protoreflect.ValueOfBytes(b), "", nil

	case protoreflect.EnumKind:
		values := fd.Enum().Values()
		if ev := values.ByName(protoreflect.Name(text)); ev != nil {
			return protoreflect.ValueOfEnum(ev.Number()), "", nil
		}
		if n, err := strconv.ParseInt(text, 0, 32); err == nil {
			if ev := values.ByNumber(protoreflect.EnumNumber(n)); ev != nil {
				return protoreflect.ValueOfEnum(ev.Number()), "", nil
			}
		}
		return protoreflect.Value{}, "one of " + enumLabels(fd.Enum()), fmt.Errorf("unknown %s value", fd.Enum().Name())

	default:
		return protoreflect.Value{}, "a scalar field", fmt.Errorf("%s fields cannot be set from text", fd.Kind())
	}
}

func enumLabels(ed protoreflect.EnumDescriptor) string {
	values := ed.Values()
	labels := make([]string, values.Len())
	for i := range labels {
		labels[i] = string(values.Get(i).Name())
	}
	return strings.Join(labels, ", ")
}
