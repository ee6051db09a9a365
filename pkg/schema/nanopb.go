package schema

import (
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Field numbers from nanopb.proto.
const (
	nanopbExtension     protowire.Number = 1010
	nanopbMaxCountField protowire.Number = 2
)

// nanopbMaxCount reads `[(nanopb).max_count = N]` from a field. The option is
// found either as a resolved extension, when nanopb.proto was compiled along
// with the schema, or as unknown bytes on the field options.
func nanopbMaxCount(fd protoreflect.FieldDescriptor) (int, bool) {
	opts := fd.Options()
	if opts == nil {
		return 0, false
	}
	m := opts.ProtoReflect()
	if !m.IsValid() {
		return 0, false
	}

	var (
		count int
		found bool
	)
	m.Range(func(ext protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if !ext.IsExtension() || ext.Number() != nanopbExtension || ext.Message() == nil {
			return true
		}
		inner := v.Message()
		if f := ext.Message().Fields().ByNumber(nanopbMaxCountField); f != nil && inner.Has(f) {
			count, found = int(inner.Get(f).Int()), true
		}
		return false
	})
	if found {
		return count, count > 0
	}

	return scanMaxCount(m.GetUnknown())
}

func scanMaxCount(raw []byte) (int, bool) {
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return 0, false
		}
		raw = raw[n:]
		if num == nanopbExtension && typ == protowire.BytesType {
			inner, m := protowire.ConsumeBytes(raw)
			if m < 0 {
				return 0, false
			}
			if count, ok := scanInnerMaxCount(inner); ok {
				return count, true
			}
			raw = raw[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, raw)
		if m < 0 {
			return 0, false
		}
		raw = raw[m:]
	}
	return 0, false
}

func scanInnerMaxCount(raw []byte) (int, bool) {
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return 0, false
		}
		raw = raw[n:]
		if num == nanopbMaxCountField && typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return 0, false
			}
			return int(int32(v)), int32(v) > 0
		}
		m := protowire.ConsumeFieldValue(num, typ, raw)
		if m < 0 {
			return 0, false
		}
		raw = raw[m:]
	}
	return 0, false
}
