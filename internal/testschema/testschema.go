// Package testschema builds a small configuration schema in memory so that
// package tests exercise the protobuf runtime without generated code. The
// shape mirrors the parts of the GP2040-CE Config message the tools touch.
package testschema

import (
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	// Package is the proto package of the fixture.
	Package = "gp2040ce.test"
	// ConfigName is the full name of the root message.
	ConfigName protoreflect.FullName = Package + ".Config"
	// ProfilesField is the full name of the bounded repeated field.
	ProfilesField protoreflect.FullName = ConfigName + ".profiles"
	// MaxProfiles is the bound the tests declare for ProfilesField.
	MaxProfiles = 2
	// TagsField carries a nanopb max_count option.
	TagsField protoreflect.FullName = ConfigName + ".tags"
	// MaxTags is the nanopb max_count of TagsField.
	MaxTags = 3

	nanopbExtension = 1010
	nanopbMaxCount  = 2
)

// withNanopbMaxCount attaches `[(nanopb).max_count = n]` the way protoc
// leaves it when nanopb.proto is not linked into the reader: as unknown
// bytes on the field options.
func withNanopbMaxCount(f *descriptorpb.FieldDescriptorProto, n int) *descriptorpb.FieldDescriptorProto {
	var inner []byte
	inner = protowire.AppendTag(inner, nanopbMaxCount, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(n))

	var raw []byte
	raw = protowire.AppendTag(raw, nanopbExtension, protowire.BytesType)
	raw = protowire.AppendBytes(raw, inner)

	opts := &descriptorpb.FieldOptions{}
	opts.ProtoReflect().SetUnknown(raw)
	f.Options = opts
	return f
}

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, label descriptorpb.FieldDescriptorProto_Label, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Type:     typ.Enum(),
		Label:    label.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String("." + Package + "." + typeName)
	}
	return f
}

func optional(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	return field(name, number, typ, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL, typeName)
}

func repeated(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	return field(name, number, typ, descriptorpb.FieldDescriptorProto_LABEL_REPEATED, typeName)
}

// FileProto returns the descriptor of the fixture file:
//
//	enum InputMode { INPUT_MODE_XINPUT = 0; INPUT_MODE_SWITCH = 1; INPUT_MODE_PS4 = 4; }
//	message GamepadOptions { InputMode inputMode = 1; bool invertXAxis = 2; uint32 deadzone = 3; }
//	message Profile { bool enabled = 1; repeated int32 pinMappings = 2; }
//	message Config {
//	  string boardVersion = 1; GamepadOptions gamepadOptions = 2;
//	  repeated Profile profiles = 3; int32 brightness = 4; float scale = 5;
//	  bytes key = 6; uint64 serial = 7; repeated string tags = 8 [(nanopb).max_count = 3];
//	  int64 offset = 9;
//	}
func FileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("gp2040ce_test/config.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto2"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("InputMode"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("INPUT_MODE_XINPUT"), Number: proto.Int32(0)},
				{Name: proto.String("INPUT_MODE_SWITCH"), Number: proto.Int32(1)},
				{Name: proto.String("INPUT_MODE_PS4"), Number: proto.Int32(4)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("GamepadOptions"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optional("inputMode", 1, descriptorpb.FieldDescriptorProto_TYPE_ENUM, "InputMode"),
					optional("invertXAxis", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL, ""),
					optional("deadzone", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32, ""),
				},
			},
			{
				Name: proto.String("Profile"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optional("enabled", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL, ""),
					repeated("pinMappings", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32, ""),
				},
			},
			{
				Name: proto.String("Config"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optional("boardVersion", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
					optional("gamepadOptions", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "GamepadOptions"),
					repeated("profiles", 3, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "Profile"),
					optional("brightness", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32, ""),
					optional("scale", 5, descriptorpb.FieldDescriptorProto_TYPE_FLOAT, ""),
					optional("key", 6, descriptorpb.FieldDescriptorProto_TYPE_BYTES, ""),
					optional("serial", 7, descriptorpb.FieldDescriptorProto_TYPE_UINT64, ""),
					withNanopbMaxCount(repeated("tags", 8, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""), MaxTags),
					optional("offset", 9, descriptorpb.FieldDescriptorProto_TYPE_INT64, ""),
				},
			},
		},
	}
}

// File builds the fixture file descriptor. It panics on error since the
// fixture is static.
func File() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(FileProto(), new(protoregistry.Files))
	if err != nil {
		panic(err)
	}
	return fd
}

// Config returns the descriptor of the fixture's root message.
func Config() protoreflect.MessageDescriptor {
	return File().Messages().ByName("Config")
}

// DescriptorSet wraps the fixture in a FileDescriptorSet, the format
// `protoc --descriptor_set_out` produces.
func DescriptorSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{FileProto()}}
}

// NanopbSource is the subset of nanopb.proto the fixture imports.
const NanopbSource = `syntax = "proto2";

import "google/protobuf/descriptor.proto";

message NanoPBOptions {
  optional int32 max_size = 1;
  optional int32 max_count = 2;
}

extend google.protobuf.FieldOptions {
  optional NanoPBOptions nanopb = 1010;
}
`

// ProtoSource is the same schema as .proto text, for compiler tests. It
// imports nanopb.proto, see NanopbSource.
const ProtoSource = `syntax = "proto2";

package gp2040ce.test;

import "nanopb.proto";

enum InputMode {
  INPUT_MODE_XINPUT = 0;
  INPUT_MODE_SWITCH = 1;
  INPUT_MODE_PS4 = 4;
}

message GamepadOptions {
  optional InputMode inputMode = 1;
  optional bool invertXAxis = 2;
  optional uint32 deadzone = 3;
}

message Profile {
  optional bool enabled = 1;
  repeated int32 pinMappings = 2;
}

message Config {
  optional string boardVersion = 1;
  optional GamepadOptions gamepadOptions = 2;
  repeated Profile profiles = 3;
  optional int32 brightness = 4;
  optional float scale = 5;
  optional bytes key = 6;
  optional uint64 serial = 7;
  repeated string tags = 8 [(nanopb).max_count = 3];
  optional int64 offset = 9;
}
`
