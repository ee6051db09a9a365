// Package schema adapts the protobuf runtime to the configuration tools. A
// Schema wraps the descriptor of the root configuration message together with
// the facts the descriptor itself does not carry in a portable form: the
// maximum element count of repeated fields and the name of the field that
// reports the board version.
package schema

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	// DefaultMessage is the root message of the GP2040-CE configuration.
	DefaultMessage = "Config"
	// DefaultVersionField is the string field boards fill with their version.
	DefaultVersionField = "boardVersion"
)

// Bounds maps repeated fields to the maximum number of elements the firmware
// allocates for them.
type Bounds map[protoreflect.FullName]int

// Schema describes the configuration message.
type Schema struct {
	desc         protoreflect.MessageDescriptor
	bounds       Bounds
	versionField protoreflect.Name
	logger       hclog.Logger
}

// Option configures a Schema.
type Option func(*Schema)

// WithBounds adds repeated field bounds. Later options override earlier ones
// for the same field.
func WithBounds(b Bounds) Option {
	return func(s *Schema) {
		for name, n := range b {
			s.bounds[name] = n
		}
	}
}

// WithVersionField names the string field holding the board version.
func WithVersionField(name string) Option {
	return func(s *Schema) {
		if name != "" {
			s.versionField = protoreflect.Name(name)
		}
	}
}

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(l hclog.Logger) Option {
	return func(s *Schema) {
		if l != nil {
			s.logger = l
		}
	}
}

// New wraps a message descriptor.
func New(desc protoreflect.MessageDescriptor, opts ...Option) *Schema {
	s := &Schema{
		desc:         desc,
		bounds:       make(Bounds),
		versionField: DefaultVersionField,
		logger:       hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Descriptor returns the root message descriptor.
func (s *Schema) Descriptor() protoreflect.MessageDescriptor { return s.desc }

// Name returns the full name of the root message.
func (s *Schema) Name() protoreflect.FullName { return s.desc.FullName() }

// New returns an empty root message.
func (s *Schema) New() protoreflect.Message {
	return dynamicpb.NewMessage(s.desc)
}

// Decode parses a serialized root message.
func (s *Schema) Decode(payload []byte) (protoreflect.Message, error) {
	msg := dynamicpb.NewMessage(s.desc)
	if err := proto.Unmarshal(payload, msg); err != nil {
		s.logger.Debug("❌ Payload does not parse", "message", s.desc.FullName(), "size", len(payload), "error", err)
		return nil, fmt.Errorf("decode %s: %w", s.desc.FullName(), err)
	}
	return msg, nil
}

// Encode serializes a root message. Map entries and unknown fields are
// written in a stable order so equal messages give equal bytes.
func (s *Schema) Encode(msg protoreflect.Message) ([]byte, error) {
	if err := s.check(msg); err != nil {
		return nil, err
	}
	out, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg.Interface())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.desc.FullName(), err)
	}
	return out, nil
}

// ToJSON renders a root message with the JSON field names.
func (s *Schema) ToJSON(msg protoreflect.Message) ([]byte, error) {
	if err := s.check(msg); err != nil {
		return nil, err
	}
	out, err := protojson.MarshalOptions{Multiline: true, Indent: "    "}.Marshal(msg.Interface())
	if err != nil {
		return nil, fmt.Errorf("render %s as JSON: %w", s.desc.FullName(), err)
	}
	return out, nil
}

// FromJSON parses a root message from JSON. Both the JSON and the original
// field names are accepted.
func (s *Schema) FromJSON(data []byte) (protoreflect.Message, error) {
	msg := dynamicpb.NewMessage(s.desc)
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("parse %s from JSON: %w", s.desc.FullName(), err)
	}
	return msg, nil
}

// Version returns the self-reported board version, if the message has one.
func (s *Schema) Version(msg protoreflect.Message) (string, bool) {
	fd := s.desc.Fields().ByName(s.versionField)
	if fd == nil || fd.Kind() != protoreflect.StringKind || fd.IsList() {
		return "", false
	}
	if msg == nil || !msg.Has(fd) {
		return "", false
	}
	return msg.Get(fd).String(), true
}

// MaxCount returns the declared element bound of a repeated field. The bounds
// table wins over a nanopb max_count option on the field; a field with
// neither is unbounded.
func (s *Schema) MaxCount(fd protoreflect.FieldDescriptor) (int, bool) {
	if n, ok := s.bounds[fd.FullName()]; ok {
		return n, true
	}
	return nanopbMaxCount(fd)
}

func (s *Schema) check(msg protoreflect.Message) error {
	if msg == nil {
		return fmt.Errorf("no %s message", s.desc.FullName())
	}
	if got := msg.Descriptor().FullName(); got != s.desc.FullName() {
		return fmt.Errorf("message is %s, schema expects %s", got, s.desc.FullName())
	}
	return nil
}
