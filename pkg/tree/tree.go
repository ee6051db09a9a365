// Package tree is a reflective edit model over a decoded configuration.
//
// Nodes are paths into the live message, kept in an index-based arena and
// created on first access. Reads and writes always go through to the message
// itself, so the tree never holds a second copy of the data.
package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gp2040ce/bintools/pkg/schema"
)

// NodeID identifies a node of a Model.
type NodeID int

// Kind is the shape of a node.
type Kind int

const (
	KindScalar Kind = iota
	KindEnum
	KindMessage
	KindRepeated
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEnum:
		return "enum"
	case KindMessage:
		return "message"
	case KindRepeated:
		return "repeated"
	default:
		return "unknown"
	}
}

// Step selects a field of a message, or an element of a repeated field when
// Index is not negative.
type Step struct {
	Field protoreflect.FieldDescriptor
	Index int
}

type node struct {
	parent   NodeID
	step     Step
	kind     Kind
	key      string
	children []NodeID
	loaded   bool
}

// Model is the tree over one message.
type Model struct {
	msg    protoreflect.Message
	schema *schema.Schema
	nodes  []node
	byKey  map[string]NodeID
	logger hclog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLogger logs edits to l.
func WithLogger(l hclog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// New builds a model over msg. The schema supplies repeated field bounds.
func New(msg protoreflect.Message, s *schema.Schema, opts ...Option) *Model {
	m := &Model{
		msg:    msg,
		schema: s,
		byKey:  make(map[string]NodeID),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.nodes = append(m.nodes, node{parent: -1, step: Step{Index: -1}, kind: KindMessage})
	m.byKey[""] = 0
	return m
}

// Message returns the live message.
func (m *Model) Message() protoreflect.Message { return m.msg }

// Root returns the node of the whole message.
func (m *Model) Root() NodeID { return 0 }

func (m *Model) node(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(m.nodes) {
		return nil, fmt.Errorf("no node %d", id)
	}
	return &m.nodes[id], nil
}

// Kind returns the shape of a node.
func (m *Model) Kind(id NodeID) Kind {
	n, err := m.node(id)
	if err != nil {
		return KindScalar
	}
	return n.kind
}

// Field returns the declared field of a node; nil for the root.
func (m *Model) Field(id NodeID) protoreflect.FieldDescriptor {
	n, err := m.node(id)
	if err != nil {
		return nil
	}
	return n.step.Field
}

// IsElement reports whether the node is an element of a repeated field.
func (m *Model) IsElement(id NodeID) bool {
	n, err := m.node(id)
	return err == nil && n.step.Index >= 0
}

// Parent returns the parent of a node, or -1 for the root.
func (m *Model) Parent(id NodeID) NodeID {
	n, err := m.node(id)
	if err != nil {
		return -1
	}
	return n.parent
}

// Depth is the number of steps from the root.
func (m *Model) Depth(id NodeID) int {
	d := 0
	for id > 0 {
		id = m.Parent(id)
		d++
	}
	return d
}

// Steps returns the path from the root to a node.
func (m *Model) Steps(id NodeID) []Step {
	var steps []Step
	for id > 0 {
		n := &m.nodes[id]
		steps = append(steps, n.step)
		id = n.parent
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

// Label is the node's own name: a field name or an element index.
func (m *Model) Label(id NodeID) string {
	n, err := m.node(id)
	if err != nil {
		return "?"
	}
	switch {
	case id == 0:
		return string(m.msg.Descriptor().Name())
	case n.step.Index >= 0:
		return "[" + strconv.Itoa(n.step.Index) + "]"
	default:
		return string(n.step.Field.Name())
	}
}

// Path renders the node's location, e.g. Config.profiles[1].enabled.
func (m *Model) Path(id NodeID) string {
	var b strings.Builder
	b.WriteString(string(m.msg.Descriptor().Name()))
	for _, s := range m.Steps(id) {
		if s.Index >= 0 {
			b.WriteString("[" + strconv.Itoa(s.Index) + "]")
			continue
		}
		b.WriteString("." + string(s.Field.Name()))
	}
	return b.String()
}

func kindOf(fd protoreflect.FieldDescriptor, element bool) Kind {
	switch {
	case fd.IsList() && !element:
		return KindRepeated
	case fd.Message() != nil && !fd.IsMap():
		return KindMessage
	case fd.Enum() != nil:
		return KindEnum
	default:
		return KindScalar
	}
}

func (m *Model) child(parent NodeID, step Step) NodeID {
	key := m.nodes[parent].key
	if step.Index >= 0 {
		key += "[" + strconv.Itoa(step.Index) + "]"
	} else {
		key += "." + string(step.Field.Name())
	}
	if id, ok := m.byKey[key]; ok {
		return id
	}
	id := NodeID(len(m.nodes))
	m.nodes = append(m.nodes, node{
		parent: parent,
		step:   step,
		kind:   kindOf(step.Field, step.Index >= 0),
		key:    key,
	})
	m.byKey[key] = id
	return id
}

// messageDescriptor returns the descriptor of the message a node stands for.
func (m *Model) messageDescriptor(id NodeID) protoreflect.MessageDescriptor {
	if id == 0 {
		return m.msg.Descriptor()
	}
	return m.nodes[id].step.Field.Message()
}

// Children lists a node's children. Message fields come in declaration
// order; elements of a repeated field follow the live list, so the result
// changes as elements are added.
func (m *Model) Children(id NodeID) ([]NodeID, error) {
	n, err := m.node(id)
	if err != nil {
		return nil, err
	}

	switch n.kind {
	case KindMessage:
		if !n.loaded {
			fields := m.messageDescriptor(id).Fields()
			children := make([]NodeID, 0, fields.Len())
			for i := 0; i < fields.Len(); i++ {
				children = append(children, m.child(id, Step{Field: fields.Get(i), Index: -1}))
			}
			// m.child may grow the arena, so n is stale here
			m.nodes[id].children = children
			m.nodes[id].loaded = true
		}
		return m.nodes[id].children, nil

	case KindRepeated:
		list, err := m.readList(id)
		if err != nil {
			return nil, err
		}
		fd := n.step.Field
		children := make([]NodeID, 0, list.Len())
		for i := 0; i < list.Len(); i++ {
			children = append(children, m.child(id, Step{Field: fd, Index: i}))
		}
		m.nodes[id].children = children
		return children, nil

	default:
		return nil, nil
	}
}

// Lookup resolves a dotted path such as "profiles[1].enabled" to a node,
// loading children on the way. A leading root message name is accepted.
func (m *Model) Lookup(path string) (NodeID, error) {
	root := string(m.msg.Descriptor().Name())
	rest := path
	if rest == root {
		rest = ""
	}
	rest = strings.TrimPrefix(rest, root+".")
	id := m.Root()

	for rest != "" {
		if rest[0] == '[' {
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return -1, fmt.Errorf("%s: unclosed index", path)
			}
			idx, err := strconv.Atoi(rest[1:end])
			if err != nil {
				return -1, fmt.Errorf("%s: bad index %q", path, rest[1:end])
			}
			if m.Kind(id) != KindRepeated {
				return -1, fmt.Errorf("%s: %s is not repeated", path, m.Path(id))
			}
			children, err := m.Children(id)
			if err != nil {
				return -1, err
			}
			if idx < 0 || idx >= len(children) {
				return -1, fmt.Errorf("%s: index %d out of range (%d elements)", path, idx, len(children))
			}
			id = children[idx]
			rest = strings.TrimPrefix(rest[end+1:], ".")
			continue
		}

		end := strings.IndexAny(rest, ".[")
		name := rest
		if end >= 0 {
			name, rest = rest[:end], strings.TrimPrefix(rest[end:], ".")
		} else {
			rest = ""
		}
		children, err := m.Children(id)
		if err != nil {
			return -1, err
		}
		found := NodeID(-1)
		for _, c := range children {
			if !m.IsElement(c) && m.Label(c) == name {
				found = c
				break
			}
		}
		if found < 0 {
			return -1, fmt.Errorf("%s: no field %q in %s", path, name, m.Path(id))
		}
		id = found
	}
	return id, nil
}
