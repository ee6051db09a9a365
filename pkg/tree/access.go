package tree

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"

	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
)

// readContainer walks to the message holding the node's field without
// populating anything on the way. A repeated field step is followed by the
// element step that indexes it, so the walk selects the list there.
func (m *Model) readContainer(id NodeID) (protoreflect.Message, Step, error) {
	if _, err := m.node(id); err != nil {
		return nil, Step{}, err
	}
	steps := m.Steps(id)
	if len(steps) == 0 {
		return nil, Step{}, fmt.Errorf("the root has no container")
	}
	msg := m.msg
	for _, s := range steps[:len(steps)-1] {
		if s.Index < 0 {
			if !s.Field.IsList() {
				msg = msg.Get(s.Field).Message()
			}
			continue
		}
		list := msg.Get(s.Field).List()
		if s.Index >= list.Len() {
			return nil, Step{}, fmt.Errorf("%s: element %d no longer exists", m.Path(id), s.Index)
		}
		msg = list.Get(s.Index).Message()
	}

	last := steps[len(steps)-1]
	if last.Index >= 0 && last.Index >= msg.Get(last.Field).List().Len() {
		return nil, Step{}, fmt.Errorf("%s: element %d no longer exists", m.Path(id), last.Index)
	}
	return msg, last, nil
}

// mutableContainer walks to the message holding the node's field, creating
// parent messages as needed. Callers validate with readContainer first.
func (m *Model) mutableContainer(id NodeID) (protoreflect.Message, Step) {
	steps := m.Steps(id)
	msg := m.msg
	for _, s := range steps[:len(steps)-1] {
		if s.Index < 0 {
			if !s.Field.IsList() {
				msg = msg.Mutable(s.Field).Message()
			}
			continue
		}
		msg = msg.Mutable(s.Field).List().Get(s.Index).Message()
	}
	return msg, steps[len(steps)-1]
}

func (m *Model) readList(id NodeID) (protoreflect.List, error) {
	container, step, err := m.readContainer(id)
	if err != nil {
		return nil, err
	}
	return container.Get(step.Field).List(), nil
}

// Get reads a node's current value from the message.
func (m *Model) Get(id NodeID) (Value, error) {
	if id == m.Root() {
		return Value{Kind: ValueMessage, Len: populated(m.msg)}, nil
	}
	container, step, err := m.readContainer(id)
	if err != nil {
		return Value{}, err
	}
	fd := step.Field

	if step.Index >= 0 {
		pv := container.Get(fd).List().Get(step.Index)
		if fd.Message() != nil {
			return Value{Kind: ValueMessage, Len: populated(pv.Message())}, nil
		}
		return scalarValue(fd, pv), nil
	}

	switch {
	case fd.IsList():
		return Value{Kind: ValueList, Len: container.Get(fd).List().Len()}, nil
	case fd.IsMap():
		return Value{Kind: ValueList, Len: container.Get(fd).Map().Len()}, nil
	case fd.Message() != nil:
		return Value{Kind: ValueMessage, Len: populated(container.Get(fd).Message())}, nil
	default:
		return scalarValue(fd, container.Get(fd)), nil
	}
}

// Set parses raw as the node's declared type and stores it. On any error
// the message is left untouched.
func (m *Model) Set(id NodeID, raw string) error {
	n, err := m.node(id)
	if err != nil {
		return err
	}
	fd := n.step.Field
	if fd == nil || (n.kind != KindScalar && n.kind != KindEnum) || fd.IsMap() {
		return &storeerr.ValidationError{Path: m.Path(id), Input: raw, Expected: "a scalar field",
			Cause: fmt.Errorf("%s nodes hold no single value", n.kind)}
	}

	v, expected, err := coerce(fd, raw)
	if err != nil {
		return &storeerr.ValidationError{Path: m.Path(id), Input: raw, Expected: expected, Cause: err}
	}
	if _, _, err := m.readContainer(id); err != nil {
		return err
	}

	container, step := m.mutableContainer(id)
	if step.Index >= 0 {
		container.Mutable(fd).List().Set(step.Index, v)
	} else {
		container.Set(fd, v)
	}
	m.logger.Debug("✏️ Set field", "path", m.Path(id), "value", raw)
	return nil
}

// Toggle flips a boolean node.
func (m *Model) Toggle(id NodeID) error {
	fd := m.Field(id)
	if fd == nil || fd.Kind() != protoreflect.BoolKind || m.Kind(id) != KindScalar {
		return &storeerr.ValidationError{Path: m.Path(id), Expected: "a bool field"}
	}
	v, err := m.Get(id)
	if err != nil {
		return err
	}
	return m.Set(id, strconv.FormatBool(!v.Bool))
}

// AppendElement adds a zero element to a repeated field and returns its
// node. A field at its declared maximum is left unchanged and a
// *CapacityError returned.
func (m *Model) AppendElement(id NodeID) (NodeID, error) {
	if m.Kind(id) != KindRepeated {
		return -1, &storeerr.ValidationError{Path: m.Path(id), Expected: "a repeated field"}
	}
	fd := m.Field(id)

	list, err := m.readList(id)
	if err != nil {
		return -1, err
	}
	if m.schema != nil {
		if max, ok := m.schema.MaxCount(fd); ok && list.Len() >= max {
			return -1, &storeerr.CapacityError{Path: m.Path(id), Max: max}
		}
	}

	container, _ := m.mutableContainer(id)
	mutable := container.Mutable(fd).List()
	mutable.Append(mutable.NewElement())
	m.logger.Debug("➕ Appended element", "path", m.Path(id), "len", mutable.Len())

	children, err := m.Children(id)
	if err != nil {
		return -1, err
	}
	return children[len(children)-1], nil
}
