// Package editor is the terminal UI for editing a configuration: a
// collapsible tree of fields over tree.Model, with inline value entry.
package editor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gp2040ce/bintools/pkg/tree"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// SaveFunc persists the edited message.
type SaveFunc func(msg protoreflect.Message) error

type modelState int

const (
	stateBrowse modelState = iota
	stateEdit
)

type row struct {
	id    tree.NodeID
	depth int
}

type savedMsg struct {
	err error
}

// Model is the bubbletea model of the editor.
type Model struct {
	tree     *tree.Model
	title    string
	save     SaveFunc
	expanded map[tree.NodeID]bool
	rows     []row
	selected int
	state    modelState
	input    textinput.Model
	status   string
	err      error
	dirty    bool
	confirm  bool
}

// New creates an editor over t. save may be nil for a read-only session.
func New(t *tree.Model, title string, save SaveFunc) *Model {
	m := &Model{
		tree:     t,
		title:    title,
		save:     save,
		expanded: map[tree.NodeID]bool{t.Root(): true},
	}
	m.refresh()
	return m
}

// Dirty reports whether there are unsaved edits.
func (m *Model) Dirty() bool { return m.dirty }

// Selected returns the node under the cursor, or -1 when the tree is empty.
func (m *Model) Selected() tree.NodeID {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return -1
	}
	return m.rows[m.selected].id
}

// Err returns the last error shown to the user.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	return nil
}

// refresh rebuilds the visible rows from the expanded set.
func (m *Model) refresh() {
	m.rows = m.rows[:0]
	m.walk(m.tree.Root(), 0)
	if m.selected >= len(m.rows) {
		m.selected = len(m.rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) walk(id tree.NodeID, depth int) {
	children, err := m.tree.Children(id)
	if err != nil {
		m.err = err
		return
	}
	for _, c := range children {
		m.rows = append(m.rows, row{id: c, depth: depth})
		if m.expanded[c] {
			m.walk(c, depth+1)
		}
	}
}

func (m *Model) selectNode(id tree.NodeID) {
	for i, r := range m.rows {
		if r.id == id {
			m.selected = i
			return
		}
	}
}

func composite(k tree.Kind) bool {
	return k == tree.KindMessage || k == tree.KindRepeated
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateEdit {
			return m.updateEdit(msg)
		}
		return m.updateBrowse(msg)

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.dirty = false
		m.status = "saved"
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "q" {
		m.confirm = false
	}

	switch key {
	case "ctrl+c":
		return m, tea.Quit

	case "q", "esc":
		if m.dirty && !m.confirm {
			m.confirm = true
			m.status = "unsaved changes: press q again to quit, s to save"
			return m, nil
		}
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.rows)-1 {
			m.selected++
		}

	case "right", "l":
		if id := m.Selected(); id >= 0 && composite(m.tree.Kind(id)) {
			m.expanded[id] = true
			m.refresh()
		}

	case "left", "h":
		id := m.Selected()
		if id < 0 {
			break
		}
		if m.expanded[id] {
			delete(m.expanded, id)
		} else if parent := m.tree.Parent(id); parent != m.tree.Root() {
			delete(m.expanded, parent)
			id = parent
		}
		m.refresh()
		m.selectNode(id)

	case "enter":
		id := m.Selected()
		if id < 0 {
			break
		}
		switch {
		case composite(m.tree.Kind(id)):
			m.expanded[id] = !m.expanded[id]
			m.refresh()
		case m.isBool(id):
			m.apply(id, m.tree.Toggle(id))
		default:
			m.startEdit(id)
		}

	case " ":
		id := m.Selected()
		switch {
		case id < 0:
		case m.isBool(id):
			m.apply(id, m.tree.Toggle(id))
		case m.tree.Kind(id) == tree.KindEnum:
			m.apply(id, m.cycleEnum(id))
		}

	case "n", "a":
		m.appendElement()

	case "s":
		if m.save == nil {
			m.status = "read-only session"
			return m, nil
		}
		return m, m.saveCmd
	}
	return m, nil
}

func (m *Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.state = stateBrowse
		m.err = nil
		return m, nil
	case "enter":
		id := m.Selected()
		if err := m.tree.Set(id, m.input.Value()); err != nil {
			m.err = err
			return m, nil
		}
		m.state = stateBrowse
		m.apply(id, nil)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) isBool(id tree.NodeID) bool {
	fd := m.tree.Field(id)
	return fd != nil && m.tree.Kind(id) == tree.KindScalar && fd.Kind() == protoreflect.BoolKind
}

// apply records the outcome of an edit.
func (m *Model) apply(id tree.NodeID, err error) {
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.dirty = true
	m.status = "changed " + m.tree.Path(id)
}

func (m *Model) cycleEnum(id tree.NodeID) error {
	v, err := m.tree.Get(id)
	if err != nil {
		return err
	}
	values := m.tree.Field(id).Enum().Values()
	next := 0
	if cur := values.ByNumber(protoreflect.EnumNumber(v.Int)); cur != nil {
		next = (cur.Index() + 1) % values.Len()
	}
	return m.tree.Set(id, string(values.Get(next).Name()))
}

func (m *Model) startEdit(id tree.NodeID) {
	v, err := m.tree.Get(id)
	if err != nil {
		m.err = err
		return
	}

	ti := textinput.New()
	ti.Prompt = m.tree.Label(id) + ": "
	ti.Width = 40
	switch v.Kind {
	case tree.ValueString:
		ti.SetValue(v.String)
	default:
		ti.SetValue(v.Text())
	}
	if fd := m.tree.Field(id); fd != nil {
		ti.Placeholder = fd.Kind().String()
	}
	ti.Focus()

	m.input = ti
	m.state = stateEdit
	m.err = nil
}

func (m *Model) appendElement() {
	id := m.Selected()
	if id < 0 {
		return
	}
	if m.tree.IsElement(id) {
		id = m.tree.Parent(id)
	}
	if m.tree.Kind(id) != tree.KindRepeated {
		m.status = "select a repeated field to add elements"
		return
	}

	added, err := m.tree.AppendElement(id)
	if err != nil {
		m.err = err
		return
	}
	m.expanded[id] = true
	m.refresh()
	m.selectNode(added)
	m.apply(added, nil)
}

func (m *Model) saveCmd() tea.Msg {
	return savedMsg{err: m.save(m.tree.Message())}
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("GP2040-CE Configuration"))
	b.WriteString(" ")
	b.WriteString(m.title)
	if m.dirty {
		b.WriteString(" *")
	}
	b.WriteString("\n\n")

	for i, r := range m.rows {
		line := strings.Repeat("  ", r.depth) + m.formatRow(r.id)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.state == stateEdit {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	if m.state == stateEdit {
		b.WriteString(helpStyle.Render("enter apply • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ move • enter edit/expand • space toggle • n add element • s save • q quit"))
	}
	return b.String()
}

func (m *Model) formatRow(id tree.NodeID) string {
	label := fieldStyle.Render(m.tree.Label(id))
	kind := m.tree.Kind(id)
	if composite(kind) {
		marker := "▸ "
		if m.expanded[id] {
			marker = "▾ "
		}
		label = marker + label
	}

	v, err := m.tree.Get(id)
	if err != nil {
		return label + " " + errorStyle.Render("?")
	}
	if kind == tree.KindMessage {
		return label
	}
	return label + " " + valueStyle.Render(v.Text())
}

// Run starts the editor on the terminal and blocks until the user quits.
func Run(t *tree.Model, title string, save SaveFunc) error {
	p := tea.NewProgram(New(t, title, save), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
