package layout

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Table is a set of named layouts.
type Table struct {
	layouts map[string]Layout
}

type tableFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// Builtin returns the table of layouts shipped by GP2040-CE firmware.
func Builtin() Table {
	t := Table{layouts: make(map[string]Layout)}
	for _, l := range []Layout{Standard(), Legacy()} {
		t.layouts[l.Name] = l
	}
	return t
}

// Lookup returns the layout called name.
func (t Table) Lookup(name string) (Layout, error) {
	if name == "" {
		name = DefaultName
	}
	l, ok := t.layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown flash layout %q (known: %v)", name, t.Names())
	}
	return l, nil
}

// Names lists the layouts in the table, sorted.
func (t Table) Names() []string {
	names := make([]string, 0, len(t.layouts))
	for n := range t.layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of t that also holds the given layouts. A layout with
// an existing name replaces the old entry.
func (t Table) With(layouts ...Layout) (Table, error) {
	out := Table{layouts: make(map[string]Layout, len(t.layouts)+len(layouts))}
	for n, l := range t.layouts {
		out.layouts[n] = l
	}
	for _, l := range layouts {
		if l.Base == 0 {
			l.Base = DefaultBase
		}
		if err := l.Validate(); err != nil {
			return Table{}, err
		}
		out.layouts[l.Name] = l
	}
	return out, nil
}

// Parse decodes a YAML layout file.
func Parse(data []byte) ([]Layout, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse layout file: %w", err)
	}
	if len(f.Layouts) == 0 {
		return nil, fmt.Errorf("layout file defines no layouts")
	}
	return f.Layouts, nil
}

// LoadFile reads a YAML layout file and returns the builtin table extended
// with its layouts.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read layout file: %w", err)
	}
	layouts, err := Parse(data)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return Builtin().With(layouts...)
}
