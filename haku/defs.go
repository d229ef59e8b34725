package haku

import "fmt"

// ---------------------------------------------------------------------------
// Definitions table
// ---------------------------------------------------------------------------

// ErrTooManyDefs is reported when a brush defines more names than the
// configured limit allows.
var ErrTooManyDefs = fmt.Errorf("too many defs")

// ErrDefExists is reported when a name is defined twice.
var ErrDefExists = fmt.Errorf("a def with this name already exists")

// Defs maps toplevel definition names to dense u16 indices. The VM keeps a
// parallel value slot per index; reset before each recompilation.
type Defs struct {
	names   []string
	indices map[string]uint16
	max     int
}

// NewDefs creates a table that accepts at most max definitions.
func NewDefs(max int) *Defs {
	if max > 1<<16 {
		max = 1 << 16
	}
	return &Defs{indices: make(map[string]uint16), max: max}
}

// Add registers a name and returns its index.
func (d *Defs) Add(name string) (uint16, error) {
	if _, ok := d.indices[name]; ok {
		return 0, ErrDefExists
	}
	if len(d.names) >= d.max {
		return 0, ErrTooManyDefs
	}
	index := uint16(len(d.names))
	d.names = append(d.names, name)
	d.indices[name] = index
	return index, nil
}

// Index looks up a name.
func (d *Defs) Index(name string) (uint16, bool) {
	index, ok := d.indices[name]
	return index, ok
}

// Name returns the name at the given index.
func (d *Defs) Name(index uint16) string { return d.names[index] }

// Len returns the number of registered definitions.
func (d *Defs) Len() int { return len(d.names) }

// Reset removes all definitions, keeping the capacity.
func (d *Defs) Reset() {
	d.names = d.names[:0]
	for name := range d.indices {
		delete(d.indices, name)
	}
}
