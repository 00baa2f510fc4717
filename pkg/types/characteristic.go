package types

import (
	"slices"
	"time"
)

// Characteristic is a named, typed schema entry describing one attribute
// that records may carry. It is registered once in the global pool and
// copied into every group that selects it.
type Characteristic struct {
	Name      string    `json:"name"`
	DataType  DataType  `json:"data_type"`
	Nullable  bool      `json:"nullable"`
	Options   []string  `json:"options,omitempty"` // Enum only; ordered.
	Min       *float64  `json:"min,omitempty"`     // Numeric types only; inclusive.
	Max       *float64  `json:"max,omitempty"`     // Numeric types only; inclusive.
	CreatedAt time.Time `json:"created_at"`
}

// Constraints carries the type-specific parts of a characteristic
// definition.
type Constraints struct {
	Options []string
	Min     *float64
	Max     *float64
}

// Constraints returns the type-specific parts of c.
func (c Characteristic) Constraints() Constraints {
	return Constraints{Options: c.Options, Min: c.Min, Max: c.Max}
}

// Clone returns a deep copy of c.
func (c Characteristic) Clone() Characteristic {
	out := c
	out.Options = slices.Clone(c.Options)
	if c.Min != nil {
		v := *c.Min
		out.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		out.Max = &v
	}
	return out
}

// HasOption reports whether opt is one of the enum options (exact match).
func (c Characteristic) HasOption(opt string) bool {
	return slices.Contains(c.Options, opt)
}

// Group is a named collection of characteristic definitions that records
// are validated against. Characteristics is a snapshot taken when the
// group was defined; later changes to the global pool do not alter it.
type Group struct {
	Name            string           `json:"name"`
	Characteristics []Characteristic `json:"characteristics"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Lookup returns the group's definition for the named characteristic.
func (g Group) Lookup(name string) (Characteristic, bool) {
	for _, c := range g.Characteristics {
		if c.Name == name {
			return c, true
		}
	}
	return Characteristic{}, false
}

// Names returns the characteristic names in group order.
func (g Group) Names() []string {
	names := make([]string, len(g.Characteristics))
	for i, c := range g.Characteristics {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy of g.
func (g Group) Clone() Group {
	out := g
	out.Characteristics = make([]Characteristic, len(g.Characteristics))
	for i, c := range g.Characteristics {
		out.Characteristics[i] = c.Clone()
	}
	return out
}

// Without returns a copy of g with the named characteristic removed.
func (g Group) Without(name string) Group {
	out := g.Clone()
	out.Characteristics = slices.DeleteFunc(out.Characteristics, func(c Characteristic) bool {
		return c.Name == name
	})
	return out
}
