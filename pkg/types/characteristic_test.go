package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestCharacteristicClone(t *testing.T) {
	c := Characteristic{Name: "size", DataType: DataTypeEnum, Options: []string{"s", "m"}}
	cp := c.Clone()
	cp.Options[0] = "xl"
	assert.Equal(t, "s", c.Options[0])

	n := Characteristic{Name: "qty", DataType: DataTypeNumber, Min: ptr(0), Max: ptr(5)}
	ncp := n.Clone()
	*ncp.Max = 100
	assert.Equal(t, 5.0, *n.Max)
}

func TestGroupLookupAndWithout(t *testing.T) {
	g := Group{
		Name: "Widgets",
		Characteristics: []Characteristic{
			{Name: "Color", DataType: DataTypeEnum, Options: []string{"red"}},
			{Name: "Weight", DataType: DataTypeNumber},
		},
	}

	c, ok := g.Lookup("Weight")
	assert.True(t, ok)
	assert.Equal(t, DataTypeNumber, c.DataType)
	_, ok = g.Lookup("weight")
	assert.False(t, ok, "lookup is case-sensitive")

	trimmed := g.Without("Color")
	assert.Equal(t, []string{"Weight"}, trimmed.Names())
	assert.Equal(t, []string{"Color", "Weight"}, g.Names(), "original group unchanged")
}

func TestRecordClone(t *testing.T) {
	r := Record{ID: "1", Values: map[string]Value{"a": TextValue("x")}}
	cp := r.Clone()
	cp.Values["a"] = TextValue("y")
	assert.Equal(t, "x", r.Values["a"].Text)

	empty := Record{}.Clone()
	assert.NotNil(t, empty.Values)
}
