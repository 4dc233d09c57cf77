package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompanySchema_Builds(t *testing.T) {
	s, m := CompanySchema(t)

	assert.Len(t, s.Entities(), 3)
	assert.Len(t, s.Relationships(), 4)

	e, ok := m.EntityForTable("employee")
	assert.True(t, ok)
	assert.Equal(t, "Employee", e)

	_, ok = m.EntityForTable("works_on")
	assert.False(t, ok, "lookup tables hold no entity")
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "session-1", g.Generate())
	assert.Equal(t, "session-2", g.Generate())

	g = NewSequentialIDs("t")
	assert.Equal(t, "t-1", g.Generate())
}
