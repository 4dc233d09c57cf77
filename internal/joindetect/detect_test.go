package joindetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xwb1989/sqlparser"

	"github.com/roach88/sqltutor/internal/er"
)

func parseSelect(t *testing.T, sql string) *sqlparser.Select {
	t.Helper()
	stmt, err := sqlparser.Parse(sql)
	require.NoError(t, err)
	sel, ok := stmt.(*sqlparser.Select)
	require.True(t, ok)
	return sel
}

func TestDetect_SelfJoinPermutations(t *testing.T) {
	d, err := New("employee.ssn", "employee.super_ssn")
	require.NoError(t, err)

	queries := []string{
		"select * from employee e1 join employee e2 on e2.ssn = e1.super_ssn",
		"select * from employee e1 join employee e2 on e1.super_ssn = e2.ssn",
		"select * from employee e2 join employee e1 on e2.ssn = e1.super_ssn",
		"select * from employee e2, employee e1 where e2.ssn = e1.super_ssn",
		"select * from employee e1, employee e2 where e1.salary > 10 and e1.super_ssn = e2.ssn",
		"select * from employee as e2 inner join employee as e1 on (E1.SUPER_SSN = E2.SSN)",
	}
	for _, q := range queries {
		m, ok, err := d.Detect(parseSelect(t, q))
		require.NoError(t, err, q)
		require.True(t, ok, q)
		assert.Equal(t, "e2", lower(m.PK), q)
		assert.Equal(t, "e1", lower(m.FK), q)
		assert.Equal(t, "employee", m.PKTable)
		assert.Equal(t, "employee", m.FKTable)
		assert.NotNil(t, m.Condition)
	}
}

func lower(s string) string { return er.Column(s) }

func TestDetect_DistinctTablesUnqualified(t *testing.T) {
	d, err := New("department.dnumber", "employee.dno")
	require.NoError(t, err)

	m, ok, err := d.Detect(parseSelect(t, "select * from employee, department where dno = dnumber"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "department", m.PK)
	assert.Equal(t, "employee", m.FK)
}

func TestDetect_NoMatch(t *testing.T) {
	d, err := New("employee.ssn", "employee.super_ssn")
	require.NoError(t, err)

	tests := []struct {
		name string
		sql  string
	}{
		{"single table", "select * from employee e where e.ssn = e.super_ssn"},
		{"same reference", "select * from employee e1, employee e2 where e1.ssn = e1.super_ssn"},
		{"three tables", "select * from employee a, employee b, employee c where a.ssn = b.super_ssn"},
		{"wrong column", "select * from employee e1, employee e2 where e1.ssn = e2.dno"},
		{"unqualified self join", "select * from employee e1, employee e2 where ssn = super_ssn"},
		{"inequality", "select * from employee e1, employee e2 where e2.ssn < e1.super_ssn"},
		{"derived table", "select * from employee e1, (select * from employee) e2 where e2.ssn = e1.super_ssn"},
		{"disjunction", "select * from employee e1, employee e2 where e2.ssn = e1.super_ssn or e1.dno = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := d.Detect(parseSelect(t, tt.sql))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestNew_RequiresQualifiedColumns(t *testing.T) {
	_, err := New("ssn", "employee.super_ssn")
	assert.True(t, er.IsSchemaError(err, er.ErrCodeUnqualified))

	_, err = New("employee.ssn", "super_ssn")
	assert.Error(t, err)
}

func TestDetect_NilSelect(t *testing.T) {
	d, err := New("employee.ssn", "employee.super_ssn")
	require.NoError(t, err)
	_, _, err = d.Detect(nil)
	assert.Error(t, err)
}
