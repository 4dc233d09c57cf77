// Package testutil provides shared fixtures for tests: the COMPANY schema
// used across the translation tests and deterministic session ids.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sqltutor/internal/er"
)

// CompanySchema builds the textbook COMPANY database: employees working for
// departments and on projects, with a recursive supervision relationship.
//
// Tables:
//
//	employee(ssn, name, salary, bdate, retired, city, street, dno, super_ssn)
//	department(dnumber, dname, mgr_ssn)
//	project(pnumber, pname, plocation, dnum)
//	works_on(essn, pno, hours)
func CompanySchema(t testing.TB) (*er.Schema, *er.Mapping) {
	t.Helper()
	s, m, err := BuildCompany()
	require.NoError(t, err)
	return s, m
}

// BuildCompany builds the COMPANY schema without a test context.
func BuildCompany() (*er.Schema, *er.Mapping, error) {
	s := er.NewSchema()

	attr := func(name string, dt er.DataType, desc string) *er.Attribute {
		return &er.Attribute{Name: name, DataType: dt, Description: desc}
	}
	key := func(a *er.Attribute) *er.Attribute {
		a.Key = true
		return a
	}

	employee := er.NewEntity("Employee")
	address := attr("address", er.TypeNone, "address")
	for _, c := range []*er.Attribute{attr("city", er.TypeString, "city"), attr("street", er.TypeString, "street")} {
		if err := address.AddChild(c); err != nil {
			return nil, nil, err
		}
	}
	for _, a := range []*er.Attribute{
		key(attr("ssn", er.TypeString, "social security number")),
		attr("name", er.TypeString, "name"),
		attr("salary", er.TypeDollars, "salary"),
		attr("bdate", er.TypeDateTime, "birth date"),
		attr("retired", er.TypeBoolean, "retired"),
		address,
	} {
		if err := employee.AddAttribute(a); err != nil {
			return nil, nil, err
		}
	}

	department := er.NewEntity("Department")
	for _, a := range []*er.Attribute{
		key(attr("dnumber", er.TypeInteger, "number")),
		attr("dname", er.TypeString, "name"),
	} {
		if err := department.AddAttribute(a); err != nil {
			return nil, nil, err
		}
	}

	project := er.NewEntity("Project")
	for _, a := range []*er.Attribute{
		key(attr("pnumber", er.TypeInteger, "number")),
		attr("pname", er.TypeString, "name"),
		attr("plocation", er.TypeString, "location"),
	} {
		if err := project.AddAttribute(a); err != nil {
			return nil, nil, err
		}
	}

	for _, e := range []*er.Entity{employee, department, project} {
		if err := s.AddEntity(e); err != nil {
			return nil, nil, err
		}
	}

	worksFor := er.NewRelationship("WorksFor",
		er.Edge{Entity: "Employee", Cardinality: er.ExactlyOne},
		er.Edge{Entity: "Department", Cardinality: er.OneOrMany})
	worksFor.Phrase = "works for"

	supervision := er.NewRelationship("Supervision",
		er.Edge{Entity: "Employee", Role: "supervisor", Cardinality: er.ZeroOrMany},
		er.Edge{Entity: "Employee", Role: "supervisee", Cardinality: er.ZeroOrOne})
	supervision.Phrase = "supervises"

	controls := er.NewRelationship("Controls",
		er.Edge{Entity: "Department", Cardinality: er.ZeroOrMany},
		er.Edge{Entity: "Project", Cardinality: er.ExactlyOne})

	worksOn := er.NewRelationship("WorksOn",
		er.Edge{Entity: "Employee", Cardinality: er.OneOrMany},
		er.Edge{Entity: "Project", Cardinality: er.OneOrMany})
	worksOn.Phrase = "works on"
	if err := worksOn.AddAttribute(attr("hours", er.TypeInteger, "hours")); err != nil {
		return nil, nil, err
	}

	for _, r := range []*er.Relationship{worksFor, supervision, controls, worksOn} {
		if err := s.AddRelationship(r); err != nil {
			return nil, nil, err
		}
	}

	m := er.NewMapping(s)
	for _, c := range [][2]string{
		{"Employee.ssn", "employee.ssn"},
		{"Employee.name", "employee.name"},
		{"Employee.salary", "employee.salary"},
		{"Employee.bdate", "employee.bdate"},
		{"Employee.retired", "employee.retired"},
		{"Employee.address.city", "employee.city"},
		{"Employee.address.street", "employee.street"},
		{"Department.dnumber", "department.dnumber"},
		{"Department.dname", "department.dname"},
		{"Project.pnumber", "project.pnumber"},
		{"Project.pname", "project.pname"},
		{"Project.plocation", "project.plocation"},
		{"WorksOn.hours", "works_on.hours"},
	} {
		if err := m.MapAttribute(c[0], c[1]); err != nil {
			return nil, nil, err
		}
	}

	joins := []struct {
		rel  string
		join er.Join
	}{
		{"WorksFor", er.ForeignKeyJoin("department.dnumber", "employee.dno")},
		{"Supervision", er.ForeignKeyJoin("employee.ssn", "employee.super_ssn")},
		{"Controls", er.ForeignKeyJoin("department.dnumber", "project.dnum")},
		{"WorksOn", er.LookupJoin("works_on",
			er.KeyPair{PK: "employee.ssn", FK: "works_on.essn"},
			er.KeyPair{PK: "project.pnumber", FK: "works_on.pno"})},
	}
	for _, j := range joins {
		if err := m.MapRelationship(j.rel, j.join); err != nil {
			return nil, nil, err
		}
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	return s, m, nil
}
