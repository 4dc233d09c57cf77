package rules

import (
	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

func resolveTableEntity() *symbolic.Rule {
	return &symbolic.Rule{
		Name:       "resolve-table-entity",
		Phases:     analysis,
		Precedence: symbolic.BandEnhance,
		Query: logic.Query{
			logic.A(facts.PredTableRef, v("T"), logic.Any, logic.Any),
			logic.Not(logic.A(facts.PredResolved, v("T"))),
		},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			if err := requireMapping(st); err != nil {
				return false, err
			}
			t := st.Tree
			changed := false
			for _, b := range tuples {
				id := ref(b, "T")
				if !live(t, id, token.KindTableEntity) {
					continue
				}
				p := t.Payload(id).(token.TableEntity)
				if e, ok := st.Mapping.EntityForTable(p.Table); ok {
					p.Entity = e
				} else if _, ok := st.Mapping.LookupRelationship(p.Table); !ok {
					return changed, &er.SchemaError{Code: er.ErrCodeUnknownEntity, Name: p.Table, Message: "table is not mapped to an entity or relationship"}
				}
				p.Resolved = true
				if err := t.SetPayload(id, p); err != nil {
					return changed, err
				}
				changed = true
			}
			return changed, nil
		},
	}
}

// ownerOf finds the table an unqualified column belongs to. Selects are
// searched innermost first; within one select the column must be unique.
func ownerOf(st *symbolic.State, at token.ID, column string) (token.ID, error) {
	t := st.Tree
	for sel := facts.EnclosingSelect(t, at); sel != token.None; sel = facts.EnclosingSelect(t, sel) {
		found := token.None
		for _, te := range facts.TableEntities(t, sel) {
			col := t.Payload(te).(token.TableEntity).Table + "." + column
			_, mapped := st.Mapping.AttributeFor(col)
			if !mapped && !st.Mapping.IsJoinColumn(col) {
				continue
			}
			if found != token.None {
				return token.None, &er.SchemaError{Code: er.ErrCodeConflict, Name: column, Message: "column is ambiguous; qualify it with a table name"}
			}
			found = te
		}
		if found != token.None {
			return found, nil
		}
	}
	return token.None, &er.SchemaError{Code: er.ErrCodeUnknownAttribute, Name: column, Message: "no table in scope has this column"}
}

func resolveAttribute() *symbolic.Rule {
	return &symbolic.Rule{
		Name:       "resolve-attribute",
		Phases:     analysis,
		Precedence: symbolic.BandEnhance + 10,
		Query: logic.Query{
			logic.A(facts.PredAttrRef, v("T"), logic.Any, logic.Any),
			logic.Not(logic.A(facts.PredResolved, v("T"))),
		},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			if err := requireMapping(st); err != nil {
				return false, err
			}
			t := st.Tree
			changed := false
			for _, b := range tuples {
				id := ref(b, "T")
				if !live(t, id, token.KindAttribute) {
					continue
				}
				a := t.Payload(id).(token.Attribute)

				var te token.ID
				var err error
				if a.Alias != "" {
					te, _, err = tableEntity(t, id, a.Alias)
				} else {
					te, err = ownerOf(st, id, a.Column)
				}
				if err != nil {
					return changed, err
				}
				tp := t.Payload(te).(token.TableEntity)
				if !tp.Resolved {
					continue
				}

				col := tp.Table + "." + a.Column
				a.Table = tp.Table
				a.Alias = tp.Name()
				a.Entity = tp.Entity
				if q, ok := st.Mapping.AttributeFor(col); ok {
					attr, owner, err := st.Schema.LookupAttribute(q)
					if err != nil {
						return changed, err
					}
					a.Attribute = q
					a.Entity = owner
					a.DataType = string(attr.DataType)
				} else if !st.Mapping.IsJoinColumn(col) {
					return changed, &er.SchemaError{Code: er.ErrCodeUnknownAttribute, Name: col, Message: "column is not mapped to an attribute"}
				}
				a.Resolved = true
				if err := t.SetPayload(id, a); err != nil {
					return changed, err
				}
				changed = true
			}
			return changed, nil
		},
	}
}
