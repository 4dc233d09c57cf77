// Package joindetect recognizes which side of a two-table join plays the
// primary-key role of a key relationship, independent of how the query
// aliased the tables or ordered the operands.
package joindetect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/roach88/sqltutor/internal/er"
)

// Match names the table references playing each role. Names are aliases,
// or table names for unaliased references.
type Match struct {
	PK      string
	FK      string
	PKTable string
	FKTable string
	// Condition is the equality that established the match.
	Condition *sqlparser.ComparisonExpr
}

type column struct {
	table string
	name  string
}

// Detector matches one key relationship.
type Detector struct {
	pk column
	fk column
}

// New returns a Detector for the key pair pk (referenced) and fk
// (referencing), both written table.column.
func New(pk, fk string) (*Detector, error) {
	pt, pc, err := er.SplitColumn(er.Column(pk))
	if err != nil {
		return nil, fmt.Errorf("primary key: %w", err)
	}
	ft, fc, err := er.SplitColumn(er.Column(fk))
	if err != nil {
		return nil, fmt.Errorf("foreign key: %w", err)
	}
	return &Detector{pk: column{pt, pc}, fk: column{ft, fc}}, nil
}

type tableRef struct {
	table string
	alias string
}

func (r tableRef) name() string {
	if r.alias != "" {
		return r.alias
	}
	return r.table
}

// Detect scans sel's FROM clause. It reports a match only when the clause
// holds exactly two table references and an equality between the key
// columns connects them, either in a JOIN ... ON condition or a top-level
// WHERE conjunct.
func (d *Detector) Detect(sel *sqlparser.Select) (Match, bool, error) {
	if sel == nil {
		return Match{}, false, errors.New("detect join: nil select")
	}
	var refs []tableRef
	var conds []sqlparser.Expr
	if ok := collect(sel.From, &refs, &conds); !ok || len(refs) != 2 {
		return Match{}, false, nil
	}
	if sel.Where != nil {
		conds = append(conds, sel.Where.Expr)
	}

	for _, cond := range conds {
		for _, c := range conjuncts(cond) {
			cmp, ok := c.(*sqlparser.ComparisonExpr)
			if !ok || cmp.Operator != sqlparser.EqualStr {
				continue
			}
			l, lok := cmp.Left.(*sqlparser.ColName)
			r, rok := cmp.Right.(*sqlparser.ColName)
			if !lok || !rok {
				continue
			}
			if m, ok := d.match(refs, cmp, l, r); ok {
				return m, true, nil
			}
			if m, ok := d.match(refs, cmp, r, l); ok {
				return m, true, nil
			}
		}
	}
	return Match{}, false, nil
}

// match checks pkCol against the primary key and fkCol against the foreign
// key, requiring them to come from different references.
func (d *Detector) match(refs []tableRef, cmp *sqlparser.ComparisonExpr, pkCol, fkCol *sqlparser.ColName) (Match, bool) {
	pi := resolve(refs, pkCol, d.pk)
	fi := resolve(refs, fkCol, d.fk)
	if pi < 0 || fi < 0 || pi == fi {
		return Match{}, false
	}
	return Match{
		PK:        refs[pi].name(),
		FK:        refs[fi].name(),
		PKTable:   refs[pi].table,
		FKTable:   refs[fi].table,
		Condition: cmp,
	}, true
}

// resolve returns the index of the reference col belongs to if col names
// the key column want, or -1.
func resolve(refs []tableRef, col *sqlparser.ColName, want column) int {
	if !strings.EqualFold(col.Name.String(), want.name) {
		return -1
	}
	qual := col.Qualifier.Name.String()
	if qual != "" {
		for i, r := range refs {
			if strings.EqualFold(r.name(), qual) && r.table == want.table {
				return i
			}
		}
		return -1
	}
	// Unqualified columns are only unambiguous when the tables differ.
	if refs[0].table == refs[1].table {
		return -1
	}
	for i, r := range refs {
		if r.table == want.table {
			return i
		}
	}
	return -1
}

// collect flattens the FROM clause into table references and ON
// conditions. It returns false for derived tables and USING joins.
func collect(exprs sqlparser.TableExprs, refs *[]tableRef, conds *[]sqlparser.Expr) bool {
	for _, te := range exprs {
		switch t := te.(type) {
		case *sqlparser.AliasedTableExpr:
			name, ok := t.Expr.(sqlparser.TableName)
			if !ok {
				return false
			}
			*refs = append(*refs, tableRef{table: er.Column(name.Name.String()), alias: t.As.String()})
		case *sqlparser.JoinTableExpr:
			if len(t.Condition.Using) > 0 {
				return false
			}
			if !collect(sqlparser.TableExprs{t.LeftExpr, t.RightExpr}, refs, conds) {
				return false
			}
			if t.Condition.On != nil {
				*conds = append(*conds, t.Condition.On)
			}
		case *sqlparser.ParenTableExpr:
			if !collect(t.Exprs, refs, conds) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func conjuncts(e sqlparser.Expr) []sqlparser.Expr {
	switch v := e.(type) {
	case *sqlparser.AndExpr:
		return append(conjuncts(v.Left), conjuncts(v.Right)...)
	case *sqlparser.ParenExpr:
		return conjuncts(v.Expr)
	default:
		return []sqlparser.Expr{e}
	}
}
