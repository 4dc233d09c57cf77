package er

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// libraryDoc is a small library schema with one relationship of each join
// kind.
func libraryDoc() Document {
	return Document{
		Entities: []EntityDoc{
			{Name: "Book", Attributes: []AttributeDoc{
				{Name: "isbn", Key: true, Type: "STRING"},
				{Name: "title", Type: "STRING", Description: "title"},
				{Name: "price", Type: "DOLLARS"},
			}},
			{Name: "Author", Attributes: []AttributeDoc{
				{Name: "id", Key: true, Type: "INTEGER"},
				{Name: "name", Type: "STRING", Children: []AttributeDoc{
					{Name: "first", Type: "STRING"},
					{Name: "last", Type: "STRING"},
				}},
			}},
			{Name: "Shelf", Attributes: []AttributeDoc{
				{Name: "code", Key: true},
			}},
		},
		Relationships: []RelationshipDoc{
			{Name: "Wrote", Phrase: "wrote", Edges: []EdgeDoc{
				{Entity: "Author", Cardinality: "1..N"},
				{Entity: "Book", Cardinality: "1..N"},
			}, Attributes: []AttributeDoc{{Name: "position", Type: "INTEGER"}}},
			{Name: "Holds", Edges: []EdgeDoc{
				{Entity: "Shelf", Cardinality: "0..N"},
				{Entity: "Book", Cardinality: "0..1"},
			}},
			{Name: "Located", Edges: []EdgeDoc{
				{Entity: "Book", Cardinality: "0..1"},
				{Entity: "Shelf", Cardinality: "0..N"},
			}},
		},
		Mapping: MappingDoc{
			Columns: []ColumnDoc{
				{Attribute: "Book.isbn", Column: "book.isbn"},
				{Attribute: "Book.title", Column: "book.title"},
				{Attribute: "Book.price", Column: "book.price"},
				{Attribute: "Author.id", Column: "author.id"},
				{Attribute: "Author.name.first", Column: "author.first_name"},
				{Attribute: "Author.name.last", Column: "author.last_name"},
				{Attribute: "Shelf.code", Column: "shelf.code"},
				{Attribute: "Wrote.position", Column: "wrote.position"},
			},
			Joins: []JoinDoc{
				{Relationship: "Wrote", Kind: "lookup-table", Table: "wrote", Keys: []KeyPairDoc{
					{PK: "author.id", FK: "wrote.author_id"},
					{PK: "book.isbn", FK: "wrote.isbn"},
				}},
				{Relationship: "Holds", Kind: "foreign-key", Keys: []KeyPairDoc{{PK: "shelf.code", FK: "book.shelf"}}},
				{Relationship: "Located", Kind: "merged", Entity: "Book"},
			},
		},
	}
}

func TestFromDocument_Library(t *testing.T) {
	s, m, err := FromDocument(libraryDoc())
	require.NoError(t, err)

	a, owner, err := s.LookupAttribute("Author.name.last")
	require.NoError(t, err)
	assert.Equal(t, "Author", owner)
	assert.Equal(t, "last", a.Name)
	assert.True(t, s.Entity("Author").Attribute("name").Composite())

	col, ok := m.ColumnFor("Author.name.first")
	assert.True(t, ok)
	assert.Equal(t, "author.first_name", col)

	attr, ok := m.AttributeFor("BOOK.Title")
	assert.True(t, ok, "column lookups ignore case")
	assert.Equal(t, "Book.title", attr)

	ent, ok := m.EntityForTable("book")
	assert.True(t, ok)
	assert.Equal(t, "Book", ent)

	_, ok = m.EntityForTable("wrote")
	assert.False(t, ok, "relationship attributes do not claim their table")

	j, ok := m.Join("Wrote")
	require.True(t, ok)
	assert.Equal(t, JoinLookupTable, j.Kind)
	assert.Equal(t, []string{"book", "author", "shelf", "wrote"}, m.Tables())
}

func TestSchema_DuplicateNames(t *testing.T) {
	s := NewSchema()
	require.NoError(t, s.AddEntity(NewEntity("Book")))

	err := s.AddEntity(NewEntity("Book"))
	assert.True(t, IsSchemaError(err, ErrCodeDuplicate))

	r := NewRelationship("Book", Edge{Entity: "Book"}, Edge{Entity: "Book", Role: "x"})
	err = s.AddRelationship(r)
	assert.True(t, IsSchemaError(err, ErrCodeDuplicate), "entities and relationships share one namespace")

	e := NewEntity("Shelf")
	require.NoError(t, e.AddAttribute(NewAttribute("code")))
	assert.True(t, IsSchemaError(e.AddAttribute(NewAttribute("code")), ErrCodeDuplicate))
}

func TestSchema_RelationshipChecks(t *testing.T) {
	s := NewSchema()
	require.NoError(t, s.AddEntity(NewEntity("Person")))

	err := s.AddRelationship(NewRelationship("Owns", Edge{Entity: "Person"}, Edge{Entity: "Car"}))
	assert.True(t, IsSchemaError(err, ErrCodeUnknownEntity))

	err = s.AddRelationship(NewRelationship("Knows", Edge{Entity: "Person"}, Edge{Entity: "Person"}))
	assert.True(t, IsSchemaError(err, ErrCodeInvalid), "recursive relationships need roles")

	rec := NewRelationship("Parent", Edge{Entity: "Person", Role: "parent"}, Edge{Entity: "Person", Role: "child"})
	require.NoError(t, s.AddRelationship(rec))
	assert.True(t, rec.Recursive())
	assert.Len(t, s.RelationshipsOf("Person"), 1)
}

func TestMapping_Errors(t *testing.T) {
	s, _, err := FromDocument(libraryDoc())
	require.NoError(t, err)
	m := NewMapping(s)

	assert.True(t, IsSchemaError(m.MapAttribute("title", "book.title"), ErrCodeUnqualified))
	assert.True(t, IsSchemaError(m.MapAttribute("Book.title", "title"), ErrCodeUnqualified))
	assert.True(t, IsSchemaError(m.MapAttribute("Book.nope", "book.nope"), ErrCodeUnknownAttribute))

	require.NoError(t, m.MapAttribute("Book.title", "book.title"))
	assert.True(t, IsSchemaError(m.MapAttribute("Book.price", "book.title"), ErrCodeConflict))
	assert.True(t, IsSchemaError(m.MapAttribute("Shelf.code", "book.code"), ErrCodeConflict),
		"one table cannot hold two entities")

	err = m.MapRelationship("Holds", Join{Kind: JoinForeignKey})
	assert.True(t, IsSchemaError(err, ErrCodeInvalidJoin))
	err = m.MapRelationship("Located", MergedJoin("Author"))
	assert.True(t, IsSchemaError(err, ErrCodeInvalidJoin))

	assert.True(t, IsSchemaError(m.Validate(), ErrCodeUnmapped))
}

func TestParseCardinality(t *testing.T) {
	tests := []struct {
		in      string
		want    Cardinality
		wantErr bool
	}{
		{"0..1", ZeroOrOne, false},
		{"1..N", OneOrMany, false},
		{"0..*", ZeroOrMany, false},
		{"2..3", Cardinality{Min: 2, Max: 3}, false},
		{"3..2", Cardinality{}, true},
		{"many", Cardinality{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCardinality(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, OneOrMany.Total())
	assert.False(t, ZeroOrOne.Total())
}

func TestYAMLRoundTrip(t *testing.T) {
	s, m, err := FromDocument(libraryDoc())
	require.NoError(t, err)

	data, err := MarshalYAML(s, m)
	require.NoError(t, err)

	s2, m2, err := UnmarshalYAML(data)
	require.NoError(t, err)
	assert.Equal(t, ToDocument(s, m), ToDocument(s2, m2))
	assert.Equal(t, s, s2)
}

func TestCUERoundTrip(t *testing.T) {
	s, m, err := FromDocument(libraryDoc())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "library.cue")
	require.NoError(t, WriteFile(path, s, m))

	s2, m2, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ToDocument(s, m), ToDocument(s2, m2))
}

func TestLoadFile_YAML(t *testing.T) {
	src := `
entities:
  - name: Team
    attributes:
      - name: id
        key: true
        type: integer
mapping:
  columns:
    - attribute: Team.id
      column: team.id
`
	path := filepath.Join(t.TempDir(), "team.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	s, m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, TypeInteger, s.Entity("Team").Attribute("id").DataType)
	ent, _ := m.EntityForTable("team")
	assert.Equal(t, "Team", ent)
}

func TestLoadFile_CUESource(t *testing.T) {
	src := `
entities: [{
	name: "Team"
	attributes: [{name: "id", key: true}]
}]
mapping: columns: [{attribute: "Team.id", column: "team.id"}]
`
	path := filepath.Join(t.TempDir(), "team.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	s, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, s.Entity("Team").Attribute("id").Key)
}

func TestLoadFile_UnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, _, err := LoadFile(path)
	assert.True(t, IsSchemaError(err, ErrCodeInvalid))
}

func TestMapping_JoinLookups(t *testing.T) {
	_, m, err := FromDocument(libraryDoc())
	require.NoError(t, err)

	rel, ok := m.LookupRelationship("WROTE")
	require.True(t, ok)
	assert.Equal(t, "Wrote", rel)
	_, ok = m.LookupRelationship("book")
	assert.False(t, ok)

	assert.True(t, m.IsJoinColumn("wrote.author_id"))
	assert.True(t, m.IsJoinColumn("book.shelf"))
	assert.False(t, m.IsJoinColumn("book.title"))
}
