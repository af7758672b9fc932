package dsl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsmodels/internal/model"
	"fsmodels/internal/reference"
)

const library = `
module library

# издательства
entity Publisher (collection=publishers):
  name: string required
  founded: date

entity Book:
  title: string required pattern=^[A-Z]
  isbn: string validate=isbn13
  status: enum[draft, published] default=draft
  pages: int min=1 max=5000 default=100
  price: float
  currency: string catalog=currency
  created: datetime default=now
  code: string default=ulid
  tags: array[string] default="a,b"
  authors: array[ref[Author]]
  publisher: ref[Publisher] required
  author: ref[Author]

entity Author:
  name: string options: required
`

func parse(t *testing.T, src string) []*Entity {
	t.Helper()
	ents, err := Parse(strings.NewReader(src), "library.dsl")
	require.NoError(t, err)
	return ents
}

func catalogs() map[string]reference.EnumDirectory {
	return map[string]reference.EnumDirectory{
		"currency": {Name: "currency", Items: []reference.EnumItem{{Code: "EUR"}, {Code: "USD"}}},
	}
}

func TestParse(t *testing.T) {
	ents := parse(t, library)
	require.Len(t, ents, 3)

	pub := ents[0]
	assert.Equal(t, "Publisher", pub.Name)
	assert.Equal(t, "library", pub.Module)
	assert.Equal(t, "publishers", pub.Collection)
	assert.Equal(t, "library.dsl", pub.Source)

	book := ents[1]
	byName := map[string]Field{}
	for _, f := range book.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "^[A-Z]", byName["title"].Options["pattern"])
	assert.True(t, byName["title"].Required())
	assert.Equal(t, "enum", byName["status"].Type)
	assert.Equal(t, []string{"draft", "published"}, byName["status"].Enum)
	assert.Equal(t, "draft", byName["status"].Options["default"])
	assert.Equal(t, "a,b", byName["tags"].Options["default"])

	authors := byName["authors"]
	assert.Equal(t, "array", authors.Type)
	assert.Equal(t, "ref", authors.ElemType)
	assert.Equal(t, "Author", authors.RefTarget)
	assert.False(t, authors.IsRelation())

	assert.True(t, byName["publisher"].IsRelation())
	assert.Equal(t, "Publisher", byName["publisher"].RefTarget)

	assert.True(t, ents[2].Fields[0].Required())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("entity Broken (collection=x\n"), "x.dsl")
	assert.ErrorContains(t, err, "x.dsl:1")

	_, err = Parse(strings.NewReader("entity A:\n  just words\n"), "y.dsl")
	assert.ErrorContains(t, err, "y.dsl:2")
}

func TestSplitOptionTokens(t *testing.T) {
	got := splitOptionTokens(`required pattern=^[A-Z 0-9]+$ label='two words'`)
	assert.Equal(t, []string{"required", "pattern=^[A-Z 0-9]+$", "label='two words'"}, got)
}

func TestBuild(t *testing.T) {
	reg, err := Build(parse(t, library), catalogs())
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	book, ok := reg.Lookup("Book")
	require.True(t, ok)
	assert.Equal(t, "book", book.Collection())
	assert.Equal(t, []string{"publisher", "author"}, book.Relations())

	rel, _ := book.Relation("publisher")
	assert.True(t, rel.Required)
	pub, _ := reg.Lookup("Publisher")
	assert.Same(t, pub, rel.Target)
	assert.Equal(t, "publishers", pub.Collection())

	rec := model.MustNew(book, map[string]any{"title": "Dune"})
	assert.Equal(t, "draft", rec.Get("status"))
	assert.Equal(t, int64(100), rec.Get("pages"))
	assert.Equal(t, []any{"a", "b"}, rec.Get("tags"))
	assert.Len(t, rec.Get("code"), 26)
	assert.NotEmpty(t, rec.Get("created"))

	// связь publisher обязательна
	_, errs := rec.Check()
	require.Contains(t, errs, "publisher")
	assert.ErrorIs(t, errs["publisher"], model.ErrRequiredFieldMissing)

	require.NoError(t, rec.Set("publisher", model.MustNew(pub, map[string]any{"name": "Acme"})))
	assert.NoError(t, rec.Validate())
}

func TestBuildFieldValidators(t *testing.T) {
	reg, err := Build(parse(t, library), catalogs())
	require.NoError(t, err)
	book, _ := reg.Lookup("Book")
	pub, _ := reg.Lookup("Publisher")

	cases := []struct {
		field string
		value any
		ok    bool
	}{
		{"title", "Dune", true},
		{"title", "dune", false},
		{"title", 42, false},
		{"pages", 412.0, true},
		{"pages", 41.5, false},
		{"pages", 0.0, false},
		{"pages", 9000, false},
		{"pages", "12", false},
		{"status", "published", true},
		{"status", "archived", false},
		{"currency", "EUR", true},
		{"currency", "RUB", false},
		{"isbn", "9780306406157", true},
		{"isbn", "nope", false},
		{"price", 9.99, true},
		{"created", "2024-01-02T03:04:05Z", true},
		{"created", "yesterday", false},
		{"tags", []any{"x"}, true},
		{"tags", "x", true},
		{"tags", []any{1}, false},
		{"authors", []any{"a1", "a2"}, true},
		{"authors", []any{""}, false},
	}
	for _, tc := range cases {
		rec := model.MustNew(book, map[string]any{
			"title":     "Dune",
			"publisher": model.MustNew(pub, map[string]any{"name": "Acme"}),
			tc.field:    tc.value,
		})
		err := rec.Validate()
		if tc.ok {
			assert.NoError(t, err, "%s=%v", tc.field, tc.value)
		} else {
			assert.ErrorIs(t, err, model.ErrValidationFailed, "%s=%v", tc.field, tc.value)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	tests := map[string]string{
		"unknown type":    "entity A:\n  x: blob\n",
		"unknown target":  "entity A:\n  b: ref[Missing]\n",
		"bad pattern":     "entity A:\n  x: string pattern=^[a\n",
		"bad default":     "entity A:\n  x: int default=many\n",
		"unknown catalog": "entity A:\n  x: string catalog=nope\n",
		"bad bound":       "entity A:\n  x: int min=one\n",
		"duplicate":       "entity A:\n  x: string\nentity A:\n  y: string\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Build(parse(t, src), nil)
			assert.Error(t, err)
		})
	}
}

func TestBuildLint(t *testing.T) {
	src := `
entity A (collection=shared):
  x: string
entity B (collection=shared):
  y: string
`
	reg, err := Build(parse(t, src), nil)
	require.NotNil(t, reg)
	var lint *LintError
	require.True(t, errors.As(err, &lint))
	require.Len(t, lint.Issues, 1)
	assert.Equal(t, "collection_shared", lint.Issues[0].Code)
}

func TestLoadAllEntities(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.dsl"), []byte("module m\nentity A:\n  x: string\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.DSL"), []byte("module m\nentity B:\n  a: ref[m.A]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("entity C:\n"), 0o644))

	ents, err := LoadAllEntities(root)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "A", ents[0].Name)
	assert.Equal(t, "B", ents[1].Name)

	reg, err := Build(ents, nil)
	require.NoError(t, err)
	b, _ := reg.Lookup("B")
	rel, ok := b.Relation("a")
	require.True(t, ok)
	assert.Equal(t, "A", rel.Target.Name())

	require.NoError(t, os.WriteFile(filepath.Join(root, "c.dsl"), []byte("entity NoModule:\n  x: string\n"), 0o644))
	_, err = LoadAllEntities(root)
	assert.ErrorContains(t, err, "has no module")
}
