package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsmodels/internal/model"
	"fsmodels/internal/store"
)

type fixture struct {
	mem       *store.Memory
	publisher *model.Schema
	author    *model.Schema
	book      *model.Schema
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	publisher := model.MustDefine("Publisher", model.Decl{Fields: []model.NamedField{
		{Name: "name", Field: model.Field{Required: true}},
	}})
	author := model.MustDefine("Author", model.Decl{Fields: []model.NamedField{{Name: "name"}}})
	book := model.MustDefine("Book", model.Decl{
		Fields: []model.NamedField{
			{Name: "title", Field: model.Field{Required: true}},
			{Name: "pages", Field: model.Field{Default: model.Const(100)}},
		},
		Relations: []model.NamedRelation{
			{Name: "publisher", Relation: model.Relation{Target: publisher}},
			{Name: "author", Relation: model.Relation{Target: author}},
		},
	})
	return &fixture{mem: store.NewMemory(), publisher: publisher, author: author, book: book}
}

func TestCollectionName(t *testing.T) {
	f := newFixture(t)
	m, err := New(f.mem, model.MustDefine("MyModel", model.Decl{Collection: "my-model"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "my-model", m.Collection())

	m, err = New(f.mem, model.MustDefine("MyModel", model.Decl{}), nil)
	require.NoError(t, err)
	assert.Equal(t, "my_model", m.Collection())
}

func TestSaveNewRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b, err := New(f.mem, f.book, map[string]any{"title": "Dune"})
	require.NoError(t, err)
	assert.Equal(t, Unsaved, b.State())

	res, err := b.Save(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	assert.Equal(t, res.ID, b.ID())
	assert.NotNil(t, res.Result)
	assert.Equal(t, Persisted, b.State())

	// нового документа нет: полная запись, даже при patch=true
	sets := f.mem.Ops("set", "book")
	require.Len(t, sets, 1)
	assert.Empty(t, f.mem.Ops("update", ""))
	assert.Equal(t, map[string]any{
		"title":                 "Dune",
		"pages":                 100,
		"_should_fetch_related": false,
	}, sets[0].Data)
}

func TestSaveInvalidWritesNothing(t *testing.T) {
	f := newFixture(t)
	b, _ := New(f.mem, f.book, nil)

	_, err := b.Save(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRequiredFieldMissing)
	assert.Empty(t, f.mem.Journal())
	assert.Equal(t, Unsaved, b.State())
}

func TestSavePatchVersusOverwrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mem.Put("book", "b1", map[string]any{"title": "Old", "pages": 1, "isbn": "x"})

	b, _ := New(f.mem, f.book, map[string]any{"id": "b1", "title": "New"})
	assert.Equal(t, Saved, b.State())
	_, err := b.Save(ctx, WithPatch(true))
	require.NoError(t, err)

	updates := f.mem.Ops("update", "book")
	require.Len(t, updates, 1)
	assert.Equal(t, true, updates[0].Data[model.FetchRelatedKey])
	assert.Empty(t, f.mem.Ops("set", ""))

	snap, _ := f.mem.Collection("book").Doc("b1").Get(ctx)
	assert.Equal(t, "x", snap.Data["isbn"], "patch keeps unknown keys")

	f.mem.ResetJournal()
	_, err = b.Save(ctx, WithPatch(false))
	require.NoError(t, err)
	sets := f.mem.Ops("set", "book")
	require.Len(t, sets, 1)
	assert.Equal(t, false, sets[0].Data[model.FetchRelatedKey])

	snap, _ = f.mem.Collection("book").Doc("b1").Get(ctx)
	assert.NotContains(t, snap.Data, "isbn", "overwrite clears unset keys")
}

func TestSaveCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pub := model.MustNew(f.publisher, map[string]any{"name": "Acme"})
	b, _ := New(f.mem, f.book, map[string]any{"title": "Dune", "publisher": pub})

	res, err := b.Save(ctx)
	require.NoError(t, err)

	// ровно одна запись вложенной
	pubSets := f.mem.Ops("set", "publisher")
	require.Len(t, pubSets, 1)
	require.NotEmpty(t, pub.ID())
	assert.Equal(t, map[string]any{"name": "Acme", "book_id": res.ID}, pubSets[0].Data)
	assert.NotContains(t, pubSets[0].Data, model.FetchRelatedKey)

	bookSets := f.mem.Ops("set", "book")
	require.Len(t, bookSets, 1)
	doc := bookSets[0].Data
	assert.Equal(t, pub.ID(), doc["publisher_id"])
	assert.NotContains(t, doc, "publisher")
	assert.NotContains(t, doc, "author")
	assert.NotContains(t, doc, "author_id")
	assert.NotContains(t, doc, "id")
}

func TestSaveOverwriteKeepsExistingChild(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mem.Put("publisher", "p1", map[string]any{"name": "Acme", "author_id": "a9"})
	pub := model.MustNew(f.publisher, map[string]any{"id": "p1", "name": "Acme"})
	b, _ := New(f.mem, f.book, map[string]any{"title": "Dune", "publisher": pub})

	res, err := b.Save(ctx, WithPatch(false))
	require.NoError(t, err)

	// родитель перезаписан, ребёнок обновлён частично
	assert.Len(t, f.mem.Ops("set", "book"), 1)
	assert.Empty(t, f.mem.Ops("set", "publisher"))
	updates := f.mem.Ops("update", "publisher")
	require.Len(t, updates, 1)
	assert.Equal(t, res.ID, updates[0].Data["book_id"])

	snap, _ := f.mem.Collection("publisher").Doc("p1").Get(ctx)
	assert.Equal(t, "a9", snap.Data["author_id"])
	assert.Equal(t, res.ID, snap.Data["book_id"])
}

func TestSaveCascadeWithBoundModel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author, _ := New(f.mem, f.author, map[string]any{"id": "a1", "name": "Frank"})
	b, _ := New(f.mem, f.book, map[string]any{"title": "Dune", "author": author})

	_, err := b.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, Persisted, author.State())
	assert.Equal(t, "a1", f.mem.Ops("set", "book")[0].Data["author_id"])
}

func TestSaveDiamondWritesOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	leaf := model.MustDefine("Leaf", model.Decl{})
	mid := model.MustDefine("Mid", model.Decl{Relations: []model.NamedRelation{
		{Name: "leaf", Relation: model.Relation{Target: leaf}},
	}})
	root := model.MustDefine("Root", model.Decl{Relations: []model.NamedRelation{
		{Name: "left", Relation: model.Relation{Target: mid}},
		{Name: "right", Relation: model.Relation{Target: mid}},
	}})
	shared := model.MustNew(mid, map[string]any{"leaf": model.MustNew(leaf, nil)})
	r, _ := New(mem, root, map[string]any{"left": shared, "right": shared})

	_, err := r.Save(ctx)
	require.NoError(t, err)
	assert.Len(t, mem.Ops("set", "mid"), 1)
	assert.Len(t, mem.Ops("set", "leaf"), 1)
}

func TestSaveCycle(t *testing.T) {
	f := newFixture(t)
	node := model.MustDefine("Node", model.Decl{})
	require.NoError(t, node.AddRelation("next", model.Relation{Target: node}))
	a := model.MustNew(node, nil)
	b := model.MustNew(node, map[string]any{"next": a})
	require.NoError(t, a.Set("next", b))

	_, err := Bind(f.mem, a).Save(context.Background())
	assert.ErrorIs(t, err, model.ErrCyclicRelation)
	assert.Empty(t, f.mem.Journal())
}

func TestSaveAdditionalFieldsWin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b, _ := New(f.mem, f.book, map[string]any{"title": "Dune"})

	_, err := b.Save(ctx, WithAdditional(map[string]any{"title": "Override", "shelf": 3}))
	require.NoError(t, err)
	doc := f.mem.Ops("set", "book")[0].Data
	assert.Equal(t, "Override", doc["title"])
	assert.Equal(t, 3, doc["shelf"])
}

func TestSaveStoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	b, _ := New(store.Disabled("offline"), f.book, map[string]any{"title": "Dune"})
	_, err := b.Save(context.Background())
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, Saved, b.State())
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, _ := New(f.mem, f.book, map[string]any{"id": "missing", "title": "Local"})
	got, err := b.Retrieve(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, "Local", b.Get("title"))

	f.mem.Put("book", "b1", map[string]any{"title": "Remote", "pages": 7})
	b, _ = New(f.mem, f.book, map[string]any{"id": "b1", "title": "Local"})

	got, err = b.Retrieve(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "b1", "title": "Remote", "pages": 7}, got)
	assert.Equal(t, "Local", b.Get("title"))

	pub := model.MustNew(f.publisher, map[string]any{"name": "Keep"})
	require.NoError(t, b.Set("publisher", pub))
	_, err = b.Retrieve(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "Remote", b.Get("title"))
	assert.Equal(t, 7, b.Get("pages"))
	assert.Equal(t, "b1", b.ID())
	assert.Same(t, pub, b.Get("publisher"), "relations are not refreshed")
}

func TestSaveThenRetrieve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b, _ := New(f.mem, f.book, map[string]any{"title": "Dune", "pages": 412})
	res, err := b.Save(ctx)
	require.NoError(t, err)

	fresh, _ := New(f.mem, f.book, map[string]any{"id": res.ID})
	got, err := fresh.Retrieve(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got["id"])
	assert.Equal(t, "Dune", fresh.Get("title"))
	assert.Equal(t, 412, fresh.Get("pages"))
}

func TestMissingIdentifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b, _ := New(f.mem, f.book, nil)

	_, err := b.Retrieve(ctx, false)
	assert.ErrorIs(t, err, model.ErrMissingIdentifier)
	_, err = b.Delete(ctx)
	assert.ErrorIs(t, err, model.ErrMissingIdentifier)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, f.mem.Journal())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mem.Put("book", "b1", map[string]any{"title": "Gone"})
	b, _ := New(f.mem, f.book, map[string]any{"id": "b1"})

	res, err := b.Delete(ctx)
	require.NoError(t, err)
	assert.NotNil(t, res.Result)
	assert.Equal(t, 0, f.mem.Count("book"))
	assert.Len(t, f.mem.Ops("delete", "book"), 1)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unsaved", Unsaved.String())
	assert.Equal(t, "saved", Saved.String())
	assert.Equal(t, "persisted", Persisted.String())
	assert.Equal(t, "state(9)", State(9).String())
}
