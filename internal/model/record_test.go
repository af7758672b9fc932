package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isInt(v any) (bool, Detail) {
	_, ok := v.(int)
	return ok, Detail{"detail": "test_field4 must be an int."}
}

func TestNewValidateOnInit(t *testing.T) {
	s := MustDefine("MyModel", Decl{Fields: []NamedField{
		{Name: "test_field", Field: Field{Required: true}},
	}})

	_, err := New(s, map[string]any{"test_field": 7})
	require.NoError(t, err)

	// без WithValidateOnInit ничего не проверяется
	_, err = New(s, map[string]any{"test_field": nil})
	require.NoError(t, err)

	r, err := New(s, map[string]any{"test_field": nil}, WithValidateOnInit())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequiredFieldMissing)
	assert.ErrorIs(t, err, ErrAggregateValidation)
	require.NotNil(t, r)
}

func TestRecordValidate(t *testing.T) {
	s := MustDefine("MyModel", Decl{Fields: []NamedField{
		{Name: "test_field1", Field: Field{Required: true}},
		{Name: "test_field2", Field: Field{Required: true, Default: Generate(func() any { return time.Now() })}},
		{Name: "test_field3", Field: Field{}},
		{Name: "test_field4", Field: Field{Required: true, Validator: isInt}},
	}})

	_, err := New(s, map[string]any{"test_field1": 1, "test_field4": 7}, WithValidateOnInit())
	require.NoError(t, err)

	_, err = New(s, nil, WithValidateOnInit())
	require.Error(t, err)

	defaults := MustNew(s, nil)
	assert.WithinDuration(t, time.Now(), defaults.Get("test_field2").(time.Time), time.Second)

	_, err = New(s, map[string]any{"test_field1": 1, "test_field4": 7.0}, WithValidateOnInit())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestRecordCheckAggregates(t *testing.T) {
	s := MustDefine("Pair", Decl{Fields: []NamedField{
		{Name: "a", Field: Field{Required: true}},
		{Name: "b", Field: Field{Required: true}},
	}})
	r := MustNew(s, nil)

	ok, errs := r.Check()
	assert.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrRequiredFieldMissing, errs["a"].Kind)
	assert.Equal(t, ErrRequiredFieldMissing, errs["b"].Kind)
	assert.False(t, r.IsValid())

	err := r.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 2)
	assert.Equal(t, "Pair", verr.Owner)
	assert.Contains(t, err.Error(), "a, b")

	require.NoError(t, r.Set("a", "x"))
	require.NoError(t, r.Set("b", "y"))
	assert.True(t, r.IsValid())
	assert.NoError(t, r.Validate())
}

func TestRecordFieldDiscovery(t *testing.T) {
	other := MustDefine("Other", Decl{})
	s := MustDefine("Fields", Decl{
		Fields: []NamedField{
			{Name: "test_field1"}, {Name: "test_field2"}, {Name: "test_field3"},
		},
		Relations: []NamedRelation{{Name: "other", Relation: Relation{Target: other}}},
	})
	a, b := MustNew(s, nil), MustNew(s, nil)

	assert.Equal(t, []string{"id", "test_field1", "test_field2", "test_field3"}, a.Fields())
	assert.Equal(t, a.Fields(), b.Fields())
	assert.Equal(t, []string{"other"}, a.Relations())
	assert.NotContains(t, a.Fields(), "other")
	assert.Equal(t, a.Fields(), a.Fields())
}

func TestRecordToMap(t *testing.T) {
	s := MustDefine("Numbers", Decl{Fields: []NamedField{
		{Name: "one", Field: Field{Default: Const(1)}},
		{Name: "two", Field: Field{Default: Const(2)}},
		{Name: "three", Field: Field{Default: Const(3)}},
		{Name: "four", Field: Field{Default: Const(4)}},
	}})
	m := MustNew(s, nil).ToMap()
	for i, key := range []string{"one", "two", "three", "four"} {
		assert.Equal(t, i+1, m[key])
	}
	assert.Contains(t, m, "id")
	assert.Nil(t, m["id"])
}

func TestRecordRoundTrip(t *testing.T) {
	s := MustDefine("Round", Decl{Fields: []NamedField{
		{Name: "name"}, {Name: "count"}, {Name: "tags"},
	}})
	src := MustNew(s, map[string]any{"id": "r1", "name": "x", "count": 3, "tags": []string{"a"}})

	dst := MustNew(s, nil)
	dst.FromMap(src.ToMap())
	assert.Equal(t, src.ToMap(), dst.ToMap())

	// незнакомые ключи игнорируются, отсутствующие обнуляются
	dst.FromMap(map[string]any{"name": "y", "unknown": 1})
	assert.Equal(t, "y", dst.Get("name"))
	assert.Nil(t, dst.Get("count"))
	assert.Nil(t, dst.Get("unknown"))
}

func TestRecordFromMapSkipsRelations(t *testing.T) {
	child := MustDefine("Child", Decl{})
	s := MustDefine("Parent", Decl{
		Fields:    []NamedField{{Name: "name"}},
		Relations: []NamedRelation{{Name: "child", Relation: Relation{Target: child}}},
	})
	c := MustNew(child, nil)
	p := MustNew(s, map[string]any{"child": c})
	p.FromMap(map[string]any{"name": "n", "child": nil})
	assert.Same(t, c, p.Get("child"))
}

func TestRecordSetUnknown(t *testing.T) {
	r := MustNew(MustDefine("Empty", Decl{}), nil)
	err := r.Set("nope", 1)
	assert.ErrorIs(t, err, ErrUnknownField)
	require.NoError(t, r.Set("id", 42))
	assert.Equal(t, "42", r.ID())
	require.NoError(t, r.Set("id", ""))
	assert.Equal(t, "", r.ID())
}

func TestDefaultsPerInstance(t *testing.T) {
	seq := 0
	s := MustDefine("Seq", Decl{Fields: []NamedField{
		{Name: "n", Field: Field{Default: Generate(func() any { seq++; return seq })}},
	}})
	a, b := MustNew(s, nil), MustNew(s, nil)
	assert.Equal(t, 1, a.Get("n"))
	assert.Equal(t, 2, b.Get("n"))

	c := MustNew(s, map[string]any{"n": 10})
	assert.Equal(t, 10, c.Get("n"))
	assert.Equal(t, 2, seq)
}
