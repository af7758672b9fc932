package model

import (
	"fmt"
)

// Record — экземпляр схемы: текущие значения полей и связей.
// Набор имён фиксируется при создании и дальше не меняется.
type Record struct {
	schema    *Schema
	fields    []NamedField
	relations []NamedRelation
	values    map[string]any
}

type options struct {
	validateOnInit bool
}

// Option настраивает New.
type Option func(*options)

// WithValidateOnInit — проверять значения сразу при создании.
func WithValidateOnInit() Option {
	return func(o *options) { o.validateOnInit = true }
}

// New создаёт запись: значение из init, иначе default поля.
// Поля и связи обрабатываются двумя независимыми проходами, оба всегда доходят до конца.
// При WithValidateOnInit все ошибки собираются в *ValidationError; запись возвращается и вместе с ошибкой.
func New(s *Schema, init map[string]any, opts ...Option) (*Record, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s.freeze()
	fields, relations := s.snapshot()
	r := &Record{
		schema:    s,
		fields:    fields,
		relations: relations,
		values:    make(map[string]any, len(fields)+len(relations)),
	}

	errs := map[string]*FieldError{}
	// проход 1: поля
	for _, f := range fields {
		v, ok := init[f.Name]
		if !ok {
			v = f.DefaultValue()
		}
		r.values[f.Name] = v
		if o.validateOnInit {
			if fe := f.Check(r.binding(f.Name), v); fe != nil {
				errs[f.Name] = fe
			}
		}
	}
	// проход 2: связи
	for _, rel := range relations {
		v, ok := init[rel.Name]
		if !ok {
			v = rel.DefaultValue()
		}
		r.values[rel.Name] = v
		if o.validateOnInit {
			if fe := rel.check(r.binding(rel.Name), v, map[*Record]bool{r: true}); fe != nil {
				errs[rel.Name] = fe
			}
		}
	}
	if len(errs) > 0 {
		return r, &ValidationError{Owner: s.Name(), Errors: errs}
	}
	return r, nil
}

// MustNew — New с паникой на ошибке (ошибка возможна только с WithValidateOnInit).
func MustNew(s *Schema, init map[string]any, opts ...Option) *Record {
	r, err := New(s, init, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Record) record() *Record { return r }

func (r *Record) binding(name string) Binding {
	return Binding{Name: name, Owner: r.schema.Name()}
}

func (r *Record) Schema() *Schema { return r.schema }

// Fields — имена полей записи (без связей).
func (r *Record) Fields() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Name
	}
	return out
}

// Relations — имена связей записи.
func (r *Record) Relations() []string {
	out := make([]string, len(r.relations))
	for i, rel := range r.relations {
		out[i] = rel.Name
	}
	return out
}

// Get — текущее значение; для необъявленного имени nil.
func (r *Record) Get(name string) any { return r.values[name] }

// Set присваивает значение объявленному полю или связи. Проверка — только при Validate.
func (r *Record) Set(name string, v any) error {
	if _, ok := r.values[name]; !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, r.schema.Name(), name)
	}
	r.values[name] = v
	return nil
}

// ID — идентификатор строкой; пустая строка для "ложного" значения.
func (r *Record) ID() string {
	v := r.values[IDField]
	if IsBlank(v) {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Check проверяет все поля и связи без раннего выхода; в карту попадают только ошибки.
func (r *Record) Check() (bool, map[string]*FieldError) {
	return r.check(nil)
}

func (r *Record) check(path map[*Record]bool) (bool, map[string]*FieldError) {
	if path == nil {
		path = map[*Record]bool{}
	}
	path[r] = true
	defer delete(path, r)

	errs := map[string]*FieldError{}
	for _, f := range r.fields {
		if fe := f.Check(r.binding(f.Name), r.values[f.Name]); fe != nil {
			errs[f.Name] = fe
		}
	}
	for _, rel := range r.relations {
		if fe := rel.check(r.binding(rel.Name), r.values[rel.Name], path); fe != nil {
			errs[rel.Name] = fe
		}
	}
	return len(errs) == 0, errs
}

// Validate — Check в виде ошибки: *ValidationError с полной картой.
func (r *Record) Validate() error {
	if ok, errs := r.Check(); !ok {
		return &ValidationError{Owner: r.schema.Name(), Errors: errs}
	}
	return nil
}

func (r *Record) IsValid() bool {
	ok, _ := r.Check()
	return ok
}

// mapper — всё, что умеет сериализоваться в карту (вложенные записи).
type mapper interface {
	ToMap() map[string]any
}

// ToMap — все поля и связи; вложенные записи сериализуются рекурсивно.
// При цикле вместо повторного обхода подставляется id вложенной записи.
func (r *Record) ToMap() map[string]any {
	return r.toMap(map[*Record]bool{})
}

func (r *Record) toMap(path map[*Record]bool) map[string]any {
	path[r] = true
	defer delete(path, r)

	out := make(map[string]any, len(r.values))
	for _, f := range r.fields {
		out[f.Name] = r.serialize(r.values[f.Name], path)
	}
	for _, rel := range r.relations {
		out[rel.Name] = r.serialize(r.values[rel.Name], path)
	}
	return out
}

func (r *Record) serialize(v any, path map[*Record]bool) any {
	if nested, ok := AsRecord(v); ok {
		if path[nested] {
			return nested.ID()
		}
		return nested.toMap(path)
	}
	if m, ok := v.(mapper); ok {
		return m.ToMap()
	}
	return v
}

// FromMap перезаписывает только поля (связи не трогает): m[name] или nil.
// Незнакомые ключи игнорируются.
func (r *Record) FromMap(m map[string]any) {
	for _, f := range r.fields {
		r.values[f.Name] = m[f.Name]
	}
}

func (r *Record) String() string {
	return fmt.Sprintf("%s(%s)", r.schema.Name(), r.ID())
}
