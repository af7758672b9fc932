package model

import (
	"fmt"
	"reflect"
)

// Validator проверяет значение. ok=false — значение отклонено, detail уходит в ошибку.
type Validator func(value any) (ok bool, detail Detail)

// DefaultRule порождает значение по умолчанию.
// Варианты: Const, Generate (без аргументов), Param (с аргументами).
type DefaultRule interface {
	Default(args ...any) any
}

type constRule struct{ v any }

func (r constRule) Default(...any) any { return r.v }

type generateRule func() any

func (r generateRule) Default(...any) any { return r() }

type paramRule func(args ...any) any

func (r paramRule) Default(args ...any) any { return r(args...) }

// Const — константа по умолчанию.
func Const(v any) DefaultRule { return constRule{v: v} }

// Generate — генератор без аргументов (time.Now, новый id и т.п.).
func Generate(fn func() any) DefaultRule { return generateRule(fn) }

// Param — параметризованный генератор; аргументы DefaultValue передаются как есть.
func Param(fn func(args ...any) any) DefaultRule { return paramRule(fn) }

// Binding — диагностическая привязка поля: имя и владелец.
// Передаётся явно, сам Field не мутирует.
type Binding struct {
	Name  string
	Owner string
}

func (b Binding) String() string {
	if b.Owner == "" {
		return b.Name
	}
	return b.Owner + "." + b.Name
}

// Field — контракт одного атрибута. Объявляется один раз на схему и не меняется.
type Field struct {
	Required  bool
	Default   DefaultRule
	Validator Validator
}

// DefaultValue вычисляет значение по умолчанию; без правила — nil.
func (f Field) DefaultValue(args ...any) any {
	if f.Default == nil {
		return nil
	}
	return f.Default.Default(args...)
}

// Check — проверка без "исключения": nil, если значение прошло.
// Пустые, но присутствующие значения ("", 0, false) для required считаются отсутствующими.
func (f Field) Check(b Binding, value any) *FieldError {
	if f.Required && IsBlank(value) {
		msg := fmt.Sprintf("field %s is required but received no default and no value", b)
		return &FieldError{
			Kind:    ErrRequiredFieldMissing,
			Field:   b.Name,
			Owner:   b.Owner,
			Message: msg,
			Detail:  Detail{"message": msg},
		}
	}
	if f.Validator == nil {
		return nil
	}
	ok, detail := f.Validator(value)
	if ok {
		return nil
	}
	return &FieldError{
		Kind:    ErrValidationFailed,
		Field:   b.Name,
		Owner:   b.Owner,
		Message: fmt.Sprintf("value of %s failed validation", b),
		Detail:  detail,
	}
}

// Validate — та же проверка, но результат в виде error.
func (f Field) Validate(b Binding, value any) error {
	if fe := f.Check(b, value); fe != nil {
		return fe
	}
	return nil
}

// IsBlank повторяет "ложность": nil, нулевые числа, false, пустые строки и коллекции, nil-указатели.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Complex64, reflect.Complex128:
		return rv.Complex() == 0
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
