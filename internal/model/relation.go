package model

import (
	"fmt"
	"reflect"
)

// Relation — поле, значение которого обязано быть записью схемы Target или её наследника (или nil).
// Хранится по ссылке (id), не по значению.
type Relation struct {
	Field
	Target *Schema
}

// recordHolder реализуют *Record и всё, что его встраивает (например persist.Model).
type recordHolder interface {
	record() *Record
}

// AsRecord достаёт *Record из значения слота связи.
func AsRecord(v any) (*Record, bool) {
	h, ok := v.(recordHolder)
	if !ok {
		return nil, false
	}
	// типизированный nil у обёртки: promoted-метод разыменовал бы nil
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, false
	}
	r := h.record()
	return r, r != nil
}

// Check: запись нужного типа — рекурсия во вложенную валидацию плюс локальный предикат;
// чужой тип — ErrTypeMismatch; nil — обычная проверка Field.
func (r Relation) Check(b Binding, value any) *FieldError {
	return r.check(b, value, nil)
}

func (r Relation) Validate(b Binding, value any) error {
	if fe := r.Check(b, value); fe != nil {
		return fe
	}
	return nil
}

func (r Relation) check(b Binding, value any, path map[*Record]bool) *FieldError {
	nested, isRec := AsRecord(value)
	if !isRec {
		// nil или типизированный nil (*Record)(nil)
		if _, holder := value.(recordHolder); value == nil || holder {
			return r.Field.Check(b, nil)
		}
		return r.mismatch(b, fmt.Sprintf("%T", value))
	}
	if !nested.schema.Is(r.Target) {
		return r.mismatch(b, nested.schema.Name())
	}
	if path[nested] {
		return &FieldError{
			Kind:    ErrCyclicRelation,
			Field:   b.Name,
			Owner:   b.Owner,
			Message: fmt.Sprintf("relation %s points back to a record already being validated", b),
		}
	}

	_, nestedErrs := nested.check(path)
	var local *FieldError
	if r.Validator != nil {
		local = r.Field.Check(b, value)
	}
	if len(nestedErrs) == 0 && local == nil {
		return nil
	}
	fe := &FieldError{
		Kind:    ErrValidationFailed,
		Field:   b.Name,
		Owner:   b.Owner,
		Message: fmt.Sprintf("related %s of %s is invalid", r.Target.Name(), b),
		Nested:  nestedErrs,
	}
	if local != nil {
		fe.Detail = local.Detail
		if len(nestedErrs) == 0 {
			fe.Message = local.Message
		}
	}
	return fe
}

func (r Relation) mismatch(b Binding, actual string) *FieldError {
	expected := "<nil>"
	if r.Target != nil {
		expected = r.Target.Name()
	}
	msg := fmt.Sprintf("field %s must be an instance of %s, got %s", b, expected, actual)
	return &FieldError{
		Kind:    ErrTypeMismatch,
		Field:   b.Name,
		Owner:   b.Owner,
		Message: msg,
		Detail:  Detail{"message": msg, "expected": expected, "actual": actual},
	}
}
