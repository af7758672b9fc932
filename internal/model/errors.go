package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrValidation — общая категория: каждый Kind отвечает errors.Is(err, ErrValidation).
var ErrValidation = errors.New("validation error")

// Kind — код ошибки. Значения совпадают с кодами, которые отдаёт API.
type Kind string

func (k Kind) Error() string { return string(k) }

func (k Kind) Is(target error) bool { return target == ErrValidation }

// Коды ошибок
const (
	ErrRequiredFieldMissing Kind = "required"
	ErrValidationFailed     Kind = "validation_failed"
	ErrTypeMismatch         Kind = "type_mismatch"
	ErrMissingIdentifier    Kind = "missing_identifier"
	ErrAggregateValidation  Kind = "invalid_record"
	ErrCyclicRelation       Kind = "cyclic_relation"
	ErrUnknownField         Kind = "unknown_field"
	ErrReservedName         Kind = "reserved_name"
	ErrDuplicateField       Kind = "duplicate_field"
	ErrSchemaFrozen         Kind = "schema_frozen"
)

// Detail — произвольные подробности, которые возвращает валидатор.
type Detail map[string]any

// FieldError описывает нарушение контракта одного поля или связи.
type FieldError struct {
	Kind    Kind
	Field   string
	Owner   string
	Message string
	Detail  Detail
	// Nested — ошибки вложенной записи (только для связей)
	Nested map[string]*FieldError
}

func (e *FieldError) Error() string { return e.Message }

// Unwrap отдаёт код и все вложенные ошибки, чтобы errors.Is видел их сквозь дерево.
func (e *FieldError) Unwrap() []error {
	out := []error{e.Kind}
	for _, name := range sortedKeys(e.Nested) {
		out = append(out, e.Nested[name])
	}
	return out
}

// ValidationError — агрегат по всей записи. Содержит полную карту ошибок, а не первую.
type ValidationError struct {
	Owner  string
	Errors map[string]*FieldError
}

func (e *ValidationError) Error() string {
	names := sortedKeys(e.Errors)
	return fmt.Sprintf("%s: %d invalid field(s): %s", e.Owner, len(names), strings.Join(names, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrAggregateValidation || target == ErrValidation
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors))
	for _, name := range sortedKeys(e.Errors) {
		out = append(out, e.Errors[name])
	}
	return out
}

// Flatten разворачивает вложенные ошибки в плоский список с путями вида "publisher.name".
func Flatten(errs map[string]*FieldError) []*FieldError {
	var out []*FieldError
	var walk func(prefix string, m map[string]*FieldError)
	walk = func(prefix string, m map[string]*FieldError) {
		for _, name := range sortedKeys(m) {
			fe := m[name]
			path := prefix + name
			if len(fe.Nested) > 0 {
				walk(path+".", fe.Nested)
				if fe.Detail == nil {
					continue
				}
			}
			cp := *fe
			cp.Field = path
			cp.Nested = nil
			out = append(out, &cp)
		}
	}
	walk("", errs)
	return out
}

func sortedKeys(m map[string]*FieldError) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
