package dsl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"fsmodels/internal/model"
	"fsmodels/internal/reference"
)

// LintError — реестр собран, но линтер нашёл блокирующие противоречия.
type LintError struct {
	Issues []model.SchemaIssue
}

func (e *LintError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, it := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s.%s: %s", it.Entity, it.Field, it.Code))
	}
	return fmt.Sprintf("schema has %d blocking issue(s): %s", len(e.Issues), strings.Join(parts, "; "))
}

// Build создаёт схемы по сущностям и связывает ref[T] (цели могут объявляться позже).
// catalogs нужны для catalog=; может быть nil.
func Build(entities []*Entity, catalogs map[string]reference.EnumDirectory) (*model.Registry, error) {
	reg := model.NewRegistry()
	byName := make(map[string]*Entity, len(entities))

	// 1) схемы с полями
	var errs []error
	schemas := make([]*model.Schema, 0, len(entities))
	for _, e := range entities {
		decl := model.Decl{Collection: e.Collection}
		for _, f := range e.Fields {
			if f.IsRelation() || f.Name == model.IDField {
				continue
			}
			mf, err := buildField(f, catalogs)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", e.Name, f.Name, err))
				continue
			}
			decl.Fields = append(decl.Fields, model.NamedField{Name: f.Name, Field: mf})
		}
		s, err := model.Define(e.Name, decl)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		if err := reg.Register(s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		byName[e.Name] = e
		schemas = append(schemas, s)
	}

	// 2) связи
	for _, s := range schemas {
		e := byName[s.Name()]
		for _, f := range e.Fields {
			if !f.IsRelation() {
				continue
			}
			target, ok := resolveTarget(reg, f.RefTarget)
			if !ok {
				errs = append(errs, fmt.Errorf("%s.%s: unknown target entity %q", e.Name, f.Name, f.RefTarget))
				continue
			}
			rel := model.Relation{Field: model.Field{Required: f.Required()}, Target: target}
			if err := s.AddRelation(f.Name, rel); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", e.Name, f.Name, err))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if issues := model.Lint(reg); len(issues) > 0 {
		return reg, &LintError{Issues: issues}
	}
	return reg, nil
}

// resolveTarget: "Module.Name" или "Name"; имена сущностей уникальны во всех модулях.
func resolveTarget(reg *model.Registry, raw string) (*model.Schema, bool) {
	name := raw
	if i := strings.LastIndexByte(raw, '.'); i >= 0 {
		name = raw[i+1:]
	}
	if s, ok := reg.Lookup(name); ok {
		return s, true
	}
	return reg.Resolve(name)
}

func buildField(f Field, catalogs map[string]reference.EnumDirectory) (model.Field, error) {
	if err := checkType(f); err != nil {
		return model.Field{}, err
	}
	mf := model.Field{Required: f.Required()}
	vs := []model.Validator{typeValidator(f)}

	if p, ok := f.Options["pattern"]; ok {
		re, err := regexp.Compile(p)
		if err != nil {
			return model.Field{}, fmt.Errorf("bad pattern: %w", err)
		}
		vs = append(vs, model.Pattern(re))
	}
	bounds, err := boundsValidator(f, f.Options["min"], f.Options["max"])
	if err != nil {
		return model.Field{}, err
	}
	if bounds != nil {
		vs = append(vs, bounds)
	}
	if tag := f.Options["validate"]; tag != "" {
		vs = append(vs, model.Tag(tag))
	}
	if name := f.Options["catalog"]; name != "" {
		dir, ok := catalogs[name]
		if !ok {
			return model.Field{}, fmt.Errorf("unknown catalog %q", name)
		}
		vs = append(vs, catalogValidator(dir))
	}
	mf.Validator = model.All(vs...)

	if raw, ok := f.Options["default"]; ok {
		rule, err := defaultRule(f, raw)
		if err != nil {
			return model.Field{}, fmt.Errorf("bad default %q: %w", raw, err)
		}
		mf.Default = rule
	}
	return mf, nil
}

// catalogValidator проверяет коды, действующие на дату проверки.
func catalogValidator(dir reference.EnumDirectory) model.Validator {
	return func(v any) (bool, model.Detail) {
		if v == nil {
			return true, nil
		}
		return model.OneOf(dir.Codes(time.Now())...)(v)
	}
}

// defaultRule: now и ulid — генераторы, остальное приводится к типу поля один раз.
func defaultRule(f Field, raw string) (model.DefaultRule, error) {
	switch {
	case raw == "now" && f.Type == "datetime":
		return model.Generate(func() any { return time.Now().UTC().Format(time.RFC3339) }), nil
	case raw == "now" && f.Type == "date":
		return model.Generate(func() any { return time.Now().UTC().Format(time.DateOnly) }), nil
	case raw == "ulid" && f.Type == "string":
		return model.Generate(func() any { return ulid.Make().String() }), nil
	}
	v, err := coerceValue(f, raw)
	if err != nil {
		return nil, err
	}
	// массив копируется на каждый экземпляр
	if arr, ok := v.([]any); ok {
		return model.Generate(func() any { return append([]any(nil), arr...) }), nil
	}
	return model.Const(v), nil
}
