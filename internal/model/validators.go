package model

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// общий экземпляр validator/v10 для Tag
var tagValidate = validator.New()

// Tag — валидатор на тегах go-playground/validator ("email", "min=3,max=10", "uuid4" ...).
// nil пропускается: обязательность проверяет Field.Required.
func Tag(tag string) Validator {
	return func(v any) (bool, Detail) {
		if v == nil {
			return true, nil
		}
		err := tagValidate.Var(v, tag)
		if err == nil {
			return true, nil
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return false, Detail{"tag": verrs[0].Tag(), "param": verrs[0].Param(), "detail": fmt.Sprintf("failed %q", tag)}
		}
		return false, Detail{"tag": tag, "detail": err.Error()}
	}
}

// All — все валидаторы по порядку; первая неудача возвращается.
func All(vs ...Validator) Validator {
	return func(v any) (bool, Detail) {
		for _, fn := range vs {
			if fn == nil {
				continue
			}
			if ok, d := fn(v); !ok {
				return false, d
			}
		}
		return true, nil
	}
}

// Pattern — строковое значение должно совпасть с регэкспом. Не строка — отказ.
func Pattern(re *regexp.Regexp) Validator {
	return func(v any) (bool, Detail) {
		if v == nil {
			return true, nil
		}
		s, ok := v.(string)
		if !ok {
			return false, Detail{"detail": "must be string"}
		}
		if !re.MatchString(s) {
			return false, Detail{"detail": "must match " + re.String()}
		}
		return true, nil
	}
}

// OneOf — значение (строкой) из фиксированного набора.
func OneOf(values ...string) Validator {
	set := make(map[string]struct{}, len(values))
	for _, s := range values {
		set[s] = struct{}{}
	}
	return func(v any) (bool, Detail) {
		if v == nil {
			return true, nil
		}
		if _, ok := set[fmt.Sprint(v)]; !ok {
			return false, Detail{"detail": fmt.Sprintf("value '%v' is not allowed", v), "allowed": values}
		}
		return true, nil
	}
}
