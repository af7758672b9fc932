package dsl

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fsmodels/internal/model"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD

var primitives = map[string]bool{
	"string": true, "int": true, "float": true, "bool": true, "date": true, "datetime": true,
}

// coerceValue приводит значение к типу поля строго: число в строку не превращается и т.п.
// Строки допускаются для int/float/bool (значения default= приходят строкой).
func coerceValue(f Field, v any) (any, error) {
	switch f.Type {
	case "string":
		return toStringStrict(v)
	case "int":
		return toIntStrict(v)
	case "float":
		return toFloatStrict(v)
	case "bool":
		return toBoolStrict(v)
	case "date":
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if !dateRe.MatchString(s) {
			return nil, errors.New("must match YYYY-MM-DD")
		}
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return nil, errors.New("invalid date")
		}
		return s, nil
	case "datetime":
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339), nil
		}
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return nil, errors.New("must be RFC3339 datetime")
		}
		return s, nil
	case "enum":
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		for _, ev := range f.Enum {
			if s == ev {
				return s, nil
			}
		}
		return nil, fmt.Errorf("value '%s' is not allowed", s)
	case "ref":
		s, err := toStringStrict(v)
		if err != nil || s == "" {
			return nil, errors.New("must be a non-empty id")
		}
		return s, nil
	case "array":
		arr, ok := v.([]any)
		if !ok {
			switch t := v.(type) {
			case []string:
				arr = make([]any, len(t))
				for i, s := range t {
					arr[i] = s
				}
			case string:
				// CSV для default=: "a,b,c"
				for _, p := range strings.Split(t, ",") {
					if p = strings.TrimSpace(p); p != "" {
						arr = append(arr, p)
					}
				}
			default:
				return nil, errors.New("must be array")
			}
		}
		elem := Field{Type: f.ElemType, Enum: f.Enum, RefTarget: f.RefTarget}
		out := make([]any, 0, len(arr))
		for i, ev := range arr {
			norm, err := coerceValue(elem, ev)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %v", i, err)
			}
			out = append(out, norm)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown type: %s", f.Type)
	}
}

func checkType(f Field) error {
	switch {
	case primitives[f.Type], f.Type == "ref":
		return nil
	case f.Type == "enum":
		if len(f.Enum) == 0 {
			return errors.New("enum without values")
		}
		return nil
	case f.Type == "array":
		if f.ElemType == "array" {
			return errors.New("nested arrays are not supported")
		}
		return checkType(Field{Type: f.ElemType, Enum: f.Enum, RefTarget: f.RefTarget})
	default:
		return fmt.Errorf("unknown type: %s", f.Type)
	}
}

func toStringStrict(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.New("must be string")
}

func toIntStrict(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		// JSON числа приходят как float64 — проверяем целостность
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, errors.New("must be integer")
		}
		return int64(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, errors.New("must be integer")
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, errors.New("must be integer")
		}
		return n, nil
	default:
		return 0, errors.New("must be integer")
	}
}

func toFloatStrict(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, errors.New("must be float")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.New("must be float")
		}
		return f, nil
	default:
		return 0, errors.New("must be float")
	}
}

func toBoolStrict(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
	}
	return false, errors.New("must be boolean")
}

// typeValidator: значение должно приводиться к типу поля. nil пропускается.
// Строки для чисел и bool на входе записи не принимаются: это только для default=.
func typeValidator(f Field) model.Validator {
	return func(v any) (bool, model.Detail) {
		if v == nil {
			return true, nil
		}
		if _, isStr := v.(string); isStr && (f.Type == "int" || f.Type == "float" || f.Type == "bool") {
			return false, model.Detail{"detail": "must be " + f.Type, "type": f.Type}
		}
		if _, err := coerceValue(f, v); err != nil {
			return false, model.Detail{"detail": err.Error(), "type": f.Type}
		}
		return true, nil
	}
}

// boundsValidator: min/max — границы числа или длины строки/массива.
func boundsValidator(f Field, minRaw, maxRaw string) (model.Validator, error) {
	var lo, hi *float64
	for _, b := range []struct {
		raw string
		dst **float64
	}{{minRaw, &lo}, {maxRaw, &hi}} {
		if b.raw == "" {
			continue
		}
		n, err := strconv.ParseFloat(b.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("bound %q is not a number", b.raw)
		}
		*b.dst = &n
	}
	if lo == nil && hi == nil {
		return nil, nil
	}
	return func(v any) (bool, model.Detail) {
		var n float64
		switch t := v.(type) {
		case nil:
			return true, nil
		case string:
			n = float64(len([]rune(t)))
		case []any:
			n = float64(len(t))
		default:
			x, err := toFloatStrict(v)
			if err != nil {
				// несоответствие типа сообщает typeValidator
				return true, nil
			}
			n = x
		}
		if lo != nil && n < *lo {
			return false, model.Detail{"detail": fmt.Sprintf("must be >= %v", *lo), "min": *lo}
		}
		if hi != nil && n > *hi {
			return false, model.Detail{"detail": fmt.Sprintf("must be <= %v", *hi), "max": *hi}
		}
		return true, nil
	}, nil
}
