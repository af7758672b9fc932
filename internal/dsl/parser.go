package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	entityRe = regexp.MustCompile(`^entity\s+(\w+)\s*(?:\(([^)]*)\))?\s*:\s*$`)
	fieldRe  = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	enumRe   = regexp.MustCompile(`^enum\[(.*)\]$`)
	refRe    = regexp.MustCompile(`^ref\[([A-Za-z0-9_.]+)\]$`)
	arrayRe  = regexp.MustCompile(`^array\[(.+)\]$`)
	moduleRe = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
)

// splitOptionTokens делит "k=v, k2='v 2' pattern=^[A-Z0-9 _-]+$" на токены.
// Разделители: пробел и запятая вне кавычек и [...].
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0 // внутри [ ... ] у регэкспа

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t' || r == ',') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// parseOptions: "k=v" -> k:v, флаг без значения -> "true". Ключи в нижнем регистре, кавычки снимаются.
func parseOptions(raw string) map[string]string {
	opts := map[string]string{}
	for _, tok := range splitOptionTokens(raw) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !strings.Contains(tok, "=") {
			opts[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if len(v) >= 2 {
			if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
				v = v[1 : len(v)-1]
			}
		}
		if k != "" {
			opts[k] = v
		}
	}
	return opts
}

func enumValues(inside string) []string {
	var out []string
	for _, p := range strings.Split(strings.TrimSpace(inside), ",") {
		if s := strings.Trim(strings.TrimSpace(p), `"'`); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseField разбирает строку поля; ok=false — строка не похожа на поле.
func parseField(line string) (Field, bool) {
	m := fieldRe.FindStringSubmatch(line)
	if m == nil {
		return Field{}, false
	}
	name, rawType, tail := m[1], m[2], m[3]

	// склейка оборванных типов со скобками: enum[a, b]
	for strings.Count(rawType, "[") > strings.Count(rawType, "]") {
		idx := strings.Index(tail, "]")
		if idx < 0 {
			break
		}
		rawType += tail[:idx+1]
		tail = tail[idx+1:]
	}

	optsRaw := strings.TrimSpace(tail)
	if i := strings.IndexByte(optsRaw, '#'); i >= 0 {
		optsRaw = strings.TrimSpace(optsRaw[:i])
	}
	if strings.HasPrefix(strings.ToLower(optsRaw), "options:") {
		optsRaw = strings.TrimSpace(optsRaw[len("options:"):])
	}

	f := Field{Name: name, Type: rawType, Options: parseOptions(optsRaw)}
	switch {
	case enumRe.MatchString(rawType):
		f.Type = "enum"
		f.Enum = enumValues(enumRe.FindStringSubmatch(rawType)[1])
	case refRe.MatchString(rawType):
		f.Type = "ref"
		f.RefTarget = refRe.FindStringSubmatch(rawType)[1]
	case arrayRe.MatchString(rawType):
		f.Type = "array"
		elem := strings.TrimSpace(arrayRe.FindStringSubmatch(rawType)[1])
		f.ElemType = elem
		if em := enumRe.FindStringSubmatch(elem); em != nil {
			f.ElemType = "enum"
			f.Enum = enumValues(em[1])
		}
		if rm := refRe.FindStringSubmatch(elem); rm != nil {
			f.ElemType = "ref"
			f.RefTarget = rm[1]
		}
	default:
		f.Type = strings.ToLower(rawType)
	}
	return f, true
}

// Parse читает DSL из r. source попадает в Entity.Source и в сообщения об ошибках.
func Parse(r io.Reader, source string) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	currentModule := ""
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		if m := entityRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{Name: m[1], Module: currentModule, Source: source}
			if len(m) > 2 && m[2] != "" {
				opts := parseOptions(m[2])
				current.Collection = opts["collection"]
			}
			continue
		}
		if strings.HasPrefix(line, "entity ") {
			return nil, fmt.Errorf("%s:%d: malformed entity header %q", source, lineNo, line)
		}
		if current == nil {
			// всё вне сущности игнорируем
			continue
		}

		f, ok := parseField(line)
		if !ok {
			return nil, fmt.Errorf("%s:%d: cannot parse field %q", source, lineNo, line)
		}
		current.Fields = append(current.Fields, f)
	}

	if current != nil {
		entities = append(entities, current)
	}
	return entities, scanner.Err()
}

// LoadEntities читает один .dsl файл.
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, path)
}

// LoadAllEntities обходит root и читает все *.dsl в лексическом порядке путей.
func LoadAllEntities(root string) ([]*Entity, error) {
	var result []*Entity
	seen := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		ents, err := LoadEntities(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, e := range ents {
			if e.Module == "" {
				return fmt.Errorf("entity %q in %s has no module, add `module <name>` at the top", e.Name, path)
			}
			if prev, exists := seen[e.Name]; exists {
				return fmt.Errorf("duplicate entity %q in %s (first declared in %s)", e.Name, path, prev)
			}
			seen[e.Name] = path
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
