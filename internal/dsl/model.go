package dsl

// Entity описывает сущность из DSL
type Entity struct {
	Name       string
	Module     string
	Collection string // опция заголовка (collection=...), пусто — по имени
	Source     string // файл, из которого прочитана
	Fields     []Field
}

// Field описывает поле сущности
type Field struct {
	Name      string
	Type      string            // string, int, float, bool, date, datetime, enum, array, ref
	ElemType  string            // тип элемента для array
	Enum      []string          // значения enum (и для array[enum[...]])
	RefTarget string            // цель для ref и array[ref]
	Options   map[string]string // required, default, pattern, min, max, validate, catalog
}

// IsRelation: одиночная ссылка становится связью, array[ref] остаётся полем id.
func (f Field) IsRelation() bool { return f.Type == "ref" }

func (f Field) Required() bool { return f.Options["required"] == "true" }
