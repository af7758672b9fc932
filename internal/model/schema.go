package model

import (
	"fmt"
	"strings"
	"sync"

	"fsmodels/internal/naming"
)

// IDField — имя поля идентификатора, унаследованного от Base.
const IDField = "id"

// Base — корневая схема: единственное поле id. Все схемы наследуют её по умолчанию.
var Base = &Schema{
	name:   "Base",
	fields: []NamedField{{Name: IDField}},
	index:  map[string]int{IDField: 0},
	frozen: true,
}

// NamedField — объявление поля схемы.
type NamedField struct {
	Name string
	Field
}

// NamedRelation — объявление связи схемы.
type NamedRelation struct {
	Name string
	Relation
}

// Decl — декларация схемы.
type Decl struct {
	// Collection переопределяет имя коллекции; пусто — SnakeCase(name).
	Collection string
	// Extends — родительская схема; nil — Base.
	Extends   *Schema
	Fields    []NamedField
	Relations []NamedRelation
}

// Schema — упорядоченный список полей и связей. Порядок: унаследованные, затем объявленные.
type Schema struct {
	name       string
	collection string
	parent     *Schema

	extended bool // есть наследники: набор связей зафиксирован в их копиях

	mu        sync.RWMutex
	fields    []NamedField
	relations []NamedRelation
	index     map[string]int // >=0 поле, <0 связь (-(i+1))
	frozen    bool
}

// Define строит схему. Имена уникальны среди полей и связей, префикс "_" зарезервирован.
func Define(name string, d Decl) (*Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty schema name", ErrReservedName)
	}
	parent := d.Extends
	if parent == nil {
		parent = Base
	}
	s := &Schema{
		name:       name,
		collection: strings.TrimSpace(d.Collection),
		parent:     parent,
		index:      map[string]int{},
	}
	parent.mu.RLock()
	inherited := append([]NamedField(nil), parent.fields...)
	inheritedRels := append([]NamedRelation(nil), parent.relations...)
	parent.mu.RUnlock()

	for _, f := range append(inherited, d.Fields...) {
		if err := s.addField(f); err != nil {
			return nil, err
		}
	}
	for _, r := range append(inheritedRels, d.Relations...) {
		if err := s.addRelationLocked(r); err != nil {
			return nil, err
		}
	}
	if parent != Base {
		parent.mu.Lock()
		parent.extended = true
		parent.mu.Unlock()
	}
	return s, nil
}

// MustDefine — Define, паникующий на ошибке. Для объявлений на уровне пакета.
func MustDefine(name string, d Decl) *Schema {
	s, err := Define(name, d)
	if err != nil {
		panic(err)
	}
	return s
}

// AddRelation добавляет связь после объявления (ссылки вперёд и циклические схемы).
// Допустимо только до создания первой записи и до объявления наследников:
// наследник копирует связи родителя в Define.
func (s *Schema) AddRelation(name string, r Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return fmt.Errorf("%w: %s already has instances", ErrSchemaFrozen, s.name)
	}
	if s.extended {
		return fmt.Errorf("%w: %s is already extended by other schemas", ErrSchemaFrozen, s.name)
	}
	return s.addRelationLocked(NamedRelation{Name: name, Relation: r})
}

func (s *Schema) addField(f NamedField) error {
	if err := s.checkName(f.Name); err != nil {
		return err
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
	return nil
}

func (s *Schema) addRelationLocked(r NamedRelation) error {
	if err := s.checkName(r.Name); err != nil {
		return err
	}
	if r.Target == nil {
		return fmt.Errorf("%s.%s: relation without target", s.name, r.Name)
	}
	s.index[r.Name] = -(len(s.relations) + 1)
	s.relations = append(s.relations, r)
	return nil
}

func (s *Schema) checkName(name string) error {
	if name == "" || strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: %s.%q", ErrReservedName, s.name, name)
	}
	if _, dup := s.index[name]; dup {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateField, s.name, name)
	}
	return nil
}

func (s *Schema) freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

func (s *Schema) Name() string { return s.name }

// Is: s совпадает с target или наследует его (через Extends).
func (s *Schema) Is(target *Schema) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur == target {
			return true
		}
	}
	return false
}

// Collection — явное имя коллекции или SnakeCase от имени схемы.
func (s *Schema) Collection() string {
	if s.collection != "" {
		return s.collection
	}
	return naming.SnakeCase(s.name)
}

// Fields — имена полей (без связей) в порядке объявления.
func (s *Schema) Fields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Relations — имена связей в порядке объявления.
func (s *Schema) Relations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.relations))
	for i, r := range s.relations {
		out[i] = r.Name
	}
	return out
}

// Field возвращает объявление поля по имени.
func (s *Schema) Field(name string) (Field, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[name]
	if !ok || i < 0 {
		return Field{}, false
	}
	return s.fields[i].Field, true
}

// Relation возвращает объявление связи по имени.
func (s *Schema) Relation(name string) (Relation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[name]
	if !ok || i >= 0 {
		return Relation{}, false
	}
	return s.relations[-i-1].Relation, true
}

// Has — объявлено ли имя (поле или связь).
func (s *Schema) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[name]
	return ok
}

// snapshot — копия объявлений; запись фиксирует их при создании.
func (s *Schema) snapshot() ([]NamedField, []NamedRelation) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]NamedField(nil), s.fields...), append([]NamedRelation(nil), s.relations...)
}

func (s *Schema) String() string { return s.name }
