package model

import (
	"fmt"
	"strings"
	"sync"
)

// Registry — каталог схем по имени. Порядок регистрации сохраняется.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Schema
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Schema)}
}

// Register добавляет схему; повтор имени — ошибка.
func (r *Registry) Register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[s.Name()]; exists {
		return fmt.Errorf("%w: schema %q already registered", ErrDuplicateField, s.Name())
	}
	r.byName[s.Name()] = s
	r.order = append(r.order, s.Name())
	return nil
}

// MustRegister — Register с паникой.
func (r *Registry) MustRegister(schemas ...*Schema) *Registry {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Resolve ищет схему по имени или по коллекции, без учёта регистра.
// Неоднозначное совпадение — не найдено.
func (r *Registry) Resolve(raw string) (*Schema, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byName[raw]; ok {
		return s, true
	}
	var found *Schema
	for _, name := range r.order {
		s := r.byName[name]
		if strings.EqualFold(name, raw) || strings.EqualFold(s.Collection(), raw) {
			if found != nil && found != s {
				return nil, false
			}
			found = s
		}
	}
	return found, found != nil
}

// Schemas — все схемы в порядке регистрации.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
