package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Op — запись журнала in-memory хранилища.
type Op struct {
	Kind       string // get | set | update | delete
	Collection string
	ID         string
	Data       map[string]any
}

// Memory — in-memory хранилище для тестов и локального запуска.
// Документы копируются на входе и выходе; наружу ссылки не утекают.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]map[string]map[string]any // коллекция -> id -> документ
	journal []Op
	ids     *IDSource
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]map[string]any),
		ids:  NewIDSource(),
		now:  time.Now,
	}
}

func (m *Memory) Collection(name string) Collection {
	return &memCollection{m: m, name: name}
}

func (m *Memory) Close() error { return nil }

// Journal — копия журнала операций в порядке выполнения.
func (m *Memory) Journal() []Op {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Op(nil), m.journal...)
}

// Ops — журнал, отфильтрованный по виду операции и коллекции (пусто — любая).
func (m *Memory) Ops(kind, collection string) []Op {
	var out []Op
	for _, op := range m.Journal() {
		if (kind == "" || op.Kind == kind) && (collection == "" || op.Collection == collection) {
			out = append(out, op)
		}
	}
	return out
}

func (m *Memory) ResetJournal() {
	m.mu.Lock()
	m.journal = nil
	m.mu.Unlock()
}

// Put кладёт документ напрямую, минуя журнал (подготовка тестов).
func (m *Memory) Put(collection, id string, doc map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(collection)[id] = cloneMap(doc)
}

// Count — число документов в коллекции.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[collection])
}

func (m *Memory) bucket(collection string) map[string]map[string]any {
	b := m.data[collection]
	if b == nil {
		b = make(map[string]map[string]any)
		m.data[collection] = b
	}
	return b
}

func (m *Memory) record(kind, collection, id string, data map[string]any) {
	m.journal = append(m.journal, Op{Kind: kind, Collection: collection, ID: id, Data: cloneMap(data)})
}

type memCollection struct {
	m    *Memory
	name string
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) Doc(id string) Document {
	return &memDocument{c: c, id: id}
}

func (c *memCollection) NewDoc() Document {
	return &memDocument{c: c, id: c.m.ids.New()}
}

type memDocument struct {
	c  *memCollection
	id string
}

func (d *memDocument) ID() string { return d.id }

func (d *memDocument) Get(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := d.c.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("get", d.c.name, d.id, nil)
	doc, ok := m.data[d.c.name][d.id]
	if !ok {
		return &Snapshot{ID: d.id}, nil
	}
	return &Snapshot{ID: d.id, Data: cloneMap(doc)}, nil
}

func (d *memDocument) Set(ctx context.Context, data map[string]any) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := d.c.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("set", d.c.name, d.id, data)
	m.bucket(d.c.name)[d.id] = cloneMap(data)
	return &WriteResult{UpdateTime: m.now().UTC()}, nil
}

func (d *memDocument) Update(ctx context.Context, data map[string]any) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := d.c.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update", d.c.name, d.id, data)
	doc, ok := m.data[d.c.name][d.id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, d.c.name, d.id)
	}
	for k, v := range data {
		doc[k] = cloneValue(v)
	}
	return &WriteResult{UpdateTime: m.now().UTC()}, nil
}

func (d *memDocument) Delete(ctx context.Context) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := d.c.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete", d.c.name, d.id, nil)
	delete(m.data[d.c.name], d.id)
	return &WriteResult{UpdateTime: m.now().UTC()}, nil
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, it := range t {
			out[i] = cloneValue(it)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
