// Package persist связывает model.Record с коллекцией документного хранилища:
// save с каскадом по связям, retrieve и delete.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"fsmodels/internal/model"
	"fsmodels/internal/store"
)

// State — состояние записи относительно хранилища.
type State int

const (
	// Unsaved — id ещё нет.
	Unsaved State = iota
	// Saved — id привязан, документ может ещё не существовать.
	Saved
	// Persisted — запись выполнена.
	Persisted
)

func (s State) String() string {
	switch s {
	case Unsaved:
		return "unsaved"
	case Saved:
		return "saved"
	case Persisted:
		return "persisted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Model — запись, привязанная к коллекции. Коллекция выбирается один раз при создании.
type Model struct {
	*model.Record

	client     store.Client
	coll       store.Collection
	collection string
	persisted  bool
	base       *slog.Logger
	log        *slog.Logger
}

// New создаёт запись схемы s и привязывает её к хранилищу.
// Ошибка возможна только с model.WithValidateOnInit; Model возвращается и вместе с ней.
func New(client store.Client, s *model.Schema, init map[string]any, opts ...model.Option) (*Model, error) {
	rec, err := model.New(s, init, opts...)
	return Bind(client, rec), err
}

// Bind привязывает существующую запись к хранилищу.
func Bind(client store.Client, rec *model.Record) *Model {
	name := rec.Schema().Collection()
	return &Model{
		Record:     rec,
		client:     client,
		coll:       client.Collection(name),
		collection: name,
		base:       slog.Default(),
		log:        slog.Default().With("collection", name),
	}
}

// WithLogger заменяет логгер модели.
func (m *Model) WithLogger(l *slog.Logger) *Model {
	m.base = l
	m.log = l.With("collection", m.collection)
	return m
}

// Collection — имя коллекции.
func (m *Model) Collection() string { return m.collection }

func (m *Model) State() State {
	switch {
	case m.ID() == "":
		return Unsaved
	case m.persisted:
		return Persisted
	default:
		return Saved
	}
}

// Clean валидирует запись и сериализует её. Невалидная запись — ошибка, карта nil.
func (m *Model) Clean() (map[string]any, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m.ToMap(), nil
}

// Retrieve читает документ по id. Нет документа — пустая карта без ошибки, запись не меняется.
// overwriteLocal перезаписывает поля (не связи) прочитанными значениями.
func (m *Model) Retrieve(ctx context.Context, overwriteLocal bool) (map[string]any, error) {
	id := m.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: cannot retrieve document for %s, no id specified", model.ErrMissingIdentifier, m.collection)
	}
	snap, err := m.coll.Doc(id).Get(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		m.log.Debug("document not found", "id", id)
		return map[string]any{}, nil
	}
	out := maps.Clone(snap.Data)
	out[model.IDField] = id
	if overwriteLocal {
		m.FromMap(out)
	}
	return out, nil
}

// DeleteResult — результат удаления.
type DeleteResult struct {
	Result *store.WriteResult `json:"result"`
}

// Delete удаляет документ по id.
func (m *Model) Delete(ctx context.Context) (DeleteResult, error) {
	id := m.ID()
	if id == "" {
		return DeleteResult{}, fmt.Errorf("%w: cannot delete %s document, no id specified", model.ErrMissingIdentifier, m.collection)
	}
	res, err := m.coll.Doc(id).Delete(ctx)
	if err != nil {
		return DeleteResult{}, err
	}
	m.persisted = false
	m.log.Info("document deleted", "id", id)
	return DeleteResult{Result: res}, nil
}
