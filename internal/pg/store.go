package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fsmodels/internal/model"
	"fsmodels/internal/store"
)

// Store — документное хранилище: таблица (id, data jsonb) на коллекцию.
// Таблица создаётся при первом обращении к коллекции.
type Store struct {
	db     *sql.DB
	schema string
	ids    *store.IDSource
	log    *slog.Logger

	mu    sync.Mutex
	ready map[string]bool
}

func NewStore(db *sql.DB, schema string, log *slog.Logger) *Store {
	if schema == "" {
		schema = "public"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, schema: schema, ids: store.NewIDSource(), log: log, ready: map[string]bool{}}
}

// Provision создаёт схему и таблицы всех коллекций реестра.
func (s *Store) Provision(ctx context.Context, reg *model.Registry) error {
	if err := ApplyDDL(ctx, s.db, GenerateDDL(s.schema, reg), s.log); err != nil {
		return err
	}
	s.mu.Lock()
	for _, sc := range reg.Schemas() {
		s.ready[sc.Collection()] = true
	}
	s.mu.Unlock()
	s.log.Info("postgres collections provisioned", "schema", s.schema, "count", reg.Len())
	return nil
}

func (s *Store) ensure(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready[collection] {
		return nil
	}
	ddl := map[string]string{
		"000_schema": fmt.Sprintf("create schema if not exists %s;", sqlIdent(s.schema)),
		"100_table":  TableDDL(s.schema, collection),
	}
	if err := ApplyDDL(ctx, s.db, ddl, s.log); err != nil {
		return err
	}
	s.ready[collection] = true
	return nil
}

func (s *Store) Collection(name string) store.Collection {
	return &collection{s: s, name: name, table: qualified(s.schema, name)}
}

func (s *Store) Close() error { return s.db.Close() }

type collection struct {
	s     *Store
	name  string
	table string
}

func (c *collection) Name() string { return c.name }

func (c *collection) Doc(id string) store.Document {
	return &document{c: c, id: id}
}

func (c *collection) NewDoc() store.Document {
	return &document{c: c, id: c.s.ids.New()}
}

type document struct {
	c  *collection
	id string
}

func (d *document) ID() string { return d.id }

func (d *document) Get(ctx context.Context) (*store.Snapshot, error) {
	if err := d.c.s.ensure(ctx, d.c.name); err != nil {
		return nil, err
	}
	var raw []byte
	err := d.c.s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select "data" from %s where "id" = $1`, d.c.table), d.id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &store.Snapshot{ID: d.id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get %s/%s: %w", d.c.name, d.id, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("pg: decode %s/%s: %w", d.c.name, d.id, err)
	}
	return &store.Snapshot{ID: d.id, Data: data}, nil
}

func (d *document) Set(ctx context.Context, data map[string]any) (*store.WriteResult, error) {
	q := fmt.Sprintf(`insert into %s ("id", "data") values ($1, $2::jsonb)
on conflict ("id") do update set "data" = excluded."data", "updated_at" = now()
returning "updated_at"`, d.c.table)
	return d.write(ctx, "set", q, data)
}

// Update сливает ключи верхнего уровня (jsonb ||); нет строки — store.ErrNotFound.
func (d *document) Update(ctx context.Context, data map[string]any) (*store.WriteResult, error) {
	q := fmt.Sprintf(`update %s set "data" = "data" || $2::jsonb, "updated_at" = now()
where "id" = $1 returning "updated_at"`, d.c.table)
	return d.write(ctx, "update", q, data)
}

func (d *document) Delete(ctx context.Context) (*store.WriteResult, error) {
	if err := d.c.s.ensure(ctx, d.c.name); err != nil {
		return nil, err
	}
	if _, err := d.c.s.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where "id" = $1`, d.c.table), d.id); err != nil {
		return nil, fmt.Errorf("pg: delete %s/%s: %w", d.c.name, d.id, err)
	}
	return &store.WriteResult{UpdateTime: time.Now().UTC()}, nil
}

func (d *document) write(ctx context.Context, op, query string, data map[string]any) (*store.WriteResult, error) {
	if err := d.c.s.ensure(ctx, d.c.name); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("pg: encode %s/%s: %w", d.c.name, d.id, err)
	}
	var ts time.Time
	err = d.c.s.db.QueryRowContext(ctx, query, d.id, string(raw)).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, d.c.name, d.id)
	}
	if err != nil {
		return nil, fmt.Errorf("pg: %s %s/%s: %w", op, d.c.name, d.id, err)
	}
	return &store.WriteResult{UpdateTime: ts.UTC()}, nil
}
