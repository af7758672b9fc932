// Package badgerdb — встраиваемое документное хранилище на BadgerDB.
// Ключ документа: "<коллекция>/<id>", значение: JSON.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"fsmodels/internal/store"
)

// Config — параметры открытия базы.
type Config struct {
	// Path — каталог файлов базы; игнорируется при InMemory.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger — nil отключает внутренние логи badger.
	Logger *slog.Logger
	// GCInterval — период сборки value log; 0 — выключено.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store реализует store.Client поверх *badger.DB.
type Store struct {
	db   *badger.DB
	ids  *store.IDSource
	now  func() time.Time
	log  *slog.Logger
	stop chan struct{}
	done chan struct{}
}

// Open открывает (или создаёт) базу.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerdb: path is required for persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerdb: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerdb: open: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Store{db: db, ids: store.NewIDSource(), now: time.Now, log: log}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stop, s.done = make(chan struct{}), make(chan struct{})
		go s.gc(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) gc(interval time.Duration, ratio float64) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// ErrNoRewrite — собирать было нечего
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Warn("badger value log GC failed", "err", err)
			}
		}
	}
}

func (s *Store) Collection(name string) store.Collection {
	return &collection{s: s, name: name}
}

func (s *Store) Close() error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
	}
	return s.db.Close()
}

type collection struct {
	s    *Store
	name string
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

func (d *document) key() []byte { return []byte(d.c.name + "/" + d.id) }

func (d *document) Get(ctx context.Context) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := &store.Snapshot{ID: d.id}
	err := d.c.s.db.View(func(txn *badger.Txn) error {
		data, err := read(txn, d.key())
		snap.Data = data
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badgerdb: get %s/%s: %w", d.c.name, d.id, err)
	}
	return snap, nil
}

func (d *document) Set(ctx context.Context, data map[string]any) (*store.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := d.c.s.db.Update(func(txn *badger.Txn) error {
		return write(txn, d.key(), data)
	})
	if err != nil {
		return nil, fmt.Errorf("badgerdb: set %s/%s: %w", d.c.name, d.id, err)
	}
	return &store.WriteResult{UpdateTime: d.c.s.now().UTC()}, nil
}

// Update — чтение, слияние верхнего уровня и запись в одной транзакции.
func (d *document) Update(ctx context.Context, data map[string]any) (*store.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := d.c.s.db.Update(func(txn *badger.Txn) error {
		cur, err := read(txn, d.key())
		if err != nil {
			return err
		}
		if cur == nil {
			return store.ErrNotFound
		}
		for k, v := range data {
			cur[k] = v
		}
		return write(txn, d.key(), cur)
	})
	if err != nil {
		return nil, fmt.Errorf("badgerdb: update %s/%s: %w", d.c.name, d.id, err)
	}
	return &store.WriteResult{UpdateTime: d.c.s.now().UTC()}, nil
}

func (d *document) Delete(ctx context.Context) (*store.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := d.c.s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(d.key())
	})
	if err != nil {
		return nil, fmt.Errorf("badgerdb: delete %s/%s: %w", d.c.name, d.id, err)
	}
	return &store.WriteResult{UpdateTime: d.c.s.now().UTC()}, nil
}

// read: нет ключа — (nil, nil).
func read(txn *badger.Txn, key []byte) (map[string]any, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out map[string]any
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &out)
	})
	return out, err
}

func write(txn *badger.Txn, key []byte, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}
