// Package store описывает внешнее документное хранилище, с которым работает persist,
// и содержит общие реализации: in-memory, отключённое хранилище и метрики.
package store

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound — Update по несуществующему документу.
	ErrNotFound = errors.New("store: document not found")
	// ErrUnavailable — хранилище не подключено (нет учётных данных и т.п.).
	ErrUnavailable = errors.New("store: unavailable")
)

// Client — точка входа в хранилище.
type Client interface {
	Collection(name string) Collection
	Close() error
}

// Collection — именованная коллекция документов.
type Collection interface {
	Name() string
	// Doc адресует документ по id (существующий или будущий).
	Doc(id string) Document
	// NewDoc выделяет ссылку на новый документ со сгенерированным id.
	NewDoc() Document
}

// Document — операции над одним документом. Все вызовы синхронные.
type Document interface {
	ID() string
	Get(ctx context.Context) (*Snapshot, error)
	// Set — полная перезапись.
	Set(ctx context.Context, data map[string]any) (*WriteResult, error)
	// Update — частичное обновление; документ должен существовать.
	Update(ctx context.Context, data map[string]any) (*WriteResult, error)
	Delete(ctx context.Context) (*WriteResult, error)
}

// Snapshot — прочитанный документ. Data == nil, если документа нет.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// Exists: пустой документ считается несуществующим.
func (s *Snapshot) Exists() bool { return s != nil && len(s.Data) > 0 }

// WriteResult — результат записи; для persist непрозрачен.
type WriteResult struct {
	UpdateTime time.Time `json:"update_time"`
}

// IDSource — монотонные ulid-идентификаторы для новых документов.
type IDSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewIDSource() *IDSource {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &IDSource{entropy: ulid.Monotonic(src, 0)}
}

func (s *IDSource) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}
