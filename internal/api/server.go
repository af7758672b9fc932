package api

import (
	"fmt"
	"log/slog"
	"sync"

	"fsmodels/internal/dsl"
	"fsmodels/internal/model"
	"fsmodels/internal/reference"
	"fsmodels/internal/store"
)

// Catalog — согласованный набор: реестр схем, сущности DSL, из которых он собран, и справочники.
type Catalog struct {
	Registry *model.Registry
	Entities map[string]*dsl.Entity // по имени схемы
	Enums    map[string]reference.EnumDirectory
}

// LoadCatalog читает DSL и справочники и собирает реестр. enumsDir == "" — без справочников.
// Блокирующие находки линтера возвращаются как *dsl.LintError.
func LoadCatalog(dslDir, enumsDir string) (*Catalog, error) {
	entities, err := dsl.LoadAllEntities(dslDir)
	if err != nil {
		return nil, fmt.Errorf("DSL load: %w", err)
	}
	enums := map[string]reference.EnumDirectory{}
	if enumsDir != "" {
		if enums, err = reference.LoadEnumCatalog(enumsDir); err != nil {
			return nil, fmt.Errorf("enum load: %w", err)
		}
	}
	return BuildCatalog(entities, enums)
}

func BuildCatalog(entities []*dsl.Entity, enums map[string]reference.EnumDirectory) (*Catalog, error) {
	reg, err := dsl.Build(entities, enums)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*dsl.Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}
	return &Catalog{Registry: reg, Entities: byName, Enums: enums}, nil
}

// Server — HTTP-поверхность над реестром и хранилищем. Каталог заменяется целиком при reload.
type Server struct {
	client   store.Client
	log      *slog.Logger
	dslDir   string
	enumsDir string

	mu  sync.RWMutex
	cat *Catalog
}

type Options struct {
	Client   store.Client
	Logger   *slog.Logger
	DSLDir   string // по умолчанию для reload
	EnumsDir string
}

func NewServer(cat *Catalog, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		client:   opts.Client,
		log:      log,
		dslDir:   opts.DSLDir,
		enumsDir: opts.EnumsDir,
		cat:      cat,
	}
}

func (s *Server) catalog() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cat
}

// Swap атомарно заменяет каталог.
func (s *Server) Swap(cat *Catalog) {
	s.mu.Lock()
	s.cat = cat
	s.mu.Unlock()
}
