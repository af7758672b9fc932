// Package config: значения по умолчанию, затем файл (yaml или json), затем FSMODELS_* env, затем флаги.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory    = "memory"
	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"
	DriverBadger    = "badger"
)

type Config struct {
	Port     string `yaml:"port" json:"port"`
	DSLDir   string `yaml:"dslDir" json:"dslDir"`
	EnumsDir string `yaml:"enumsDir" json:"enumsDir"`

	StoreDriver string `yaml:"storeDriver" json:"storeDriver"` // memory | firestore | postgres | badger
	DBURL       string `yaml:"dbUrl" json:"dbUrl"`
	PGSchema    string `yaml:"pgSchema" json:"pgSchema"`
	BadgerDir   string `yaml:"badgerDir" json:"badgerDir"`
	// FirestoreProject — пусто: проект из окружения
	FirestoreProject string `yaml:"firestoreProject" json:"firestoreProject"`

	Metrics  bool   `yaml:"metrics" json:"metrics"`
	LogLevel string `yaml:"logLevel" json:"logLevel"`
}

func def() Config {
	return Config{
		Port:        "8080",
		DSLDir:      "dsl",
		EnumsDir:    "reference/enums",
		StoreDriver: DriverMemory,
		PGSchema:    "public",
		BadgerDir:   "data/badger",
		Metrics:     true,
		LogLevel:    "info",
	}
}

// loadFile: yaml.v3 читает и yaml, и json. Нет файла — не ошибка.
func loadFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// Load собирает конфигурацию. path — файл по умолчанию, args — аргументы командной строки без имени программы.
func Load(path string, args []string) (Config, error) {
	fs := flag.NewFlagSet("fsmodels", flag.ContinueOnError)
	configPath := fs.String("config", getenv("FSMODELS_CONFIG", path), "Path to config file (yaml or json)")
	port := fs.String("port", "", "HTTP port")
	dslDir := fs.String("dsl", "", "Path to DSL directory")
	enums := fs.String("enums", "", "Path to enums directory")
	driver := fs.String("store", "", "Store driver: memory|firestore|postgres|badger")
	db := fs.String("db", "", "Postgres URL")
	pgSchema := fs.String("pg-schema", "", "Postgres schema for collection tables")
	badgerDir := fs.String("badger-dir", "", "BadgerDB directory")
	project := fs.String("firestore-project", "", "Firestore project id")
	_ = fs.String("metrics", "", "Expose /metrics (true/false)")
	level := fs.String("log-level", "", "debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def()
	if err := loadFile(*configPath, &cfg); err != nil {
		return Config{}, err
	}

	// ENV overrides
	cfg.Port = getenv("FSMODELS_PORT", cfg.Port)
	cfg.DSLDir = getenv("FSMODELS_DSL_DIR", cfg.DSLDir)
	cfg.EnumsDir = getenv("FSMODELS_ENUMS_DIR", cfg.EnumsDir)
	cfg.StoreDriver = getenv("FSMODELS_STORE_DRIVER", cfg.StoreDriver)
	cfg.DBURL = getenv("FSMODELS_DB_URL", cfg.DBURL)
	cfg.PGSchema = getenv("FSMODELS_PG_SCHEMA", cfg.PGSchema)
	cfg.BadgerDir = getenv("FSMODELS_BADGER_DIR", cfg.BadgerDir)
	cfg.FirestoreProject = getenv("FSMODELS_FIRESTORE_PROJECT", cfg.FirestoreProject)
	cfg.Metrics = getenvBool("FSMODELS_METRICS", cfg.Metrics)
	cfg.LogLevel = getenv("FSMODELS_LOG_LEVEL", cfg.LogLevel)

	// Flags overrides: только явно заданные
	var ferr error
	fs.Visit(func(f *flag.Flag) {
		v := strings.TrimSpace(f.Value.String())
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "dsl":
			cfg.DSLDir = *dslDir
		case "enums":
			cfg.EnumsDir = *enums
		case "store":
			cfg.StoreDriver = *driver
		case "db":
			cfg.DBURL = *db
		case "pg-schema":
			cfg.PGSchema = *pgSchema
		case "badger-dir":
			cfg.BadgerDir = *badgerDir
		case "firestore-project":
			cfg.FirestoreProject = *project
		case "metrics":
			b, ok := parseBool(v)
			if !ok {
				ferr = fmt.Errorf("flag -metrics: invalid boolean %q", v)
			}
			cfg.Metrics = b
		case "log-level":
			cfg.LogLevel = *level
		}
	})
	if ferr != nil {
		return Config{}, ferr
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverFirestore, DriverBadger:
	case DriverPostgres:
		if c.DBURL == "" {
			return errors.New("config: storeDriver=postgres requires dbUrl")
		}
	default:
		return fmt.Errorf("config: unknown storeDriver %q", c.StoreDriver)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("config: logLevel: %w", err)
	}
	return nil
}

// SlogLevel — уровень логирования; неизвестный уровень — info.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
