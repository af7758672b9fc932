package pg

import (
	"fmt"
	"strings"

	"fsmodels/internal/model"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// safeTable: имя коллекции -> имя таблицы; ключевые слова получают префикс.
func safeTable(collection string) string {
	t := strings.ToLower(collection)
	if isReserved(t) {
		t = "e_" + t
	}
	return t
}

func sqlIdent(s string) string {
	return `"` + strings.ReplaceAll(strings.ToLower(s), `"`, `""`) + `"`
}

func qualified(schema, collection string) string {
	return sqlIdent(schema) + "." + sqlIdent(safeTable(collection))
}

// TableDDL — таблица документов одной коллекции.
func TableDDL(schema, collection string) string {
	return fmt.Sprintf(`create table if not exists %s (
  "id" text primary key,
  "data" jsonb not null,
  "created_at" timestamp with time zone not null default now(),
  "updated_at" timestamp with time zone not null default now()
);`, qualified(schema, collection))
}

// GenerateDDL — карта ключ -> SQL для схемы и всех коллекций реестра.
// Ключи сортируются так, что схема создаётся раньше таблиц.
func GenerateDDL(schema string, reg *model.Registry) map[string]string {
	out := map[string]string{
		"000_schema": fmt.Sprintf("create schema if not exists %s;", sqlIdent(schema)),
	}
	for _, s := range reg.Schemas() {
		coll := s.Collection()
		out["100_"+strings.ToLower(schema)+"."+safeTable(coll)] = TableDDL(schema, coll)
	}
	return out
}
