package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// коды "объект уже есть": duplicate_object, duplicate_schema, duplicate_table
var duplicateCodes = map[string]bool{"42710": true, "42P06": true, "42P07": true}

// ApplyDDL выполняет map[ключ]sql в порядке ключей. Ожидается idempotent DDL (create ... if not exists).
func ApplyDDL(ctx context.Context, db *sql.DB, ddl map[string]string, log *slog.Logger) error {
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && duplicateCodes[pgErr.Code] {
				log.Debug("DDL skipped, already exists", "key", k, "code", pgErr.Code, "msg", strings.TrimSpace(pgErr.Message))
				continue
			}
			return fmt.Errorf("DDL apply %s: %w", k, err)
		}
	}
	return nil
}
