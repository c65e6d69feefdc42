package index

import (
	"fmt"
	"strings"

	"mlib/internal/mlib"
)

// schemaHeader prefixes the generated schema.sql.
const schemaHeader = `-- This file is generated from the migration files.
-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/index' to regenerate.
-- Source: internal/index/migrations/files/*.sql

`

// Schema returns the CREATE statements of the index's tables and indexes,
// tables first, each group ordered by name. SQLite internals and the
// migration bookkeeping table are left out.
func (s *SQLiteIndex) Schema() (string, error) {
	if s.db == nil {
		return "", mlib.ErrClosed
	}
	return dumpSchema(s.db)
}

func dumpSchema(q querier) (string, error) {
	rows, err := q.Query(`
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND name != 'schema_migrations'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type
		    WHEN 'table' THEN 1
		    WHEN 'index' THEN 2
		  END,
		  name`)
	if err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	b.WriteString(schemaHeader)
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning schema: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return b.String(), nil
}
