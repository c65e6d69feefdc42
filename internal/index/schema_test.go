package index

import (
	"os"
	"strings"
	"testing"
)

func TestSQLiteIndex_Schema(t *testing.T) {
	idx := newTestIndex(t)

	schema, err := idx.Schema()
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}

	if !strings.HasPrefix(schema, schemaHeader) {
		t.Error("Schema() missing generated header")
	}
	for _, want := range []string{
		"CREATE TABLE catalogs",
		"CREATE TABLE media",
		"CREATE TABLE series",
		"CREATE UNIQUE INDEX idx_media_series_no",
		"CREATE INDEX idx_media_series_uuid",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("Schema() missing %q", want)
		}
	}
	for _, unwanted := range []string{"schema_migrations", "sqlite_sequence"} {
		if strings.Contains(schema, unwanted) {
			t.Errorf("Schema() contains %q", unwanted)
		}
	}

	// Tables come before indexes.
	if strings.Index(schema, "CREATE TABLE series") > strings.Index(schema, "CREATE UNIQUE INDEX") {
		t.Error("Schema() lists an index before a table")
	}
}

func TestSchemaFile_Current(t *testing.T) {
	data, err := os.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("reading schema.sql: %v", err)
	}

	idx := newTestIndex(t)
	schema, err := idx.Schema()
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}

	// Compare statement sets; whitespace inside statements is SQLite's.
	fields := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	if fields(string(data)) != fields(schema) {
		t.Error("schema.sql is stale: run go generate ./internal/index")
	}
}
