// Command tools writes internal/index/schema.sql from the migrations.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"mlib/internal/index"
)

func main() {
	idx, err := index.NewSQLiteIndex(":memory:")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open index: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()

	schema, err := idx.Schema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to extract schema: %v\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join("internal", "index", "schema.sql")
	if err := os.WriteFile(outPath, []byte(schema), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s from migrations\n", outPath)
}
