package index

// schema.sql is a readable snapshot of the index schema after all
// migrations. Regenerate it after adding a migration:
//   go generate ./internal/index

//go:generate sh -c "cd ../.. && go run ./internal/index/tools"
