// Package migrations embeds and applies the SQL schema of the action journal
// (PostgreSQL) and the transfer history (ClickHouse).
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// Execer runs one SQL statement. Both pgxpool and the ClickHouse driver fit
// behind a small adapter.
type Execer func(ctx context.Context, stmt string) error

// load returns the statements of every .sql file under dir, files in lexical
// order and statements in file order.
func load(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	var stmts []string
	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return nil, fmt.Errorf("validate migration %s: %w", file, err)
		}
		stmts = append(stmts, splitStatements(string(data))...)
	}
	return stmts, nil
}

func apply(ctx context.Context, fsys fs.FS, dir string, exec Execer) error {
	stmts, err := load(fsys, dir)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if err := exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s migration statement %d: %w", dir, i+1, err)
		}
	}
	return nil
}

// Postgres applies the journal schema. Statements are idempotent.
func Postgres(ctx context.Context, exec Execer) error {
	return apply(ctx, postgresFS, "postgres", exec)
}

// Clickhouse applies the transfer history schema. Statements are idempotent.
func Clickhouse(ctx context.Context, exec Execer) error {
	return apply(ctx, clickhouseFS, "clickhouse", exec)
}

// splitStatements splits SQL on semicolons after dropping blank and "--" lines.
// The ClickHouse driver does not run multi-statement Exec, so both backends get
// one statement at a time. Semicolons inside string literals are rejected by
// validateNoSemicolonInStrings before splitting.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(filtered, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch ch := sql[i]; {
		case ch == '\'' && i+1 < len(sql) && sql[i+1] == '\'':
			i++
		case ch == '\'':
			inString = !inString
		case ch == ';' && inString:
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}
