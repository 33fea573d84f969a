package layer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// duckdbLayer loads the Parquet file into an in-memory DuckDB table on
// Compose and answers reads with prepared point queries.
type duckdbLayer struct {
	name  string
	path  string
	db    *sql.DB
	paths map[string]struct{}
	stmts map[string]*sql.Stmt
}

func openDuckDB(ctx context.Context, name, path string) (*duckdbLayer, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// One connection keeps every statement on the same in-memory database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	return &duckdbLayer{
		name:  name,
		path:  path,
		db:    db,
		stmts: make(map[string]*sql.Stmt),
	}, nil
}

func (l *duckdbLayer) Variant() string { return l.name }

func (l *duckdbLayer) Compose(ctx context.Context) error {
	src := strings.ReplaceAll(l.path, "'", "''")

	stmts := []string{
		"DROP TABLE IF EXISTS props",
		fmt.Sprintf("CREATE TABLE props AS SELECT * FROM read_parquet('%s')", src),
		"CREATE INDEX props_path ON props (path)",
	}
	for _, q := range stmts {
		if _, err := l.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("compose: %w", err)
		}
	}

	rows, err := l.db.QueryContext(ctx, "SELECT path FROM props")
	if err != nil {
		return fmt.Errorf("list paths: %w", err)
	}
	defer rows.Close()

	l.paths = make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("scan path: %w", err)
		}
		l.paths[p] = struct{}{}
	}

	return rows.Err()
}

func (l *duckdbLayer) Has(path string) bool {
	_, ok := l.paths[path]
	return ok
}

func (l *duckdbLayer) Get(path, prop string) (any, error) {
	if l.paths == nil {
		return nil, ErrNotComposed
	}
	if err := checkProperty(prop); err != nil {
		return nil, err
	}

	stmt, err := l.stmt(prop)
	if err != nil {
		return nil, err
	}

	var v any
	if err := stmt.QueryRow(path).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPrimNotFound, path)
		}
		return nil, fmt.Errorf("query %s of %s: %w", prop, path, err)
	}

	return v, nil
}

// stmt returns the prepared point query for prop. Property names are
// checked against the schema before they reach the SQL text.
func (l *duckdbLayer) stmt(prop string) (*sql.Stmt, error) {
	if s, ok := l.stmts[prop]; ok {
		return s, nil
	}

	s, err := l.db.Prepare(fmt.Sprintf(`SELECT "%s" FROM props WHERE path = ?`, prop))
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", prop, err)
	}
	l.stmts[prop] = s

	return s, nil
}

func (l *duckdbLayer) Len() int { return len(l.paths) }

func (l *duckdbLayer) Close() error {
	for _, s := range l.stmts {
		s.Close()
	}

	return l.db.Close()
}
