package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the SQLite wasm build

	"github.com/zjrosen/lineage/internal/log"
)

// SQLiteName is the driver name of the file-backed SQLite store.
const SQLiteName = "sqlite"

func init() {
	Register(sqliteDriver{})
}

type sqliteDriver struct{}

func (sqliteDriver) Name() string { return SQLiteName }

// ConnectionURI returns file:<root>/db/<storage>.db.
func (sqliteDriver) ConnectionURI(t Target) string {
	return "file:" + filepath.Join(t.Root, "db", t.Storage+".db")
}

func (sqliteDriver) Open(_ context.Context, uri string) (Conn, error) {
	path, ok := strings.CutPrefix(uri, "file:")
	if !ok {
		return nil, fmt.Errorf("sqlite: invalid uri %q", uri)
	}
	path, _, _ = strings.Cut(path, "?")
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	log.Debug(log.CatAdapter, "sqlite opened", "path", path)
	return &sqlConn{db: db}, nil
}

// sqlConn adapts a *sql.DB to Conn.
type sqlConn struct {
	db *sql.DB
}

func (c *sqlConn) Ping(ctx context.Context) error {
	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite: test query: %w", err)
	}
	return nil
}

func (c *sqlConn) Close() error {
	return c.db.Close()
}
