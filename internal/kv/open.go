package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

var Backends = []string{BackendFile, BackendSQLite, BackendMySQL, BackendMemory}

// Open builds the store for backend. root is the store root used by the file
// backend and as the default location of the sqlite database.
func Open(ctx context.Context, backend, dsn, root string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		dir := strings.TrimSpace(dsn)
		if dir == "" {
			dir = filepath.Join(root, "data")
		}
		return NewFile(dir)
	case BackendSQLite:
		path := strings.TrimSpace(dsn)
		if path == "" {
			path = filepath.Join(root, "tasklist.db")
		}
		return OpenSQLite(ctx, path)
	case BackendMySQL:
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("mysql: dsn is required")
		}
		return OpenMySQL(ctx, dsn)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want one of %s)", backend, strings.Join(Backends, "|"))
	}
}
