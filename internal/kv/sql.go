package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const tableName = "tasklist_kv"

type dialect struct {
	name   string
	create string
	get    string
	upsert string
}

var (
	sqliteDialect = dialect{
		name:   "sqlite3",
		create: `CREATE TABLE IF NOT EXISTS ` + tableName + ` (k TEXT PRIMARY KEY, v TEXT NOT NULL)`,
		get:    `SELECT v FROM ` + tableName + ` WHERE k = ?`,
		upsert: `INSERT INTO ` + tableName + ` (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
	}
	mysqlDialect = dialect{
		name:   "mysql",
		create: `CREATE TABLE IF NOT EXISTS ` + tableName + ` (k VARCHAR(191) PRIMARY KEY, v LONGTEXT NOT NULL)`,
		get:    `SELECT v FROM ` + tableName + ` WHERE k = ?`,
		upsert: `INSERT INTO ` + tableName + ` (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`,
	}
)

// SQLStore keeps keys in a single two-column table.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// OpenSQLite opens (creating if needed) a SQLite database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return newSQLStore(ctx, db, sqliteDialect)
}

// OpenMySQL connects to the server named by dsn, e.g.
// "user:pass@tcp(127.0.0.1:3306)/tasklist".
func OpenMySQL(ctx context.Context, dsn string) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	if cfg.DBName == "" {
		return nil, errors.New("mysql: dsn must name a database")
	}
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return newSQLStore(ctx, db, mysqlDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, d.create); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: create table: %w", d.name, err)
	}
	return &SQLStore{db: db, d: d}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	var v string
	err := s.db.QueryRowContext(ctx, s.d.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: get %q: %w", s.d.name, key, err)
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.d.upsert, key, value); err != nil {
		return fmt.Errorf("%s: set %q: %w", s.d.name, key, err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
