// SQL backends: SQLite, PostgreSQL and MySQL.

package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	tableName        = "viewdb_documents"
	operationTimeout = 5 * time.Second
)

// dialect holds the statements that differ between databases.
type dialect struct {
	driver string
	create string
	load   string
	upsert string
	// single limits the pool to one connection, for SQLite's single writer.
	single bool
}

var (
	sqliteDialect = dialect{
		driver: "sqlite",
		create: `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	id TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
		load:   `SELECT data FROM ` + tableName + ` WHERE id = ?`,
		upsert: `INSERT INTO ` + tableName + ` (id, data, updated_at) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		single: true,
	}
	postgresDialect = dialect{
		driver: "postgres",
		create: `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	id TEXT PRIMARY KEY,
	data BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`,
		load:   `SELECT data FROM ` + tableName + ` WHERE id = $1`,
		upsert: `INSERT INTO ` + tableName + ` (id, data, updated_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	}
	mysqlDialect = dialect{
		driver: "mysql",
		create: `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	id VARCHAR(191) PRIMARY KEY,
	data LONGBLOB NOT NULL,
	updated_at DATETIME(6) NOT NULL
)`,
		load:   `SELECT data FROM ` + tableName + ` WHERE id = ?`,
		upsert: `INSERT INTO ` + tableName + ` (id, data, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`,
	}
)

// sqliteDSN turns "//path" or "path" into a modernc DSN with WAL and a busy
// timeout.
func sqliteDSN(rest string) string {
	path := strings.TrimPrefix(rest, "//")
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// SQL stores documents in a table keyed by document ID.
type SQL struct {
	db      *sql.DB
	dialect dialect
	id      string
}

func openSQL(ctx context.Context, d dialect, dsn, id string) (*SQL, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}
	if d.single {
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, d.create); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", d.driver, err)
	}
	return &SQL{db: db, dialect: d, id: id}, nil
}

// Load implements Backend.
func (s *SQL) Load(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	var data []byte
	err := s.db.QueryRowContext(ctx, s.dialect.load, s.id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", s.id, err)
	}
	return data, nil
}

// Save implements Backend.
func (s *SQL) Save(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, s.id, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save document %q: %w", s.id, err)
	}
	return nil
}

// Close implements Backend.
func (s *SQL) Close() error {
	return s.db.Close()
}
