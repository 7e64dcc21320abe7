package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// pragmas applied to every connection in the pool.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

// DB is the SQLite database holding annotation slots.
type DB struct {
	*sql.DB
	path string
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// OpenDB opens the database without touching the schema. The migrate
// command uses it so it can inspect and repair migration state.
func OpenDB(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database and applies all pending embedded migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	migrations, err := MigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Read returns the value stored in the named slot.
func (db *DB) Read(ctx context.Context, name string) ([]byte, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM slots WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %q: %w", name, err)
	}
	return []byte(value), true, nil
}

// Write replaces the value stored in the named slot.
func (db *DB) Write(ctx context.Context, name string, data []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO slots (name, value, updated_at_ns) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			updated_at_ns = excluded.updated_at_ns`,
		name, string(data), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to write slot %q: %w", name, err)
	}
	return nil
}

// SlotInfo describes one stored slot.
type SlotInfo struct {
	Name      string    `json:"name"`
	SizeBytes int       `json:"size_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListSlots returns every slot ordered by name.
func (db *DB) ListSlots(ctx context.Context) ([]SlotInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, length(value), updated_at_ns FROM slots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var (
			info SlotInfo
			ns   int64
		)
		if err := rows.Scan(&info.Name, &info.SizeBytes, &ns); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.Unix(0, ns).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
