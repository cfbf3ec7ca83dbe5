package tracking

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchemaName = "schema/sqlite.sql"

//go:embed schema/*.sql
var schemaFS embed.FS

// LoadSchema reads a schema file embedded in the binary.
func LoadSchema(name string) (string, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SQLStore keeps records in a SQL table, one row per conversation, and uses
// the revision column as a compare-and-set guard.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a SQLite database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a :memory: database lives and dies with its connection
	db.SetMaxOpenConns(1)
	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	schema, err := LoadSchema(sqliteSchemaName)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate tracking schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Get(ctx context.Context, key string) (Record, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM tracking_records WHERE conversation_key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("select tracking record: %w", err)
	}
	return decodeRecord(body)
}

func (s *SQLStore) Set(ctx context.Context, key string, rec Record) (int64, error) {
	stored := rec
	stored.Revision = rec.Revision + 1
	body, err := encodeRecord(stored)
	if err != nil {
		return 0, err
	}

	var res sql.Result
	if rec.Revision == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO tracking_records (conversation_key, revision, body) VALUES (?, ?, ?) ON CONFLICT(conversation_key) DO NOTHING`,
			key, stored.Revision, body)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE tracking_records SET revision = ?, body = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE conversation_key = ? AND revision = ?`,
			stored.Revision, body, key, rec.Revision)
	}
	if err != nil {
		return 0, fmt.Errorf("write tracking record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, &ConflictError{Key: key, ExpectedRevision: rec.Revision, CurrentRevision: s.revision(ctx, key)}
	}
	return stored.Revision, nil
}

// revision is best effort; it only feeds the conflict error.
func (s *SQLStore) revision(ctx context.Context, key string) int64 {
	var rev int64
	if err := s.db.QueryRowContext(ctx, `SELECT revision FROM tracking_records WHERE conversation_key = ?`, key).Scan(&rev); err != nil {
		return -1
	}
	return rev
}
