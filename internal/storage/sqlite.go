package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite"
)

// SQLiteBlobs is a BlobStore backed by a SQLite table. It spills payloads
// out of the Go heap; it is not a persistence layer, and the table is
// emptied every time it is opened.
type SQLiteBlobs struct {
	db *sql.DB
}

// OpenSQLiteBlobs opens (or creates) the database at path, retrying the
// initial ping while the file is locked by another process.
func OpenSQLiteBlobs(ctx context.Context, path string) (*SQLiteBlobs, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// ":memory:" databases are per connection.
	sqlDB.SetMaxOpenConns(1)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(func() error {
		return sqlDB.PingContext(ctx)
	}, backoff.WithContext(b, ctx)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &SQLiteBlobs{db: sqlDB}
	if err := s.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteBlobs) Close() error {
	return s.db.Close()
}

func (s *SQLiteBlobs) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS blobs (
    content_id TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    size INTEGER NOT NULL,
    checksum TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
DELETE FROM blobs;
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func checksum(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *SQLiteBlobs) Put(ctx context.Context, contentID string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (content_id, data, size, checksum, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(content_id) DO UPDATE SET
		   data = excluded.data, size = excluded.size, checksum = excluded.checksum`,
		contentID, data, len(data), checksum(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

func (s *SQLiteBlobs) Get(ctx context.Context, contentID string) ([]byte, error) {
	var (
		data []byte
		sum  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, checksum FROM blobs WHERE content_id = ?`, contentID,
	).Scan(&data, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %q: %w", contentID, ErrBlobMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	if checksum(data) != sum {
		return nil, fmt.Errorf("blob %q: %w", contentID, ErrChecksum)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *SQLiteBlobs) Delete(ctx context.Context, contentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE content_id = ?`, contentID); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *SQLiteBlobs) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content_id FROM blobs ORDER BY content_id`)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan blob key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
