package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultRetentionDays is how long a seen title stays in the store.
// Titles older than this are pruned at the start of every run, so the
// store never grows without bound.
const DefaultRetentionDays = 3

// Record is one previously-seen article. Title is the dedup identity for
// the whole system: two articles with the same title are the same event.
type Record struct {
	Title       string
	Link        string
	Description string
	PubDate     string
	Summary     string
	Sentiment   string
	CreatedAt   string
}

// DB wraps the SQLite connection and provides the retention operations.
type DB struct {
	conn *sql.DB
}

// NewDB opens the database at path and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS news (
		title TEXT UNIQUE,
		link TEXT,
		description TEXT,
		pubDate TEXT,
		summary TEXT,
		sentiment TEXT,
		created_at DATE
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Prune deletes records created more than horizonDays before now.
// Idempotent; safe on an empty store.
func (db *DB) Prune(ctx context.Context, now time.Time, horizonDays int) error {
	cutoff := now.AddDate(0, 0, -horizonDays).Format("2006-01-02")
	_, err := db.conn.ExecContext(ctx, `DELETE FROM news WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("prune news: %w", err)
	}
	return nil
}

// Exists reports whether a record with exactly this title is stored.
func (db *DB) Exists(ctx context.Context, title string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM news WHERE title = ?`, title).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert persists a record. A record with the same title already present
// makes this a silent no-op, never an error.
func (db *DB) Insert(ctx context.Context, rec *Record) error {
	query := `
	INSERT OR IGNORE INTO news (title, link, description, pubDate, summary, sentiment, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		rec.Title,
		rec.Link,
		rec.Description,
		rec.PubDate,
		rec.Summary,
		rec.Sentiment,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (db *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM news`).Scan(&count)
	return count, err
}
