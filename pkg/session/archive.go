package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Archiver receives sessions evicted by the reaper. Archived transcripts are
// for offline review only and are never loaded back into a Store.
type Archiver interface {
	Archive(ctx context.Context, s Session) error
}

// SQLiteArchive writes evicted transcripts to a SQLite database.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (and if needed creates) the archive at path.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	if path == "" {
		return nil, errors.New("archive path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises
	// writers, which is all the reaper needs.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	a := &SQLiteArchive{db: db}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return a, nil
}

func (a *SQLiteArchive) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_key TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_active INTEGER NOT NULL,
			archived_at INTEGER NOT NULL,
			turn_count INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transcripts_key ON transcripts(session_key);

		CREATE TABLE IF NOT EXISTS transcript_turns (
			transcript_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts INTEGER NOT NULL,
			PRIMARY KEY (transcript_id, seq),
			FOREIGN KEY (transcript_id) REFERENCES transcripts(id) ON DELETE CASCADE
		);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Archive stores s with all of its turns in one transaction.
func (a *SQLiteArchive) Archive(ctx context.Context, s Session) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transcripts (session_key, created_at, last_active, archived_at, turn_count)
		 VALUES (?, ?, ?, ?, ?)`,
		s.Key,
		s.CreatedAt.UnixMilli(),
		s.LastActive.UnixMilli(),
		time.Now().UnixMilli(),
		len(s.Turns),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transcript id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_turns (transcript_id, seq, role, content, ts) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for i, turn := range s.Turns {
		if _, err := stmt.ExecContext(ctx, id, i, string(turn.Role), turn.Content, turn.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert turn %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcript: %w", err)
	}
	return nil
}

// Transcripts returns every archived transcript for key, oldest first.
func (a *SQLiteArchive) Transcripts(ctx context.Context, key string) ([]Session, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, created_at, last_active FROM transcripts WHERE session_key = ? ORDER BY id`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}

	type header struct {
		id                    int64
		createdAt, lastActive int64
	}
	var headers []header
	for rows.Next() {
		var h header
		if err := rows.Scan(&h.id, &h.createdAt, &h.lastActive); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		headers = append(headers, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcripts: %w", err)
	}

	out := make([]Session, 0, len(headers))
	for _, h := range headers {
		turns, err := a.turns(ctx, h.id)
		if err != nil {
			return nil, err
		}
		out = append(out, Session{
			Key:        key,
			Turns:      turns,
			CreatedAt:  time.UnixMilli(h.createdAt),
			LastActive: time.UnixMilli(h.lastActive),
		})
	}
	return out, nil
}

func (a *SQLiteArchive) turns(ctx context.Context, transcriptID int64) ([]Turn, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT role, content, ts FROM transcript_turns WHERE transcript_id = ? ORDER BY seq`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var (
			role, content string
			ts            int64
		)
		if err := rows.Scan(&role, &content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, Turn{Role: Role(role), Content: content, Timestamp: time.UnixMilli(ts)})
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
