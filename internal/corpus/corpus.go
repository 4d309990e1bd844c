// Package corpus persists one perceptual fingerprint per stored image,
// keyed by (chat_id, message_id). It is the permanent record every future
// duplicate check is judged against: entries are written once and never
// updated or deleted.
package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dupfinder/internal/fingerprint"
)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL,
	message_id INTEGER NOT NULL,
	chat_title TEXT NOT NULL DEFAULT '',
	hash INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_images_chat ON images(chat_id);`

// Entry is one stored image fingerprint. ChatTitle is diagnostic only and
// never participates in matching.
type Entry struct {
	ChatID    int64
	MessageID int
	ChatTitle string
	Hash      fingerprint.Fingerprint
}

// Match is the result of a nearest-fingerprint search.
type Match struct {
	MessageID int
	Distance  int
}

// MaxDistance disables the distance gate in FindClosest: no two 64-bit
// fingerprints can differ by more bits.
const MaxDistance = 64

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the corpus database at path.
func Open(path string) (*Store, error) {
	// WAL mode: the bot reads and writes from concurrent update handlers.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert adds an entry. A duplicate (chat_id, message_id) key is ignored:
// the corpus keeps whichever entry was written first.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO images (chat_id, message_id, chat_title, hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ChatID, e.MessageID, e.ChatTitle, int64(e.Hash), time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert image hash: %w", err)
	}
	return nil
}

// Scan returns every entry stored for a chat, in insertion order.
func (s *Store) Scan(ctx context.Context, chatID int64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, chat_title, hash FROM images
		WHERE chat_id = ?
		ORDER BY id
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("scan chat %d: %w", chatID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{ChatID: chatID}
		var raw int64
		if err := rows.Scan(&e.MessageID, &e.ChatTitle, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Hash = fingerprint.Fingerprint(raw)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan chat %d: %w", chatID, err)
	}
	return entries, nil
}

// FindClosest linearly scans a chat's fingerprints for the entry closest to
// query by Hamming distance. Entries at more than maxDistance bits are
// ignored (pass MaxDistance for an ungated search). excludeMessageID > 0
// removes that message from consideration, for "closest to this one"
// queries. On a distance tie the earliest-inserted entry wins, so duplicate
// chains stay anchored to the original post. Returns nil when nothing in
// scope qualifies.
func (s *Store) FindClosest(ctx context.Context, chatID int64, query fingerprint.Fingerprint, maxDistance int, excludeMessageID int) (*Match, error) {
	entries, err := s.Scan(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var best *Match
	for _, e := range entries {
		if excludeMessageID > 0 && e.MessageID == excludeMessageID {
			continue
		}
		d := fingerprint.Distance(query, e.Hash)
		// Strict < keeps the earliest entry on ties.
		if best == nil || d < best.Distance {
			best = &Match{MessageID: e.MessageID, Distance: d}
		}
	}
	if best == nil || best.Distance > maxDistance {
		return nil, nil
	}
	return best, nil
}

// Count reports how many fingerprints are stored for a chat.
func (s *Store) Count(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE chat_id = ?`, chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chat %d: %w", chatID, err)
	}
	return n, nil
}

// TotalCount reports how many fingerprints are stored across all chats.
func (s *Store) TotalCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

// Checkpoint folds the WAL back into the main database file. Run
// periodically so the WAL does not grow without bound on a long-lived bot.
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
