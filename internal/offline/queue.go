// Package offline implements the client-side durable submission queue. A
// kiosk or companion app links this package: submissions attempted without
// connectivity are written to a local SQLite file and replayed through the
// normal online endpoint once connectivity returns.
//
// Queued items skip classification entirely; they are classified by the
// server when the replay lands, like any live submission. There is no
// idempotency token tying a queued item to a prior partial submission, so
// an item whose acknowledgment was lost before deletion can be stored twice
// server-side. That is a known, accepted risk.
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Blob is one media file captured with an offline submission.
type Blob struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Data []byte `json:"data"`
}

// Item is one queued submission.
type Item struct {
	ID          int64
	Text        string
	Type        string
	IsAnonymous bool
	Media       []Blob
	Timestamp   time.Time
}

// Queue is the durable local store. Safe for use from a single process;
// the file is device-local, so no cross-device coordination applies.
type Queue struct {
	db *sql.DB
}

// Open creates or opens the queue database at path.
func Open(path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_manifestations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			type TEXT NOT NULL,
			is_anonymous INTEGER NOT NULL DEFAULT 1,
			media TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue table: %w", err)
	}

	return &Queue{db: db}, nil
}

// Close releases the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue durably records a submission attempt. It must succeed while the
// network is down, so it touches only the local file.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	media, err := json.Marshal(item.Media)
	if err != nil {
		return fmt.Errorf("encode media: %w", err)
	}

	ts := item.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO pending_manifestations (text, type, is_anonymous, media, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		item.Text, item.Type, boolToInt(item.IsAnonymous), string(media), ts.Unix(),
	)
	if err != nil {
		return fmt.Errorf("enqueue item: %w", err)
	}
	return nil
}

// Pending returns every queued item, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, text, type, is_anonymous, media, created_at
		FROM pending_manifestations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item     Item
			anon     int
			media    string
			unixTime int64
		)
		if err := rows.Scan(&item.ID, &item.Text, &item.Type, &anon, &media, &unixTime); err != nil {
			return nil, fmt.Errorf("scan pending item: %w", err)
		}
		item.IsAnonymous = anon != 0
		item.Timestamp = time.Unix(unixTime, 0)
		if err := json.Unmarshal([]byte(media), &item.Media); err != nil {
			return nil, fmt.Errorf("decode media for item %d: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Delete removes one item. Called only after the server acknowledged the
// replayed submission; the single-statement delete is atomic per item.
func (q *Queue) Delete(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM pending_manifestations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
