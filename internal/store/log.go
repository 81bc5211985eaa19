// Package store provides a SQLite-backed log of received notifications.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"

	"github.com/bl4ckh401/chama/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Log is an append-only notification log.
type Log struct {
	db *sql.DB
}

// Open opens or creates the log database at the given path.
func Open(dbPath string) (*Log, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Annotate(err, "creating log dir")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Annotate(err, "opening log db")
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "creating schema")
	}

	return &Log{db: db}, nil
}

// Close closes the log database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Append records n and returns its row id.
func (l *Log) Append(ctx context.Context, n model.Notification) (int64, error) {
	at := n.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	var data sql.NullString
	if len(n.Data) > 0 {
		data = sql.NullString{String: string(n.Data), Valid: true}
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO notifications (type, message, data, user_id, received_at) VALUES (?, ?, ?, ?, ?)`,
		string(n.Type), n.Message, data, n.UserID, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, errors.Annotate(err, "appending notification")
	}
	return res.LastInsertId()
}

// Recent returns up to limit notifications, newest first. limit <= 0 means all.
func (l *Log) Recent(ctx context.Context, limit int) ([]model.Notification, error) {
	q := `SELECT type, message, data, user_id, received_at FROM notifications ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Notification
	for rows.Next() {
		var (
			n      model.Notification
			kind   string
			data   sql.NullString
			userID sql.NullString
			at     string
		)
		if err := rows.Scan(&kind, &n.Message, &data, &userID, &at); err != nil {
			return nil, errors.Trace(err)
		}
		n.Type = model.ParseNotificationType(kind)
		if data.Valid {
			n.Data = []byte(data.String)
		}
		n.UserID = userID.String
		n.ReceivedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, n)
	}
	return out, errors.Trace(rows.Err())
}

// CountByType returns how many notifications of each type were logged.
func (l *Log) CountByType(ctx context.Context) (map[model.NotificationType]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM notifications GROUP BY type`)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.NotificationType]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, errors.Trace(err)
		}
		counts[model.ParseNotificationType(kind)] += n
	}
	return counts, errors.Trace(rows.Err())
}
