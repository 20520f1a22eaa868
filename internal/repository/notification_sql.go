package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bazaar-api/internal/model"
)

// SQLNotificationStore implements NotificationStore on top of a Database.
// created_at is stored as unix milliseconds so every dialect orders it the same way.
type SQLNotificationStore struct {
	*Database
}

// NewNotificationStore creates a notification store sharing the given database.
func NewNotificationStore(db *Database) *SQLNotificationStore {
	return &SQLNotificationStore{Database: db}
}

// Append stores a notification and fills in its ID and creation time.
func (r *SQLNotificationStore) Append(ctx context.Context, n *model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	id, err := r.insert(ctx, r.db,
		`INSERT INTO notifications (recipient, message, created_at, is_read) VALUES (?, ?, ?, ?)`,
		n.Recipient, n.Message, n.CreatedAt.UnixMilli(), n.Read)
	if err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	n.ID = strconv.FormatInt(id, 10)
	return nil
}

// Unread returns unread notifications for recipient, oldest first.
func (r *SQLNotificationStore) Unread(ctx context.Context, recipient string) ([]model.Notification, error) {
	rows, err := r.query(ctx, r.db,
		`SELECT id, recipient, message, created_at, is_read FROM notifications
		 WHERE recipient = ? AND is_read = ? ORDER BY created_at, id`, recipient, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n         model.Notification
			id        int64
			createdAt int64
		)
		if err := rows.Scan(&id, &n.Recipient, &n.Message, &createdAt, &n.Read); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ID = strconv.FormatInt(id, 10)
		n.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *SQLNotificationStore) CountUnread(ctx context.Context, recipient string) (int, error) {
	var n int
	err := r.queryRow(ctx, r.db,
		`SELECT COUNT(*) FROM notifications WHERE recipient = ? AND is_read = ?`, recipient, false).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead flags the given notifications of recipient as read.
func (r *SQLNotificationStore) MarkRead(ctx context.Context, recipient string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, true, recipient)
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid notification id %q: %w", raw, err)
		}
		args = append(args, id)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := `UPDATE notifications SET is_read = ? WHERE recipient = ? AND id IN (` + placeholders + `)`
	if _, err := r.exec(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// DeleteOlderThan removes notifications created before cutoff.
func (r *SQLNotificationStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.exec(ctx, r.db, `DELETE FROM notifications WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return res.RowsAffected()
}

// Ensure SQLNotificationStore implements NotificationStore
var _ NotificationStore = (*SQLNotificationStore)(nil)
