package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = "id, filename, payload, metadata_json, idempotency_key, status, attempts, error_message, enqueued_at, updated_at"

// Put inserts or overwrites an item by ID. The write is durable before Put
// returns: the WAL is synced under PRAGMA synchronous=FULL.
func (s *Store) Put(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if item.ID == "" {
		return errors.New("item ID is empty")
	}
	if !s.hasCapacity(len(item.Payload)) {
		return fmt.Errorf("put %s: %w", item.ID, ErrStorageFull)
	}

	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`INSERT OR REPLACE INTO queue_items (`+itemColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Filename,
		item.Payload,
		nullableString(item.MetadataJSON),
		item.IdempotencyKey,
		string(item.Status),
		item.Attempts,
		nullableString(item.ErrorMessage),
		item.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		item.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// GetByID fetches a queue item by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns items ordered by enqueue time ascending, optionally filtered
// by status. Drain order is oldest first so field observations keep their
// causal order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY enqueued_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Remove deletes an item. Removing an absent ID is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	return nil
}

// Update persists status, attempts, and error message for an existing item.
// Payload and metadata are immutable after enqueue.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, attempts = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(item.Status),
		item.Attempts,
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// ResetUploading reverts items stuck in uploading back to pending. Run at
// open: an item left mid-upload by a crash must not be skipped forever.
func (s *Store) ResetUploading(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ?`,
		string(StatusPending),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(StatusUploading),
	)
	if err != nil {
		return 0, fmt.Errorf("reset uploading items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// ClearFailed removes all items parked in failed.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, string(StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("clear failed items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// RetryFailed requeues failed items as pending and resets their attempt
// counts, used by the explicit "retry queue now" action.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, attempts = 0, error_message = NULL, updated_at = ? WHERE status = ?`,
		string(StatusPending),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(StatusFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// Health reports aggregated queue counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch Status(statusStr) {
		case StatusPending:
			summary.Pending = count
		case StatusUploading:
			summary.Uploading = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return HealthSummary{}, fmt.Errorf("iterate health rows: %w", err)
	}
	return summary, nil
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id             string
		filename       string
		payload        []byte
		metadata       sql.NullString
		idempotencyKey string
		statusStr      string
		attempts       int
		errorMessage   sql.NullString
		enqueuedRaw    string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&id,
		&filename,
		&payload,
		&metadata,
		&idempotencyKey,
		&statusStr,
		&attempts,
		&errorMessage,
		&enqueuedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:             id,
		Filename:       filename,
		Payload:        payload,
		MetadataJSON:   metadata.String,
		IdempotencyKey: idempotencyKey,
		Status:         Status(statusStr),
		Attempts:       attempts,
		ErrorMessage:   errorMessage.String,
	}
	// A corrupt timestamp must surface, not silently zero: List orders by
	// enqueued_at and a zeroed value would jump the item to the front.
	enqueued, err := parseTimeString(enqueuedRaw)
	if err != nil {
		return nil, fmt.Errorf("parse enqueued_at of %s: %w", id, err)
	}
	updated, err := parseTimeString(updatedRaw)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at of %s: %w", id, err)
	}
	item.EnqueuedAt = enqueued
	item.UpdatedAt = updated
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
