package trackingdb

import (
	"context"
	"database/sql"
	"time"

	"shopbridge/internal/tracking"
)

// PostgresStore persists tracking records in Postgres, giving tracking sync
// durability across restarts when wired in place of the memory store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a RecordStore backed by Postgres.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStoreWithSchema initializes the schema then returns the store.
func NewPostgresStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	store := NewPostgresStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the tracking_records table if it does not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tracking_records (
			order_id TEXT PRIMARY KEY,
			fulfillment_order_id TEXT NOT NULL,
			sync_attempts INT NOT NULL DEFAULT 0,
			last_attempt_at TIMESTAMPTZ,
			synced BOOLEAN NOT NULL DEFAULT FALSE,
			synced_at TIMESTAMPTZ,
			last_error TEXT NOT NULL DEFAULT ''
		)
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (tracking.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, fulfillment_order_id, sync_attempts, last_attempt_at, synced, synced_at, last_error
		FROM tracking_records WHERE order_id = $1`, orderID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return tracking.Record{}, false, nil
	}
	if err != nil {
		return tracking.Record{}, false, err
	}
	return record, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, record tracking.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking_records
			(order_id, fulfillment_order_id, sync_attempts, last_attempt_at, synced, synced_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO UPDATE SET
			fulfillment_order_id = EXCLUDED.fulfillment_order_id,
			sync_attempts = EXCLUDED.sync_attempts,
			last_attempt_at = EXCLUDED.last_attempt_at,
			synced = EXCLUDED.synced,
			synced_at = EXCLUDED.synced_at,
			last_error = EXCLUDED.last_error`,
		record.OrderID,
		record.FulfillmentOrderID,
		record.SyncAttempts,
		nullTime(record.LastAttemptAt),
		record.Synced,
		nullTime(record.SyncedAt),
		record.LastError,
	)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracking_records WHERE order_id = $1`, orderID)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]tracking.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, fulfillment_order_id, sync_attempts, last_attempt_at, synced, synced_at, last_error
		FROM tracking_records ORDER BY order_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []tracking.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (tracking.Record, error) {
	var record tracking.Record
	var lastAttempt, syncedAt sql.NullTime
	err := row.Scan(
		&record.OrderID,
		&record.FulfillmentOrderID,
		&record.SyncAttempts,
		&lastAttempt,
		&record.Synced,
		&syncedAt,
		&record.LastError,
	)
	if err != nil {
		return tracking.Record{}, err
	}
	if lastAttempt.Valid {
		record.LastAttemptAt = lastAttempt.Time
	}
	if syncedAt.Valid {
		record.SyncedAt = syncedAt.Time
	}
	return record, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
