package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"idem/internal/identity/models"
	"idem/pkg/platform/sentinel"
)

// PostgresStore persists identity records in PostgreSQL. AdditionalData is
// stored as JSONB so reconciliation annotations survive round trips intact.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the identities table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identities (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL DEFAULT '',
			email           TEXT NOT NULL DEFAULT '',
			phone           TEXT NOT NULL DEFAULT '',
			date_added      TIMESTAMPTZ NOT NULL,
			qr_data         TEXT NOT NULL DEFAULT '',
			is_verified     BOOLEAN NOT NULL DEFAULT FALSE,
			additional_data JSONB
		)`)
	if err != nil {
		return fmt.Errorf("ensure identities schema: %w", err)
	}
	return nil
}

const identityColumns = "id, name, email, phone, date_added, qr_data, is_verified, additional_data"

func (s *PostgresStore) Load(ctx context.Context) ([]models.IdentityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+identityColumns+" FROM identities ORDER BY date_added, id")
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	defer rows.Close()

	var records []models.IdentityRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Save(ctx context.Context, records []models.IdentityRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save identities: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM identities"); err != nil {
		return fmt.Errorf("save identities: %w", err)
	}
	for _, record := range records {
		if err := upsertTx(ctx, tx, record); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save identities: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.IdentityRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE id = $1", id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *PostgresStore) Add(ctx context.Context, record models.IdentityRecord) (models.IdentityRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DateAdded.IsZero() {
		record.DateAdded = time.Now().UTC()
	}

	data, err := marshalAdditionalData(record.AdditionalData)
	if err != nil {
		return models.IdentityRecord{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO identities (id, name, email, phone, date_added, qr_data, is_verified, additional_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.Name, record.Email, record.Phone,
		record.DateAdded, record.QRData, record.IsVerified, data)
	if err != nil {
		if isUniqueViolation(err) {
			return models.IdentityRecord{}, sentinel.ErrConflict
		}
		return models.IdentityRecord{}, fmt.Errorf("add identity: %w", err)
	}
	return record, nil
}

// Update is read-modify-write inside a transaction; there is no version
// token, so concurrent updates to the same record are last-write-wins.
func (s *PostgresStore) Update(ctx context.Context, id string, update models.IdentityUpdate) (*models.IdentityRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update identity: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE id = $1", id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}

	applyUpdate(&record, update)
	if err := upsertTx(ctx, tx, record); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update identity: %w", err)
	}
	return &record, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	return affected > 0, nil
}

func upsertTx(ctx context.Context, tx *sql.Tx, record models.IdentityRecord) error {
	data, err := marshalAdditionalData(record.AdditionalData)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (id, name, email, phone, date_added, qr_data, is_verified, additional_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			qr_data = EXCLUDED.qr_data,
			is_verified = EXCLUDED.is_verified,
			additional_data = EXCLUDED.additional_data`,
		record.ID, record.Name, record.Email, record.Phone,
		record.DateAdded, record.QRData, record.IsVerified, data)
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.IdentityRecord, error) {
	var record models.IdentityRecord
	var data []byte

	err := row.Scan(&record.ID, &record.Name, &record.Email, &record.Phone,
		&record.DateAdded, &record.QRData, &record.IsVerified, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.IdentityRecord{}, err
		}
		return models.IdentityRecord{}, fmt.Errorf("scan identity: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &record.AdditionalData); err != nil {
			return models.IdentityRecord{}, fmt.Errorf("decode additional data: %w", err)
		}
	}
	record.DateAdded = record.DateAdded.UTC()
	return record, nil
}

func marshalAdditionalData(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode additional data: %w", err)
	}
	return out, nil
}

// isUniqueViolation matches the unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
