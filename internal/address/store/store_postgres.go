package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sixd/internal/address/models"
	id "sixd/pkg/domain"
	"sixd/pkg/platform/sentinel"
	txcontext "sixd/pkg/platform/tx"
)

const uniqueViolation = "23505"

const recordColumns = `account_id, six_d_code, locality_suffix, region, city, district, neighborhood, lat, lng, registered_at`

// PostgresStore persists addresses in PostgreSQL. Every method joins the
// transaction in ctx when one is open.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByAccount(ctx context.Context, accountID id.AccountID) (*models.AddressRecord, error) {
	row := txcontext.Querier(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM addresses WHERE account_id = $1`, uuid.UUID(accountID))
	return scanRecord(row)
}

// FindByAccountForUpdate must run inside a transaction for the lock to hold.
func (s *PostgresStore) FindByAccountForUpdate(ctx context.Context, accountID id.AccountID) (*models.AddressRecord, error) {
	if _, ok := txcontext.From(ctx); !ok {
		return nil, fmt.Errorf("find address for update: %w", sentinel.ErrInvalidState)
	}
	row := txcontext.Querier(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM addresses WHERE account_id = $1 FOR UPDATE`, uuid.UUID(accountID))
	return scanRecord(row)
}

func (s *PostgresStore) Insert(ctx context.Context, r *models.AddressRecord) error {
	_, err := txcontext.Querier(ctx, s.db).ExecContext(ctx,
		`INSERT INTO addresses (`+recordColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		recordArgs(r)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert address: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (s *PostgresStore) ArchiveAndReplace(ctx context.Context, archived models.HistoryEntry, next *models.AddressRecord) error {
	q := txcontext.Querier(ctx, s.db)
	args := append(recordArgs(&archived.AddressRecord), archived.ArchivedAt)
	if _, err := q.ExecContext(ctx,
		`INSERT INTO address_history (`+recordColumns+`, archived_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, args...); err != nil {
		return fmt.Errorf("archive address: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE addresses
		SET six_d_code = $2, locality_suffix = $3, region = $4, city = $5, district = $6,
		    neighborhood = $7, lat = $8, lng = $9, registered_at = $10
		WHERE account_id = $1`, recordArgs(next)...)
	if err != nil {
		return fmt.Errorf("replace address: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace address: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, accountID id.AccountID) ([]models.HistoryEntry, error) {
	rows, err := txcontext.Querier(ctx, s.db).QueryContext(ctx,
		`SELECT `+recordColumns+`, archived_at FROM address_history
		 WHERE account_id = $1 ORDER BY archived_at DESC, id DESC`, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("list address history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var (
			e   models.HistoryEntry
			raw uuid.UUID
		)
		if err := rows.Scan(&raw, &e.Code, &e.LocalitySuffix, &e.Region, &e.City, &e.District,
			&e.Neighborhood, &e.Point.Lat, &e.Point.Lng, &e.RegisteredAt, &e.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan address history: %w", err)
		}
		e.AccountID = id.AccountID(raw)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address history: %w", err)
	}
	return out, nil
}

func recordArgs(r *models.AddressRecord) []any {
	return []any{
		uuid.UUID(r.AccountID), r.Code, r.LocalitySuffix, r.Region, r.City, r.District,
		r.Neighborhood, r.Point.Lat, r.Point.Lng, r.RegisteredAt,
	}
}

func scanRecord(row *sql.Row) (*models.AddressRecord, error) {
	var (
		r   models.AddressRecord
		raw uuid.UUID
	)
	err := row.Scan(&raw, &r.Code, &r.LocalitySuffix, &r.Region, &r.City, &r.District,
		&r.Neighborhood, &r.Point.Lat, &r.Point.Lng, &r.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find address: %w", err)
	}
	r.AccountID = id.AccountID(raw)
	return &r, nil
}
