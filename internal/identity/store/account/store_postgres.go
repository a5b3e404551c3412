package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sixd/internal/identity/models"
	id "sixd/pkg/domain"
	"sixd/pkg/platform/sentinel"
	txcontext "sixd/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists accounts in PostgreSQL and joins any transaction in ctx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	_, err := txcontext.Querier(ctx, s.db).ExecContext(ctx, `
		INSERT INTO accounts (id, external_ref, phone_number, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(account.ID), account.ExternalRef, account.PhoneNumber, account.DisplayName,
		account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("account for %s: %w", account.ExternalRef, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := txcontext.Querier(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, external_ref, phone_number, display_name, created_at, updated_at
		FROM accounts WHERE id = $1
	`, uuid.UUID(accountID))
	return scanAccount(row)
}

func (s *PostgresStore) FindByExternalRef(ctx context.Context, externalRef string) (*models.Account, error) {
	row := txcontext.Querier(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, external_ref, phone_number, display_name, created_at, updated_at
		FROM accounts WHERE external_ref = $1
	`, externalRef)
	return scanAccount(row)
}

func (s *PostgresStore) Update(ctx context.Context, account *models.Account) error {
	res, err := txcontext.Querier(ctx, s.db).ExecContext(ctx, `
		UPDATE accounts SET display_name = $2, updated_at = $3 WHERE id = $1
	`, uuid.UUID(account.ID), account.DisplayName, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		acc models.Account
		raw uuid.UUID
	)
	err := row.Scan(&raw, &acc.ExternalRef, &acc.PhoneNumber, &acc.DisplayName, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	acc.ID = id.AccountID(raw)
	return &acc, nil
}
