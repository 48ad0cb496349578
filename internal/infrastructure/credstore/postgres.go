package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"newsintel/internal/domain"
	"newsintel/internal/ports"
)

// PostgresStore is the remote user-record store holding per-user API keys.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.CredentialStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByID loads a record by user identity; absence is domain.ErrRecordAbsent.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (domain.CredentialRecord, error) {
	return s.getWhere(ctx, sq.Eq{"id": id})
}

// GetByEmail is the secondary lookup used when identity lookup yields nothing.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (domain.CredentialRecord, error) {
	return s.getWhere(ctx, sq.Eq{"email": email})
}

func (s *PostgresStore) getWhere(ctx context.Context, pred sq.Eq) (domain.CredentialRecord, error) {
	if s.db == nil {
		return domain.CredentialRecord{}, fmt.Errorf("credential store has no database")
	}

	query, args, err := s.builder.
		Select("id", "email", "news_key", "gemini_key", "fallback_key", "api_key").
		From("users").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("build query: %w", err)
	}

	var (
		record                                    domain.CredentialRecord
		newsKey, geminiKey, fallbackKey, legacyKey sql.NullString
	)
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&record.ID, &record.Email, &newsKey, &geminiKey, &fallbackKey, &legacyKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CredentialRecord{}, domain.ErrRecordAbsent
		}
		return domain.CredentialRecord{}, fmt.Errorf("scan user record: %w", err)
	}

	record.SourceKey = newsKey.String
	record.PrimaryKey = geminiKey.String
	record.SecondaryKey = fallbackKey.String
	record.APIKey = legacyKey.String
	return record, nil
}

// UpdateKeys applies a partial key update; nil patch fields are untouched.
// This is the key-rotation path; it is the only write this store performs.
func (s *PostgresStore) UpdateKeys(ctx context.Context, id string, patch domain.CredentialPatch) error {
	if s.db == nil {
		return fmt.Errorf("credential store has no database")
	}

	update := s.builder.Update("users").Where(sq.Eq{"id": id})

	changed := false
	if patch.SourceKey != nil {
		update = update.Set("news_key", *patch.SourceKey)
		changed = true
	}
	if patch.PrimaryKey != nil {
		update = update.Set("gemini_key", *patch.PrimaryKey)
		changed = true
	}
	if patch.SecondaryKey != nil {
		update = update.Set("fallback_key", *patch.SecondaryKey)
		changed = true
	}
	if !changed {
		return nil
	}

	query, args, err := update.Set("updated_at", sq.Expr("NOW()")).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrRecordAbsent
	}

	return nil
}
