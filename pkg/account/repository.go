package account

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	FindByUser(ctx context.Context, userId int, provider string) ([]StoredCredential, error)
	// StoreTokens upserts the token triple keyed by (provider, provider account id).
	StoreTokens(ctx context.Context, credential StoredCredential) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindByUser(ctx context.Context, userId int, provider string) ([]StoredCredential, error) {
	rows, err := r.db.Query(ctx,
		`SELECT provider_account_id, access_token, refresh_token, expires_at
				FROM external_account
				WHERE user_id = $1 AND provider = $2
				ORDER BY provider_account_id`,
		userId, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to query external accounts: %w", err)
	}
	defer rows.Close()

	credentials := make([]StoredCredential, 0, 4)
	for rows.Next() {
		var accessToken, refreshToken sql.NullString
		var expiresAt sql.NullInt64
		credential := StoredCredential{UserId: userId, Provider: provider}
		if err := rows.Scan(&credential.ProviderAccountId, &accessToken, &refreshToken, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan external account: %w", err)
		}
		credential.AccessToken = accessToken.String
		credential.RefreshToken = refreshToken.String
		if expiresAt.Valid {
			credential.ExpiresAt = &expiresAt.Int64
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return credentials, nil
}

func (r *RepositoryImpl) StoreTokens(ctx context.Context, credential StoredCredential) error {
	const upsert = `
		INSERT INTO external_account (user_id, provider, provider_account_id, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, provider_account_id)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at`

	_, err := r.db.Exec(ctx, upsert,
		credential.UserId,
		credential.Provider,
		credential.ProviderAccountId,
		nullString(credential.AccessToken),
		nullString(credential.RefreshToken),
		credential.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store tokens for %s account %s: %w", credential.Provider, credential.ProviderAccountId, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
