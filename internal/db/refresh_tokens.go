package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusnet/internal/models"
)

type RefreshTokenRepository struct {
	db DBTX
}

func NewRefreshTokenRepository(db DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) WithTx(tx *sql.Tx) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: tx}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, userID, tokenHash, ipAddress, userAgent string, expiresAt time.Time) (*models.RefreshToken, error) {
	id, err := GenerateID("rft")
	if err != nil {
		return nil, fmt.Errorf("generating refresh token ID: %w", err)
	}
	now := nowUTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, ip_address, user_agent, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, tokenHash, ipAddress, userAgent, expiresAt.UTC(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating refresh token: %w", err)
	}

	return &models.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
	}, nil
}

// FindActiveByHash looks a token up by hash scoped to the claimed user.
// Revoked and expired tokens are filtered out, so reuse after logout,
// rotation or reset resolves to ErrNotFound.
func (r *RefreshTokenRepository) FindActiveByHash(ctx context.Context, tokenHash, userID string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	var ipAddress, userAgent sql.NullString
	var revokedAt, lastUsedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, ip_address, user_agent, expires_at, revoked_at, last_used_at, created_at
		 FROM refresh_tokens
		 WHERE token_hash = ? AND user_id = ? AND revoked_at IS NULL AND expires_at > ?`,
		tokenHash, userID, nowUTC(),
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &ipAddress, &userAgent, &t.ExpiresAt, &revokedAt, &lastUsedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying refresh token: %w", err)
	}

	if ipAddress.Valid {
		t.IPAddress = ipAddress.String
	}
	if userAgent.Valid {
		t.UserAgent = userAgent.String
	}
	t.RevokedAt = nullTimeToPtr(revokedAt)
	t.LastUsedAt = nullTimeToPtr(lastUsedAt)
	return &t, nil
}

// RevokeByHash performs a logical revoke. Revoking a token that is already
// inactive or unknown is not an error, which keeps logout idempotent.
func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
		nowUTC(), tokenHash,
	)
	if err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		nowUTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("revoking refresh tokens for user: %w", err)
	}
	return nil
}

// RevokeForRotation invalidates a token as the first step of rotation. The
// WHERE clause re-checks that the token is still active and unexpired, so
// of two concurrent rotations of the same token exactly one sees a row
// affected; the other must treat the token as already used.
func (r *RefreshTokenRepository) RevokeForRotation(ctx context.Context, id string) (int64, error) {
	now := nowUTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL AND expires_at > ?`,
		now, id, now,
	)
	if err != nil {
		return 0, fmt.Errorf("revoking refresh token for rotation: %w", err)
	}
	return result.RowsAffected()
}

func (r *RefreshTokenRepository) TouchLastUsed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET last_used_at = ? WHERE id = ?`,
		nowUTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating refresh token last used: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired refresh tokens: %w", err)
	}
	return result.RowsAffected()
}
