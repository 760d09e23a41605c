package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusnet/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *UserRepository) WithTx(tx *sql.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

// Create inserts the user row and its 1:1 profile row. Callers that need
// atomicity run this on a transaction-bound repository.
func (r *UserRepository) Create(ctx context.Context, user *models.User, profile *models.UserProfile) error {
	now := time.Now().UTC()
	user.CreatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, role, is_active, is_verified, verification_token, university_id, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?, ?)`,
		user.ID, user.Email, user.Username, user.PasswordHash, user.Role, user.VerificationToken, user.UniversityID, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating user: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, first_name, last_name) VALUES (?, ?, ?)`,
		user.ID, profile.FirstName, profile.LastName,
	)
	if err != nil {
		return fmt.Errorf("creating user profile: %w", err)
	}

	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) FindActiveByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? AND is_active = 1`, id)
}

func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token = ? AND is_verified = 0`, token)
}

func (r *UserRepository) FindByValidResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token = ? AND reset_token_expires_at > ?`,
		token, now.UTC(),
	)
}

// MarkVerified consumes a verification token. The WHERE clause re-checks
// the unverified state so a token can only ever be consumed once; zero rows
// affected means the token was invalid or already used.
func (r *UserRepository) MarkVerified(ctx context.Context, token string) (int64, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = 1, verification_token = NULL, updated_at = ?
		 WHERE verification_token = ? AND is_verified = 0`,
		now, token,
	)
	if err != nil {
		return 0, fmt.Errorf("marking user verified: %w", err)
	}
	return result.RowsAffected()
}

func (r *UserRepository) SetVerificationToken(ctx context.Context, userID, token string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET verification_token = ?, is_verified = 0, updated_at = ? WHERE id = ?`,
		token, now, userID,
	)
	if err != nil {
		return fmt.Errorf("setting verification token: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token = ?, reset_token_expires_at = ?, updated_at = ? WHERE id = ?`,
		token, expiresAt.UTC(), now, userID,
	)
	if err != nil {
		return fmt.Errorf("setting reset token: %w", err)
	}
	return checkRowsAffected(result)
}

// UpdatePassword stores a new password hash and clears any outstanding
// reset token in the same statement.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, reset_token = NULL, reset_token_expires_at = NULL, updated_at = ?
		 WHERE id = ?`,
		passwordHash, now, userID,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return checkRowsAffected(result)
}

// RecordLogin stamps last_login_at and opens the session flag.
func (r *UserRepository) RecordLogin(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, is_active = 1, updated_at = ? WHERE id = ?`,
		now, now, userID,
	)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token = NULL, reset_token_expires_at = NULL
		 WHERE reset_token IS NOT NULL AND reset_token_expires_at <= ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("clearing expired reset tokens: %w", err)
	}
	return result.RowsAffected()
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, profile *models.UserProfile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles SET first_name = ?, last_name = ?, bio = ?, avatar_url = ? WHERE user_id = ?`,
		profile.FirstName, profile.LastName, profile.Bio, profile.AvatarURL, userID,
	)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) FindProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	var bio, avatarURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, first_name, last_name, bio, avatar_url FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.FirstName, &p.LastName, &bio, &avatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user profile: %w", err)
	}

	p.Bio = nullStringToPtr(bio)
	p.AvatarURL = nullStringToPtr(avatarURL)
	return &p, nil
}

// PublicByID loads the client-facing projection: user joined with profile
// and university.
func (r *UserRepository) PublicByID(ctx context.Context, userID string) (*models.PublicUser, error) {
	var u models.PublicUser
	var lastLogin sql.NullTime
	var universityLogo, bio, avatarURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.username, u.role, u.is_active, u.is_verified, u.last_login_at, u.created_at,
		        univ.name, univ.logo_url,
		        up.first_name, up.last_name, up.bio, up.avatar_url
		 FROM users u
		 JOIN universities univ ON u.university_id = univ.id
		 JOIN user_profiles up ON up.user_id = u.id
		 WHERE u.id = ?`,
		userID,
	).Scan(
		&u.ID, &u.Email, &u.Username, &u.Role, &u.IsActive, &u.IsVerified, &lastLogin, &u.CreatedAt,
		&u.UniversityName, &universityLogo,
		&u.Profile.FirstName, &u.Profile.LastName, &bio, &avatarURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying public user: %w", err)
	}

	u.LastLoginAt = nullTimeToPtr(lastLogin)
	u.UniversityLogo = nullStringToPtr(universityLogo)
	u.Profile.UserID = u.ID
	u.Profile.Bio = nullStringToPtr(bio)
	u.Profile.AvatarURL = nullStringToPtr(avatarURL)
	return &u, nil
}

const userColumns = `id, email, username, password_hash, role, is_active, is_verified,
	verification_token, reset_token, reset_token_expires_at, last_login_at, university_id, created_at, updated_at`

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	var verificationToken, resetToken sql.NullString
	var resetExpires, lastLogin, updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.IsActive, &u.IsVerified,
		&verificationToken, &resetToken, &resetExpires, &lastLogin, &u.UniversityID, &u.CreatedAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.VerificationToken = nullStringToPtr(verificationToken)
	u.ResetToken = nullStringToPtr(resetToken)
	u.ResetTokenExpiresAt = nullTimeToPtr(resetExpires)
	u.LastLoginAt = nullTimeToPtr(lastLogin)
	u.UpdatedAt = nullTimeToPtr(updatedAt)
	return &u, nil
}

func checkRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
