// token_repository.go implements TokenRepository, providing database queries for
// refresh token issuance, single-use rotation, and revocation.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hiring-pipeline/hiring-pipeline/internal/db/models"
)

// TokenRepository handles refresh token database operations
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// NewTokenValue returns a fresh opaque refresh token value.
func NewTokenValue() string {
	return uuid.New().String()
}

// CreateToken persists a new refresh token and fills in the generated ID.
func (r *TokenRepository) CreateToken(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, issued_at, expires_at, created_by_ip, revoked)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		token.UserID,
		token.Token,
		token.IssuedAt,
		token.ExpiresAt,
		token.CreatedByIP,
	).Scan(&token.ID)
}

// GetByToken retrieves a refresh token row by its opaque value
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, issued_at, expires_at, created_by_ip,
		       revoked, revoked_at, revoked_by_ip, replaced_by_token
		FROM refresh_tokens
		WHERE token = $1
	`

	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&t.ID,
		&t.UserID,
		&t.Token,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.CreatedByIP,
		&t.Revoked,
		&t.RevokedAt,
		&t.RevokedByIP,
		&t.ReplacedByToken,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return t, nil
}

// RotateToken atomically consumes a usable refresh token and issues its
// replacement. The UPDATE's revoked = false guard makes the consume a
// compare-and-swap: of two concurrent presentations of the same token, exactly
// one wins and the other sees rotated = false. Returns the consumed token's
// user ID, the new token row, and whether the rotation happened.
func (r *TokenRepository) RotateToken(ctx context.Context, token, ip string, ttl time.Duration) (int64, *models.RefreshToken, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, false, err
	}
	defer tx.Rollback()

	now := time.Now()
	next := &models.RefreshToken{
		Token:       NewTokenValue(),
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		CreatedByIP: ip,
	}

	consume := `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2, revoked_by_ip = $3, replaced_by_token = $4
		WHERE token = $1 AND revoked = false AND expires_at > $2
		RETURNING user_id
	`

	err = tx.QueryRowContext(ctx, consume, token, now, ip, next.Token).Scan(&next.UserID)
	if err == sql.ErrNoRows {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}

	insert := `
		INSERT INTO refresh_tokens (user_id, token, issued_at, expires_at, created_by_ip, revoked)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING id
	`

	err = tx.QueryRowContext(ctx, insert,
		next.UserID, next.Token, next.IssuedAt, next.ExpiresAt, next.CreatedByIP,
	).Scan(&next.ID)
	if err != nil {
		return 0, nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, false, err
	}

	return next.UserID, next, true, nil
}

// RevokeToken marks a refresh token revoked. It returns false when the token is
// unknown or already revoked, so callers can report that outcome without treating
// it as an error.
func (r *TokenRepository) RevokeToken(ctx context.Context, token, ip string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2, revoked_by_ip = $3
		WHERE token = $1 AND revoked = false
	`

	res, err := r.db.ExecContext(ctx, query, token, time.Now(), ip)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// RevokeAllForUser revokes every usable refresh token belonging to a user and
// returns how many were revoked.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID int64, ip string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2, revoked_by_ip = $3
		WHERE user_id = $1 AND revoked = false
	`

	res, err := r.db.ExecContext(ctx, query, userID, time.Now(), ip)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
