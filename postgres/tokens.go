package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// RefreshTokenRepository stores refresh token hashes keyed by (user_id, token_hash).
type RefreshTokenRepository struct {
	db DBTX
}

func NewRefreshTokenRepository(db DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, rec goIdentity.RefreshTokenRecord) error {
	query :=
		`INSERT INTO refresh_tokens (user_id, token_hash, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, rec.UserID, rec.TokenHash, rec.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Exists(ctx context.Context, userID, tokenHash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE user_id = $1 AND token_hash = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, userID, tokenHash).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, userID, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1 AND token_hash = $2`, userID, tokenHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *RefreshTokenRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// ActionTokenRepository stores action tokens.
type ActionTokenRepository struct {
	db DBTX
}

func NewActionTokenRepository(db DBTX) *ActionTokenRepository {
	return &ActionTokenRepository{db: db}
}

func (r *ActionTokenRepository) Create(ctx context.Context, token goIdentity.ActionToken) error {
	query :=
		`INSERT INTO action_tokens (id, user_id, action, new_value, created_at)
		 VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, string(token.Action), token.NewValue, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *ActionTokenRepository) Get(ctx context.Context, id string) (goIdentity.ActionToken, error) {
	query := `SELECT id, user_id, action, new_value, created_at FROM action_tokens WHERE id = $1`

	var (
		token  goIdentity.ActionToken
		action string
	)
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&token.ID, &token.UserID, &action, &token.NewValue, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goIdentity.ActionToken{}, goIdentity.ErrActionTokenInvalid
		}
		return goIdentity.ActionToken{}, fmt.Errorf("db error: %w", err)
	}
	token.Action = goIdentity.ActionType(action)
	return token, nil
}

func (r *ActionTokenRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM action_tokens WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *ActionTokenRepository) DeleteExpired(ctx context.Context, action goIdentity.ActionType, createdBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM action_tokens WHERE action = $1 AND created_at < $2`, string(action), createdBefore)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

var (
	_ goIdentity.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
	_ goIdentity.ActionTokenRepository  = (*ActionTokenRepository)(nil)
)
