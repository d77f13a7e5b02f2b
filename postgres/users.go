package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
)

const userColumns = `id, email, password_hash, is_active, is_two_factor_enabled, two_factor_secret,
		two_factor_recovery_code_hash, two_factor_last_counter, google_id, github_id, registered_with_google,
		registered_with_github, trial_ends_at, created_at`

// UserRepository is the PostgreSQL CredentialStore. Empty provider ids are stored as NULL
// so the unique constraints only bind linked accounts.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (goIdentity.UserRecord, error) {
	var (
		u                                       goIdentity.UserRecord
		passwordHash, secret, recovery, google sql.NullString
		github                                  sql.NullInt64
		trial                                   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &passwordHash, &u.IsActive, &u.IsTwoFactorEnabled, &secret,
		&recovery, &u.TwoFactorLastCounter, &google, &github, &u.RegisteredWithGoogle,
		&u.RegisteredWithGitHub, &trial, &u.CreatedAt)
	if err != nil {
		return goIdentity.UserRecord{}, err
	}
	u.PasswordHash = passwordHash.String
	u.TwoFactorSecret = secret.String
	u.TwoFactorRecoveryCodeHash = recovery.String
	u.GoogleID = google.String
	u.GitHubID = github.Int64
	u.TrialEndsAt = trial.Time
	return u, nil
}

// mapWriteErr turns unique violations into the taxonomy errors.
func mapWriteErr(err error) error {
	switch uniqueConstraint(err) {
	case "":
		return fmt.Errorf("db error: %w", err)
	case "users_email_key":
		return goIdentity.ErrEmailAlreadyExists
	default:
		return goIdentity.ErrAlreadyLinkedToAnotherUser
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, in goIdentity.NewUser) (goIdentity.UserRecord, error) {
	query :=
		`INSERT INTO users (email, password_hash, is_active, google_id, github_id,
		 registered_with_google, registered_with_github, trial_ends_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, query,
		in.Email, nullString(in.PasswordHash), in.IsActive, nullString(in.GoogleID), nullInt64(in.GitHubID),
		in.RegisteredWithGoogle, in.RegisteredWithGitHub, nullTime(in.TrialEndsAt))

	u, err := scanUser(row)
	if err != nil {
		return goIdentity.UserRecord{}, mapWriteErr(err)
	}
	return u, nil
}

func (r *UserRepository) getBy(ctx context.Context, column string, arg any) (goIdentity.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
		}
		return goIdentity.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (goIdentity.UserRecord, error) {
	return r.getBy(ctx, "id", userID)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (goIdentity.UserRecord, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) GetUserByGoogleID(ctx context.Context, googleID string) (goIdentity.UserRecord, error) {
	if googleID == "" {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return r.getBy(ctx, "google_id", googleID)
}

func (r *UserRepository) GetUserByGitHubID(ctx context.Context, githubID int64) (goIdentity.UserRecord, error) {
	if githubID == 0 {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return r.getBy(ctx, "github_id", githubID)
}

// exec runs an UPDATE or DELETE on a single user and maps zero affected rows to ErrUserNotFound.
func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return goIdentity.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, nullString(hash))
}

func (r *UserRepository) UpdateEmail(ctx context.Context, userID, email string) error {
	return r.exec(ctx, `UPDATE users SET email = $2, is_active = TRUE WHERE id = $1`, userID, email)
}

func (r *UserRepository) MarkActive(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE users SET is_active = TRUE WHERE id = $1`, userID)
}

func (r *UserRepository) UpdateTwoFactor(ctx context.Context, userID string, state goIdentity.TwoFactorState) error {
	return r.exec(ctx,
		`UPDATE users SET is_two_factor_enabled = $2, two_factor_secret = $3, two_factor_recovery_code_hash = $4,
		 two_factor_last_counter = $5
		 WHERE id = $1`,
		userID, state.Enabled, nullString(state.Secret), nullString(state.RecoveryCodeHash), state.LastCounter)
}

func (r *UserRepository) SwapRecoveryCodeHash(ctx context.Context, userID, oldHash, newHash string) (bool, error) {
	if oldHash == "" {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_recovery_code_hash = $3
		 WHERE id = $1 AND two_factor_recovery_code_hash = $2`,
		userID, oldHash, newHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *UserRepository) AdvanceTOTPCounter(ctx context.Context, userID string, counter int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_last_counter = $2
		 WHERE id = $1 AND two_factor_last_counter < $2`,
		userID, counter)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *UserRepository) SetGoogleID(ctx context.Context, userID, googleID string) error {
	return r.exec(ctx, `UPDATE users SET google_id = $2 WHERE id = $1`, userID, nullString(googleID))
}

func (r *UserRepository) SetGitHubID(ctx context.Context, userID string, githubID int64) error {
	return r.exec(ctx, `UPDATE users SET github_id = $2 WHERE id = $1`, userID, nullInt64(githubID))
}

// DeleteUser removes the user; refresh and action tokens go with it through ON DELETE CASCADE.
func (r *UserRepository) DeleteUser(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
}

var _ goIdentity.CredentialStore = (*UserRepository)(nil)
