package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
)

// refreshLedger records which refresh tokens are live. Rows hold HMAC-SHA256(pepper, token);
// a stolen table cannot be replayed without the pepper.
type refreshLedger struct {
	repo         RefreshTokenRepository
	pepper       []byte
	acceptLegacy bool
	now          func() time.Time
}

func newRefreshLedger(repo RefreshTokenRepository, pepper []byte, acceptLegacy bool, now func() time.Time) *refreshLedger {
	return &refreshLedger{
		repo:         repo,
		pepper:       cloneBytes(pepper),
		acceptLegacy: acceptLegacy,
		now:          now,
	}
}

func (l *refreshLedger) hash(raw string) string {
	return internal.HashRefreshToken(l.pepper, raw)
}

// Save persists the hash of raw for userID.
func (l *refreshLedger) Save(ctx context.Context, userID, raw string) error {
	err := l.repo.Create(ctx, RefreshTokenRecord{
		UserID:    userID,
		TokenHash: l.hash(raw),
		CreatedAt: l.now().UTC(),
	})
	return backendErr(err)
}

// Verify reports whether raw has a live record for userID.
func (l *refreshLedger) Verify(ctx context.Context, userID, raw string) (bool, error) {
	if raw == RefreshTokenNotIssued {
		return false, nil
	}
	ok, err := l.repo.Exists(ctx, userID, l.hash(raw))
	if err != nil {
		return false, backendErr(err)
	}
	if ok || !l.acceptLegacy {
		return ok, nil
	}

	ok, err = l.repo.Exists(ctx, userID, raw)
	return ok, backendErr(err)
}

// Revoke deletes raw's record and reports whether one existed.
func (l *refreshLedger) Revoke(ctx context.Context, userID, raw string) (bool, error) {
	if raw == RefreshTokenNotIssued {
		return false, nil
	}
	deleted, err := l.repo.Delete(ctx, userID, l.hash(raw))
	if err != nil {
		return false, backendErr(err)
	}
	if deleted || !l.acceptLegacy {
		return deleted, nil
	}

	deleted, err = l.repo.Delete(ctx, userID, raw)
	return deleted, backendErr(err)
}

// RevokeAll drops every record of userID.
func (l *refreshLedger) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := l.repo.DeleteAllForUser(ctx, userID)
	return n, backendErr(err)
}
