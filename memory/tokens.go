package memory

import (
	"context"
	"sync"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type refreshKey struct {
	userID string
	hash   string
}

// RefreshTokens is an in-process RefreshTokenRepository.
type RefreshTokens struct {
	mu   sync.Mutex
	rows map[refreshKey]goIdentity.RefreshTokenRecord
}

// NewRefreshTokens returns an empty repository.
func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{rows: make(map[refreshKey]goIdentity.RefreshTokenRecord)}
}

// Create stores rec.
func (r *RefreshTokens) Create(_ context.Context, rec goIdentity.RefreshTokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[refreshKey{rec.UserID, rec.TokenHash}] = rec
	return nil
}

// Exists reports whether the record is stored. Expiry is enforced by the caller.
func (r *RefreshTokens) Exists(_ context.Context, userID, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[refreshKey{userID, tokenHash}]
	return ok, nil
}

// Delete removes one record and reports whether it existed.
func (r *RefreshTokens) Delete(_ context.Context, userID, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := refreshKey{userID, tokenHash}
	if _, ok := r.rows[k]; !ok {
		return false, nil
	}
	delete(r.rows, k)
	return true, nil
}

// DeleteAllForUser removes every record of userID and returns how many.
func (r *RefreshTokens) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.rows {
		if k.userID == userID {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

// Count returns the number of live records for userID.
func (r *RefreshTokens) Count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.rows {
		if k.userID == userID {
			n++
		}
	}
	return n
}

// ActionTokens is an in-process ActionTokenRepository.
type ActionTokens struct {
	mu   sync.Mutex
	rows map[string]goIdentity.ActionToken
}

// NewActionTokens returns an empty repository.
func NewActionTokens() *ActionTokens {
	return &ActionTokens{rows: make(map[string]goIdentity.ActionToken)}
}

// Create stores token under its id.
func (a *ActionTokens) Create(_ context.Context, token goIdentity.ActionToken) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows[token.ID] = token
	return nil
}

// Get returns ErrActionTokenInvalid for unknown ids.
func (a *ActionTokens) Get(_ context.Context, id string) (goIdentity.ActionToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	token, ok := a.rows[id]
	if !ok {
		return goIdentity.ActionToken{}, goIdentity.ErrActionTokenInvalid
	}
	return token, nil
}

// Delete removes id and reports whether it existed.
func (a *ActionTokens) Delete(_ context.Context, id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.rows[id]; !ok {
		return false, nil
	}
	delete(a.rows, id)
	return true, nil
}

// DeleteExpired removes tokens of action created before createdBefore.
func (a *ActionTokens) DeleteExpired(_ context.Context, action goIdentity.ActionType, createdBefore time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n int64
	for id, token := range a.rows {
		if token.Action == action && token.CreatedAt.Before(createdBefore) {
			delete(a.rows, id)
			n++
		}
	}
	return n, nil
}

var (
	_ goIdentity.RefreshTokenRepository = (*RefreshTokens)(nil)
	_ goIdentity.ActionTokenRepository  = (*ActionTokens)(nil)
)
