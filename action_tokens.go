package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActionTokenStore issues and validates single-use action tokens on top of an
// [ActionTokenRepository]. Expiry is lazy: a token past its TTL is deleted when someone
// asks for it. PurgeExpired is the optional best-effort sweep.
type ActionTokenStore struct {
	repo ActionTokenRepository
	cfg  ActionTokenConfig
	now  func() time.Time
}

func newActionTokenStore(repo ActionTokenRepository, cfg ActionTokenConfig, now func() time.Time) *ActionTokenStore {
	return &ActionTokenStore{repo: repo, cfg: cfg, now: now}
}

// Create persists a new token with an unguessable id. Several live tokens per user and
// action may coexist.
func (s *ActionTokenStore) Create(ctx context.Context, userID string, action ActionType, newValue string) (ActionToken, error) {
	if !action.Valid() {
		return ActionToken{}, errors.New("unknown action type")
	}
	token := ActionToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		NewValue:  newValue,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return ActionToken{}, backendErr(err)
	}
	return token, nil
}

// Get is a plain lookup without any TTL check.
func (s *ActionTokenStore) Get(ctx context.Context, id string) (ActionToken, error) {
	if id == "" {
		return ActionToken{}, ErrActionTokenInvalid
	}
	token, err := s.repo.Get(ctx, id)
	if err != nil {
		return ActionToken{}, backendErr(err)
	}
	return token, nil
}

// GetValidatedFor returns the token when it exists, carries expected and is younger than
// ttl. A token for another action yields ErrActionTokenMismatch and is left alone. An
// expired token is deleted and reported as ErrActionTokenInvalid. The returned token is
// not consumed.
func (s *ActionTokenStore) GetValidatedFor(ctx context.Context, id string, expected ActionType, ttl time.Duration) (ActionToken, error) {
	token, err := s.Get(ctx, id)
	if err != nil {
		return ActionToken{}, err
	}
	if token.Action != expected {
		return ActionToken{}, ErrActionTokenMismatch
	}
	if ttl > 0 && s.now().Sub(token.CreatedAt) > ttl {
		if _, err := s.repo.Delete(ctx, id); err != nil {
			return ActionToken{}, backendErr(err)
		}
		return ActionToken{}, ErrActionTokenInvalid
	}
	return token, nil
}

// Delete removes id. Unknown ids are not an error.
func (s *ActionTokenStore) Delete(ctx context.Context, id string) error {
	_, err := s.repo.Delete(ctx, id)
	return backendErr(err)
}

// Claim deletes id and reports whether this call removed it. Of two concurrent claims on
// the same token exactly one wins.
func (s *ActionTokenStore) Claim(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	return deleted, backendErr(err)
}

// consume validates and claims in one step. Losing the claim race looks like an unknown token.
func (s *ActionTokenStore) consume(ctx context.Context, id string, expected ActionType) (ActionToken, error) {
	token, err := s.GetValidatedFor(ctx, id, expected, s.cfg.TTLFor(expected))
	if err != nil {
		return ActionToken{}, err
	}
	claimed, err := s.Claim(ctx, id)
	if err != nil {
		return ActionToken{}, err
	}
	if !claimed {
		return ActionToken{}, ErrActionTokenInvalid
	}
	return token, nil
}

var purgeableActions = []ActionType{
	ActionEmailVerification,
	ActionPasswordReset,
	ActionEmailChange,
	ActionProjectShare,
}

// PurgeExpired deletes every token older than its action's TTL and returns the count.
func (s *ActionTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, action := range purgeableActions {
		ttl := s.cfg.TTLFor(action)
		if ttl <= 0 {
			continue
		}
		n, err := s.repo.DeleteExpired(ctx, action, now.Add(-ttl))
		total += n
		if err != nil {
			return total, backendErr(err)
		}
	}
	return total, nil
}
