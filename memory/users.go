package memory

import (
	"context"
	"sync"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/google/uuid"
)

// Users is an in-process CredentialStore. It enforces the same uniqueness rules as the
// postgres schema: one account per email, per Google id and per GitHub id.
type Users struct {
	mu    sync.RWMutex
	byID  map[string]goIdentity.UserRecord
	now   func() time.Time
	idGen func() string
}

// NewUsers returns an empty store.
func NewUsers() *Users {
	return &Users{
		byID:  make(map[string]goIdentity.UserRecord),
		now:   time.Now,
		idGen: uuid.NewString,
	}
}

func (u *Users) conflict(skipID string, email, googleID string, githubID int64) error {
	for id, rec := range u.byID {
		if id == skipID {
			continue
		}
		if email != "" && rec.Email == email {
			return goIdentity.ErrEmailAlreadyExists
		}
		if googleID != "" && rec.GoogleID == googleID {
			return goIdentity.ErrAlreadyLinkedToAnotherUser
		}
		if githubID != 0 && rec.GitHubID == githubID {
			return goIdentity.ErrAlreadyLinkedToAnotherUser
		}
	}
	return nil
}

// CreateUser inserts in and fails with ErrEmailAlreadyExists on any unique conflict.
func (u *Users) CreateUser(_ context.Context, in goIdentity.NewUser) (goIdentity.UserRecord, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.conflict("", in.Email, in.GoogleID, in.GitHubID); err != nil {
		return goIdentity.UserRecord{}, err
	}

	rec := goIdentity.UserRecord{
		ID:                   u.idGen(),
		Email:                in.Email,
		PasswordHash:         in.PasswordHash,
		IsActive:             in.IsActive,
		GoogleID:             in.GoogleID,
		GitHubID:             in.GitHubID,
		RegisteredWithGoogle: in.RegisteredWithGoogle,
		RegisteredWithGitHub: in.RegisteredWithGitHub,
		TrialEndsAt:          in.TrialEndsAt,
		CreatedAt:            u.now().UTC(),
	}
	u.byID[rec.ID] = rec
	return rec, nil
}

// GetUserByID returns ErrUserNotFound for unknown ids.
func (u *Users) GetUserByID(_ context.Context, userID string) (goIdentity.UserRecord, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	rec, ok := u.byID[userID]
	if !ok {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return rec, nil
}

func (u *Users) find(match func(goIdentity.UserRecord) bool) (goIdentity.UserRecord, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	for _, rec := range u.byID {
		if match(rec) {
			return rec, nil
		}
	}
	return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
}

// GetUserByEmail matches the stored email exactly.
func (u *Users) GetUserByEmail(_ context.Context, email string) (goIdentity.UserRecord, error) {
	if email == "" {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return u.find(func(r goIdentity.UserRecord) bool { return r.Email == email })
}

// GetUserByGoogleID looks up a linked Google subject.
func (u *Users) GetUserByGoogleID(_ context.Context, googleID string) (goIdentity.UserRecord, error) {
	if googleID == "" {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return u.find(func(r goIdentity.UserRecord) bool { return r.GoogleID == googleID })
}

// GetUserByGitHubID looks up a linked GitHub account id.
func (u *Users) GetUserByGitHubID(_ context.Context, githubID int64) (goIdentity.UserRecord, error) {
	if githubID == 0 {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return u.find(func(r goIdentity.UserRecord) bool { return r.GitHubID == githubID })
}

// update applies fn to the record of userID under the write lock.
func (u *Users) update(userID string, fn func(*goIdentity.UserRecord) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, ok := u.byID[userID]
	if !ok {
		return goIdentity.ErrUserNotFound
	}
	if err := fn(&rec); err != nil {
		return err
	}
	u.byID[userID] = rec
	return nil
}

// UpdatePasswordHash replaces the stored hash.
func (u *Users) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return u.update(userID, func(r *goIdentity.UserRecord) error {
		r.PasswordHash = hash
		return nil
	})
}

// UpdateEmail changes the email and marks it verified unless another account holds it.
func (u *Users) UpdateEmail(_ context.Context, userID, email string) error {
	return u.update(userID, func(r *goIdentity.UserRecord) error {
		if err := u.conflict(userID, email, "", 0); err != nil {
			return err
		}
		r.Email = email
		r.IsActive = true
		return nil
	})
}

// MarkActive records a verified email.
func (u *Users) MarkActive(_ context.Context, userID string) error {
	return u.update(userID, func(r *goIdentity.UserRecord) error {
		r.IsActive = true
		return nil
	})
}

// UpdateTwoFactor replaces the whole second-factor state.
func (u *Users) UpdateTwoFactor(_ context.Context, userID string, state goIdentity.TwoFactorState) error {
	return u.update(userID, func(r *goIdentity.UserRecord) error {
		r.IsTwoFactorEnabled = state.Enabled
		r.TwoFactorSecret = state.Secret
		r.TwoFactorRecoveryCodeHash = state.RecoveryCodeHash
		r.TwoFactorLastCounter = state.LastCounter
		return nil
	})
}

// SwapRecoveryCodeHash replaces oldHash with newHash only if oldHash is current.
func (u *Users) SwapRecoveryCodeHash(_ context.Context, userID, oldHash, newHash string) (bool, error) {
	swapped := false
	err := u.update(userID, func(r *goIdentity.UserRecord) error {
		if oldHash == "" || r.TwoFactorRecoveryCodeHash != oldHash {
			return nil
		}
		r.TwoFactorRecoveryCodeHash = newHash
		swapped = true
		return nil
	})
	return swapped, err
}

// AdvanceTOTPCounter moves the replay guard forward and refuses steps at or below it.
func (u *Users) AdvanceTOTPCounter(_ context.Context, userID string, counter int64) (bool, error) {
	advanced := false
	err := u.update(userID, func(r *goIdentity.UserRecord) error {
		if counter <= r.TwoFactorLastCounter {
			return nil
		}
		r.TwoFactorLastCounter = counter
		advanced = true
		return nil
	})
	return advanced, err
}

// SetGoogleID links or, with an empty id, unlinks Google.
func (u *Users) SetGoogleID(_ context.Context, userID, googleID string) error {
	return u.update(userID, func(r *goIdentity.UserRecord) error {
		if err := u.conflict(userID, "", googleID, 0); err != nil {
			return err
		}
		r.GoogleID = googleID
		return nil
	})
}

// SetGitHubID links or, with zero, unlinks GitHub.
func (u *Users) SetGitHubID(_ context.Context, userID string, githubID int64) error {
	return u.update(userID, func(r *goIdentity.UserRecord) error {
		if err := u.conflict(userID, "", "", githubID); err != nil {
			return err
		}
		r.GitHubID = githubID
		return nil
	})
}

// DeleteUser removes the account.
func (u *Users) DeleteUser(_ context.Context, userID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.byID[userID]; !ok {
		return goIdentity.ErrUserNotFound
	}
	delete(u.byID, userID)
	return nil
}

var _ goIdentity.CredentialStore = (*Users)(nil)
