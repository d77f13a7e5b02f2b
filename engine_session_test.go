package goIdentity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

func TestRegisterIssuesFullSessionAndVerificationMail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.register(t, "  Alice@Example.com ")
	if res.Tokens.Partial() {
		t.Fatal("expected a fresh registration to receive a full pair")
	}
	if res.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", res.User.Email)
	}
	if res.User.IsActive {
		t.Fatal("expected password registrations to start unverified")
	}
	if want := h.clock.Now().Add(14 * 24 * time.Hour); !res.User.TrialEndsAt.Equal(want) {
		t.Fatalf("expected trial end %v, got %v", want, res.User.TrialEndsAt)
	}

	mail := h.mailer.last(t, goIdentity.MailTemplateEmailVerification)
	if mail.To != "alice@example.com" || mail.ActionTokenID == "" {
		t.Fatalf("unexpected verification mail %+v", mail)
	}

	claims, err := h.engine.VerifyAccessToken(ctx, res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.UserID != res.User.ID || !claims.SecondFactorAuthenticated {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if h.refresh.Count(res.User.ID) != 1 {
		t.Fatalf("expected one ledger row, got %d", h.refresh.Count(res.User.ID))
	}
}

func TestRegisterRejectsDuplicateAndEmptyEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "bob@example.com")

	if _, err := h.engine.Register(ctx, "BOB@example.com", testPassword); !errors.Is(err, goIdentity.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
	if _, err := h.engine.Register(ctx, "   ", testPassword); !errors.Is(err, goIdentity.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := h.engine.Register(ctx, "carol@example.com", ""); !errors.Is(err, goIdentity.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestLoginMismatchesAreIndistinguishable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "dave@example.com")

	_, wrongPassword := h.engine.Login(ctx, "dave@example.com", "nope")
	_, unknownUser := h.engine.Login(ctx, "nobody@example.com", testPassword)
	if !errors.Is(wrongPassword, goIdentity.ErrInvalidCredentials) || !errors.Is(unknownUser, goIdentity.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", wrongPassword, unknownUser)
	}

	res, err := h.engine.Login(ctx, "DAVE@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Tokens.Partial() {
		t.Fatal("expected full pair without 2FA")
	}
	if got := h.engine.MetricsSnapshot().Counters[goIdentity.MetricLoginFailure]; got != 2 {
		t.Fatalf("expected 2 login failures counted, got %d", got)
	}
}

func TestRefreshAccessTokenDoesNotRotate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.register(t, "erin@example.com")

	h.clock.Advance(time.Minute)
	access, err := h.engine.RefreshAccessToken(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if access == res.Tokens.AccessToken {
		t.Fatal("expected a new access token")
	}
	if _, err := h.engine.RefreshAccessToken(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("expected refresh token to stay valid, got %v", err)
	}
}

func TestAccessAndRefreshTokensAreNotInterchangeable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.register(t, "frank@example.com")

	if _, err := h.engine.VerifyAccessToken(ctx, res.Tokens.RefreshToken); !errors.Is(err, goIdentity.ErrTokenInvalid) {
		t.Fatalf("expected refresh token rejected as access, got %v", err)
	}
	if _, err := h.engine.RefreshAccessToken(ctx, res.Tokens.AccessToken); !errors.Is(err, goIdentity.ErrRefreshTokenInvalid) {
		t.Fatalf("expected access token rejected as refresh, got %v", err)
	}
}

func TestAccessTokenExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.register(t, "gina@example.com")

	h.clock.Advance(16 * time.Minute)
	if _, err := h.engine.VerifyAccessToken(ctx, res.Tokens.AccessToken); !errors.Is(err, goIdentity.ErrTokenInvalid) {
		t.Fatalf("expected expired access token rejected, got %v", err)
	}
}

func TestLogoutRevokesOnlyThatToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.register(t, "hank@example.com")
	second, err := h.engine.Login(ctx, "hank@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := h.engine.Logout(ctx, first.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := h.engine.RefreshAccessToken(ctx, first.Tokens.RefreshToken); !errors.Is(err, goIdentity.ErrRefreshTokenInvalid) {
		t.Fatalf("expected revoked token rejected, got %v", err)
	}
	if err := h.engine.Logout(ctx, first.Tokens.RefreshToken); !errors.Is(err, goIdentity.ErrRefreshTokenInvalid) {
		t.Fatalf("expected second logout rejected, got %v", err)
	}
	if _, err := h.engine.RefreshAccessToken(ctx, second.Tokens.RefreshToken); err != nil {
		t.Fatalf("expected other session to survive, got %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.register(t, "iris@example.com")
	second, err := h.engine.Login(ctx, "iris@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := h.engine.LogoutAll(ctx, second.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	for _, tok := range []string{first.Tokens.RefreshToken, second.Tokens.RefreshToken} {
		if _, err := h.engine.RefreshAccessToken(ctx, tok); !errors.Is(err, goIdentity.ErrRefreshTokenInvalid) {
			t.Fatalf("expected all sessions revoked, got %v", err)
		}
	}
	if h.refresh.Count(first.User.ID) != 0 {
		t.Fatal("expected empty ledger after logout all")
	}
}

func TestSentinelRefreshTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.RefreshAccessToken(ctx, goIdentity.RefreshTokenNotIssued); !errors.Is(err, goIdentity.ErrRefreshTokenInvalid) {
		t.Fatalf("expected sentinel refresh rejected, got %v", err)
	}
	if err := h.engine.Logout(ctx, goIdentity.RefreshTokenNotIssued); !errors.Is(err, goIdentity.ErrRefreshTokenInvalid) {
		t.Fatalf("expected sentinel logout rejected, got %v", err)
	}
}

func TestLedgerStoresOnlyHashes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.register(t, "jack@example.com")

	raw, err := h.refresh.Exists(ctx, res.User.ID, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if raw {
		t.Fatal("expected the raw refresh token to never be stored")
	}
}

func TestChangePasswordEndsSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.register(t, "kim@example.com")

	if err := h.engine.ChangePassword(ctx, res.User.ID, "wrong", "new-password-456"); !errors.Is(err, goIdentity.ErrInvalidCredentials) {
		t.Fatalf("expected wrong old password rejected, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, res.User.ID, testPassword, "new-password-456"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := h.engine.RefreshAccessToken(ctx, res.Tokens.RefreshToken); !errors.Is(err, goIdentity.ErrRefreshTokenInvalid) {
		t.Fatalf("expected sessions revoked, got %v", err)
	}
	if _, err := h.engine.Login(ctx, "kim@example.com", "new-password-456"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.register(t, "lena@example.com")

	if err := h.engine.DeleteAccount(ctx, res.User.ID, "wrong"); !errors.Is(err, goIdentity.ErrInvalidCredentials) {
		t.Fatalf("expected wrong password rejected, got %v", err)
	}
	if err := h.engine.DeleteAccount(ctx, res.User.ID, testPassword); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if _, err := h.engine.CurrentUser(ctx, res.User.ID); !errors.Is(err, goIdentity.ErrUserNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}
	if _, err := h.engine.RefreshAccessToken(ctx, res.Tokens.RefreshToken); !errors.Is(err, goIdentity.ErrRefreshTokenInvalid) {
		t.Fatalf("expected sessions revoked, got %v", err)
	}
}

func TestAuditEventsCarryContextAndNoSecrets(t *testing.T) {
	sink := goIdentity.NewChannelSink(32)
	h := newHarnessWithSink(t, sink)

	ctx := goIdentity.WithUserAgent(goIdentity.WithClientIP(context.Background(), "198.51.100.33"), "test-agent")
	res, err := h.engine.Register(ctx, "maya@example.com", testPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := h.engine.Login(ctx, "maya@example.com", "bad-password"); err == nil {
		t.Fatal("expected login failure")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.engine.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	needles := []string{testPassword, "bad-password", res.Tokens.RefreshToken, res.Tokens.AccessToken}
	var seen []goIdentity.AuditEvent
drain:
	for {
		select {
		case ev := <-sink.Events():
			seen = append(seen, ev)
		default:
			break drain
		}
	}
	if len(seen) < 2 {
		t.Fatalf("expected register and login events, got %d", len(seen))
	}
	for _, ev := range seen {
		if ev.IP != "198.51.100.33" {
			t.Fatalf("expected client ip on %s, got %q", ev.EventType, ev.IP)
		}
		if ev.Metadata["user_agent"] != "test-agent" {
			t.Fatalf("expected user agent on %s", ev.EventType)
		}
		for _, n := range needles {
			if ev.Error == n {
				t.Fatalf("secret leaked in %s error", ev.EventType)
			}
			for _, v := range ev.Metadata {
				if v == n {
					t.Fatalf("secret leaked in %s metadata", ev.EventType)
				}
			}
		}
	}
	if seen[len(seen)-1].Error != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials code, got %q", seen[len(seen)-1].Error)
	}
}
