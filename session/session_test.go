package session

import (
	"errors"
	"testing"
	"time"

	"github.com/onnwee/chat-relay/config"
	"github.com/onnwee/chat-relay/crypto"
)

func testConfig() *config.Config {
	return &config.Config{
		ClientName:       "alice",
		ClientID:         42,
		PasswordHash:     crypto.DigestHex("a-b-c-d-hunter2-e"),
		ClientSalt:       "11111111-2222-3333-4444-555555555555",
		ServerSalt:       "a-b-c-d-e",
		JWTSecret:        "access-secret",
		JWTRefreshSecret: "refresh-secret",
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  7 * 24 * time.Hour,
	}
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	cfg := testConfig()
	return NewIssuer(NewStore(cfg), cfg)
}

func TestStoreLookupByName(t *testing.T) {
	store := NewStore(testConfig())

	acct, err := store.LookupByName("alice")
	if err != nil {
		t.Fatalf("LookupByName(alice): %v", err)
	}
	if acct.ID != 42 || acct.Name != "alice" {
		t.Errorf("unexpected account %+v", acct)
	}

	if _, err := store.LookupByName("mallory"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: got %v, want ErrUserNotFound", err)
	}
	if _, err := store.LookupByName(""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("empty name: got %v, want ErrUserNotFound", err)
	}
}

func TestLoginAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)

	pair, err := issuer.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("login returned empty tokens")
	}

	claims, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Name != "alice" || claims.ID != 42 {
		t.Errorf("claims = %+v, want alice/42", claims)
	}

	if _, err := issuer.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	issuer := newTestIssuer(t)

	if _, err := issuer.Login("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := issuer.Login("mallory", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginFailsOnMalformedServerSalt(t *testing.T) {
	cfg := testConfig()
	cfg.ServerSalt = "not-five-segments"
	issuer := NewIssuer(NewStore(cfg), cfg)

	if _, err := issuer.Login("alice", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("malformed salt: got %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := issuer.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
	if _, err := issuer.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
}

func TestExpiredTokensRejected(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Advance the clock past the access TTL but inside the refresh TTL.
	issuer.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	if _, err := issuer.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("stale access token: got %v, want ErrTokenExpired", err)
	}
	if _, err := issuer.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("refresh token should outlive the access token: %v", err)
	}

	// Past the refresh TTL everything is expired.
	issuer.WithClock(func() time.Time { return time.Now().Add(8 * 24 * time.Hour) })
	if _, err := issuer.VerifyRefresh(pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("stale refresh token: got %v, want ErrTokenExpired", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	fresh, err := issuer.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := issuer.VerifyAccess(fresh.AccessToken); err != nil {
		t.Errorf("rotated access token invalid: %v", err)
	}
	// No revocation list: the original refresh token is still valid.
	if _, err := issuer.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("pre-rotation refresh token should stay valid: %v", err)
	}

	if _, err := issuer.Refresh("garbage.token.here"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage refresh token: got %v, want ErrTokenInvalid", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	issuer := newTestIssuer(t)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := issuer.VerifyAccess(tok); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("VerifyAccess(%q): got %v, want ErrTokenInvalid", tok, err)
		}
	}
}
