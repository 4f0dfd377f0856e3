// Package session holds the configured account and issues the two classes of
// signed session tokens: short-lived access tokens and long-lived refresh
// tokens, each under its own signing key so one class can never stand in for
// the other.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/onnwee/chat-relay/config"
	"github.com/onnwee/chat-relay/crypto"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
)

// Account is the single configured account. It is built once from config at
// process start and never mutated.
type Account struct {
	Name         string
	ID           uint64
	PasswordHash string
	ClientSalt   string
	ServerSalt   string
}

// Store exposes account lookup by name. The reference deployment is
// single-tenant, so the store holds exactly one account.
type Store struct {
	account Account
}

func NewStore(cfg *config.Config) *Store {
	return &Store{account: Account{
		Name:         cfg.ClientName,
		ID:           cfg.ClientID,
		PasswordHash: cfg.PasswordHash,
		ClientSalt:   cfg.ClientSalt,
		ServerSalt:   cfg.ServerSalt,
	}}
}

// LookupByName returns the account or ErrUserNotFound.
func (s *Store) LookupByName(name string) (Account, error) {
	if name == "" || name != s.account.Name {
		return Account{}, ErrUserNotFound
	}
	return s.account, nil
}

// Claims is the token payload. Access and refresh tokens share this shape and
// differ only in which key signed them.
type Claims struct {
	Name string `json:"name"`
	ID   uint64 `json:"id"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Issuer mints and validates session tokens. Keys and TTLs are injected at
// construction; there is no process-global key state. The clock is injectable
// for tests.
type Issuer struct {
	store      *Store
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(store *Store, cfg *config.Config) *Issuer {
	return &Issuer{
		store:      store,
		accessKey:  []byte(cfg.JWTSecret),
		refreshKey: []byte(cfg.JWTRefreshSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
}

// WithClock overrides the issuer's time source. Test hook.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Login verifies the submitted password against the stored salted digest and
// mints a fresh token pair. Both unknown users and wrong passwords surface as
// ErrInvalidCredentials to the HTTP layer.
func (i *Issuer) Login(name, password string) (TokenPair, error) {
	acct, err := i.store.LookupByName(name)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !crypto.CheckPassword(acct.ServerSalt, acct.PasswordHash, password) {
		return TokenPair{}, ErrInvalidCredentials
	}
	return i.mintPair(acct)
}

// Refresh validates a refresh token, re-resolves the account by name, and
// mints a fresh pair. There is no revocation list: older refresh tokens stay
// valid until their own expiry.
func (i *Issuer) Refresh(refreshToken string) (TokenPair, error) {
	claims, err := i.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	acct, err := i.store.LookupByName(claims.Name)
	if err != nil {
		return TokenPair{}, ErrTokenInvalid
	}
	return i.mintPair(acct)
}

// VerifyAccess validates an access token's signature and expiry.
func (i *Issuer) VerifyAccess(token string) (*Claims, error) {
	return i.verify(token, i.accessKey)
}

// VerifyRefresh validates a refresh token's signature and expiry.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	return i.verify(token, i.refreshKey)
}

func (i *Issuer) mintPair(acct Account) (TokenPair, error) {
	access, err := i.mint(acct, i.accessKey, i.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := i.mint(acct, i.refreshKey, i.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("mint refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) mint(acct Account, key []byte, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Name: acct.Name,
		ID:   acct.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func (i *Issuer) verify(token string, key []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
