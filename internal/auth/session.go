package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// RoleAdmin grants access to taxonomy, user and access-request management.
	RoleAdmin = "admin"
	// RoleUser is the default role of an approved account.
	RoleUser = "user"

	defaultSessionTTL    = 7 * 24 * time.Hour
	defaultSessionIssuer = "shelf"
)

var (
	ErrMissingSessionSigningKey = errors.New("session manager: signing key required")
	ErrMissingSessionCookieName = errors.New("session manager: cookie name required")
	ErrMissingSessionToken      = errors.New("session manager: token required")
	ErrInvalidSessionToken      = errors.New("session manager: invalid token")
	ErrExpiredSessionToken      = errors.New("session manager: token expired")
	ErrMissingSessionSubject    = errors.New("session manager: subject required")
)

// SessionUser is the identity embedded in every session token.
type SessionUser struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (u SessionUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SessionClaims is the single JWT payload shape shared by issuance and verification.
type SessionClaims struct {
	UserID          int64  `json:"id"`
	UserEmail       string `json:"email"`
	UserDisplayName string `json:"name"`
	UserRole        string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManagerConfig configures session issuance, verification and cookie delivery.
type SessionManagerConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	TokenTTL      time.Duration
	SecureCookies bool
	Clock         func() time.Time
}

// SessionManager issues and verifies HS256 session tokens and builds the session cookie.
type SessionManager struct {
	signingSecret []byte
	issuer        string
	cookieName    string
	ttl           time.Duration
	secure        bool
	clock         func() time.Time
}

// NewSessionManager validates the configuration and applies defaults.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionManager{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		cookieName:    cookieName,
		ttl:           ttl,
		secure:        cfg.SecureCookies,
		clock:         clock,
	}, nil
}

// CookieName returns the cookie name configured for session lookups.
func (m *SessionManager) CookieName() string {
	return m.cookieName
}

// TTL returns the fixed validity window of issued tokens.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the user valid for the configured TTL.
func (m *SessionManager) Issue(_ context.Context, user SessionUser) (string, time.Time, error) {
	if user.ID <= 0 {
		return "", time.Time{}, ErrMissingSessionSubject
	}

	tokenID, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, err
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.ttl)
	claims := SessionClaims{
		UserID:          user.ID,
		UserEmail:       user.Email,
		UserDisplayName: user.DisplayName,
		UserRole:        user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates signature, issuer and expiry and returns the embedded identity.
func (m *SessionManager) Verify(tokenString string) (SessionUser, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionUser{}, ErrMissingSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidSessionToken, t.Method.Alg())
			}
			return m.signingSecret, nil
		},
		jwt.WithTimeFunc(m.clock),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionUser{}, ErrExpiredSessionToken
		}
		return SessionUser{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return SessionUser{}, ErrInvalidSessionToken
	}
	if claims.UserID <= 0 || claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return SessionUser{}, ErrMissingSessionSubject
	}

	return SessionUser{
		ID:          claims.UserID,
		Email:       claims.UserEmail,
		DisplayName: claims.UserDisplayName,
		Role:        claims.UserRole,
	}, nil
}

// Lookup extracts the session cookie from the request and verifies it.
func (m *SessionManager) Lookup(r *http.Request) (SessionUser, error) {
	if r == nil {
		return SessionUser{}, ErrMissingSessionToken
	}
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie == nil || cookie.Value == "" {
		return SessionUser{}, ErrMissingSessionToken
	}
	return m.Verify(cookie.Value)
}

// NewCookie wraps a signed token in the session cookie.
func (m *SessionManager) NewCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie instructs the client to discard the session cookie.
func (m *SessionManager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
