package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "cv_session"
)

var testSessionUser = SessionUser{
	ID:          42,
	Email:       "ada@example.com",
	DisplayName: "Ada",
	Role:        RoleAdmin,
}

func newTestSessionManager(t *testing.T, clock func() time.Time) *SessionManager {
	t.Helper()
	manager, err := NewSessionManager(SessionManagerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct session manager: %v", err)
	}
	return manager
}

func TestSessionManagerIssueAndVerifyRoundTrip(t *testing.T) {
	clockNow := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	manager := newTestSessionManager(t, func() time.Time { return clockNow })

	token, expiresAt, err := manager.Issue(context.Background(), testSessionUser)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	if !expiresAt.Equal(clockNow.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected seven day expiry, got %s", expiresAt)
	}

	user, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if user != testSessionUser {
		t.Fatalf("unexpected identity %#v", user)
	}
}

func TestSessionManagerVerifyRejectsExpiredToken(t *testing.T) {
	clockNow := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestSessionManager(t, func() time.Time { return clockNow })
	token, _, err := issuer.Issue(context.Background(), testSessionUser)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}

	later := newTestSessionManager(t, func() time.Time { return clockNow.Add(8 * 24 * time.Hour) })
	if _, err := later.Verify(token); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestSessionManagerVerifyRejectsForeignTokens(t *testing.T) {
	manager := newTestSessionManager(t, nil)
	now := time.Now()

	testCases := []struct {
		name   string
		secret string
		method jwt.SigningMethod
		claims SessionClaims
	}{
		{
			name:   "wrong-secret",
			secret: "other-secret",
			method: jwt.SigningMethodHS256,
			claims: SessionClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
				Issuer: defaultSessionIssuer, Subject: "1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}},
		},
		{
			name:   "wrong-algorithm",
			secret: testSessionSigningSecret,
			method: jwt.SigningMethodHS512,
			claims: SessionClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
				Issuer: defaultSessionIssuer, Subject: "1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}},
		},
		{
			name:   "wrong-issuer",
			secret: testSessionSigningSecret,
			method: jwt.SigningMethodHS256,
			claims: SessionClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "someone-else", Subject: "1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}},
		},
		{
			name:   "missing-expiry",
			secret: testSessionSigningSecret,
			method: jwt.SigningMethodHS256,
			claims: SessionClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
				Issuer: defaultSessionIssuer, Subject: "1",
			}},
		},
		{
			name:   "subject-mismatch",
			secret: testSessionSigningSecret,
			method: jwt.SigningMethodHS256,
			claims: SessionClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
				Issuer: defaultSessionIssuer, Subject: "2", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(testCase.method, testCase.claims).SignedString([]byte(testCase.secret))
			if err != nil {
				t.Fatalf("failed to sign token: %v", err)
			}
			if _, err := manager.Verify(signed); err == nil {
				t.Fatalf("expected verification failure")
			}
		})
	}

	if _, err := manager.Verify("not.a.token"); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token error for malformed input, got %v", err)
	}
	if _, err := manager.Verify("   "); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestSessionManagerLookupUsesCookie(t *testing.T) {
	manager := newTestSessionManager(t, nil)
	token, _, err := manager.Issue(context.Background(), testSessionUser)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}

	request := httptest.NewRequest(http.MethodGet, "/api/references", http.NoBody)
	if _, err := manager.Lookup(request); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token without cookie, got %v", err)
	}

	request.AddCookie(manager.NewCookie(token))
	user, err := manager.Lookup(request)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if user.ID != testSessionUser.ID || !user.IsAdmin() {
		t.Fatalf("unexpected identity %#v", user)
	}
}

func TestSessionManagerCookieAttributes(t *testing.T) {
	manager, err := NewSessionManager(SessionManagerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		SecureCookies: true,
	})
	if err != nil {
		t.Fatalf("failed to construct session manager: %v", err)
	}

	cookie := manager.NewCookie("token")
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Fatalf("unexpected cookie attributes %#v", cookie)
	}
	if cookie.MaxAge != 7*24*60*60 {
		t.Fatalf("unexpected max age %d", cookie.MaxAge)
	}

	cleared := manager.ClearCookie()
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("expected clearing cookie, got %#v", cleared)
	}
}

func TestNewSessionManagerValidatesConfig(t *testing.T) {
	if _, err := NewSessionManager(SessionManagerConfig{CookieName: testSessionCookieName}); !errors.Is(err, ErrMissingSessionSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
	if _, err := NewSessionManager(SessionManagerConfig{SigningSecret: []byte("x"), CookieName: " "}); !errors.Is(err, ErrMissingSessionCookieName) {
		t.Fatalf("expected missing cookie name error, got %v", err)
	}
}

func TestSessionManagerIssueRequiresUserID(t *testing.T) {
	manager := newTestSessionManager(t, nil)
	if _, _, err := manager.Issue(context.Background(), SessionUser{Email: "ada@example.com"}); !errors.Is(err, ErrMissingSessionSubject) {
		t.Fatalf("expected missing subject error, got %v", err)
	}
}
