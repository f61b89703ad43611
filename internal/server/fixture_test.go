package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/access"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/collections"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/database"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/linkpreview"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	testAllowedDomain = "example.com"
	testCookieName    = "cv_session"
)

var testDatabaseCounter atomic.Int64

type stubPreviewFetcher struct {
	image *string
	calls atomic.Int64
}

func (s *stubPreviewFetcher) Fetch(_ context.Context, _ string) linkpreview.Preview {
	s.calls.Add(1)
	title := "Stub Title"
	return linkpreview.Preview{Image: s.image, Title: &title}
}

func (s *stubPreviewFetcher) FetchImage(ctx context.Context, rawURL string) *string {
	return s.Fetch(ctx, rawURL).Image
}

type testServer struct {
	handler  http.Handler
	db       *gorm.DB
	sessions *auth.SessionManager
	users    *users.Service
	catalog  *catalog.Service
	previews *stubPreviewFetcher
	metrics  *metrics.Recorder
}

func newTestServer(t *testing.T, configure ...func(*Dependencies)) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", testDatabaseCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	sessions, err := auth.NewSessionManager(auth.SessionManagerConfig{
		SigningSecret: []byte("server-test-signing-secret"),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to build session manager: %v", err)
	}
	usersService, err := users.NewService(users.ServiceConfig{Database: db, AllowedDomain: testAllowedDomain})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	accessService, err := access.NewService(access.ServiceConfig{Database: db, AllowedDomain: testAllowedDomain})
	if err != nil {
		t.Fatalf("failed to build access service: %v", err)
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build catalog service: %v", err)
	}
	collectionsService, err := collections.NewService(collections.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build collections service: %v", err)
	}

	previews := &stubPreviewFetcher{}
	recorder := metrics.NewRecorder()
	deps := Dependencies{
		Sessions:         sessions,
		Access:           accessService,
		Users:            usersService,
		Catalog:          catalogService,
		Collections:      collectionsService,
		Previews:         previews,
		Backfiller:       linkpreview.NewBackfiller(linkpreview.BackfillConfig{Fetcher: previews}),
		Metrics:          recorder,
		RecheckAdminRole: true,
	}
	for _, apply := range configure {
		apply(&deps)
	}

	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return testServer{
		handler:  handler,
		db:       db,
		sessions: sessions,
		users:    usersService,
		catalog:  catalogService,
		previews: previews,
		metrics:  recorder,
	}
}

func (s testServer) createUser(t *testing.T, email, role string) users.User {
	t.Helper()
	account, err := s.users.Create(context.Background(), users.CreateInput{Email: email, Role: role})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return account
}

func (s testServer) sessionCookie(t *testing.T, account users.User) *http.Cookie {
	t.Helper()
	token, _, err := s.sessions.Issue(context.Background(), account.SessionUser())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return s.sessions.NewCookie(token)
}

// do performs a request with an optional JSON body and session cookie.
func (s testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	request := httptest.NewRequest(method, path, &payload)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSON[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return value
}

func responseCookie(recorder *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
