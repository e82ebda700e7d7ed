package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/vintrylabs/vintry-api/internal/auth"
	"github.com/vintrylabs/vintry-api/internal/oauth"
	"github.com/vintrylabs/vintry-api/internal/records"
	"github.com/vintrylabs/vintry-api/internal/users"
)

const (
	testSigningSecret = "router-test-secret"
	testCookieName    = "vintry_session"
	testBaseURL       = "https://vintry.example"
)

type stubOAuthProvider struct {
	identity oauth.Identity
	err      error
}

func (p *stubOAuthProvider) LoginURL(state string) string {
	return "https://accounts.example/authorize?state=" + state
}

func (p *stubOAuthProvider) Exchange(context.Context, string) (oauth.Identity, error) {
	return p.identity, p.err
}

type stubSearcher struct {
	urls []string
	err  error
}

func (s *stubSearcher) Search(context.Context, string) ([]string, error) {
	return s.urls, s.err
}

type testStack struct {
	handler  http.Handler
	issuer   *auth.SessionIssuer
	users    *users.Service
	records  *records.Service
	database *gorm.DB
}

func newTestStack(t *testing.T, oauthProvider OAuthProvider, searcher *stubSearcher) *testStack {
	t.Helper()

	dsn := fmt.Sprintf("file:vintry_router_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &records.Record{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to construct session issuer: %v", err)
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct user service: %v", err)
	}
	recordService, err := records.NewService(records.ServiceConfig{
		Database:   db,
		IDProvider: records.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct record service: %v", err)
	}

	deps := Dependencies{
		SessionIssuer:   issuer,
		OAuth:           oauthProvider,
		Users:           userService,
		Records:         recordService,
		PublicBaseURL:   testBaseURL,
		AuthSuccessPath: "/",
		AuthFailurePath: "/login?error=auth_failed",
	}
	if searcher != nil {
		deps.ImageSearcher = searcher
	}

	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testStack{
		handler:  handler,
		issuer:   issuer,
		users:    userService,
		records:  recordService,
		database: db,
	}
}

// seedUser creates a user directly and returns it with a valid session cookie.
func (s *testStack) seedUser(t *testing.T, email string) (users.User, *http.Cookie) {
	t.Helper()

	user, err := s.users.UpsertByEmail(context.Background(), oauth.Identity{
		Provider: "google",
		Subject:  "sub-" + email,
		Email:    email,
		Name:     "Test Owner",
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	token, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to issue session token: %v", err)
	}
	return user, &http.Cookie{Name: testCookieName, Value: token}
}
