package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/santa/internal/auth"
	"github.com/MarcoPoloResearchLab/santa/internal/santa"
	"github.com/MarcoPoloResearchLab/santa/internal/users"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testModeratorToken = "moderator-token"

type stubSessionValidator struct {
	sessions map[string]auth.SessionClaims
	err      error
}

func (s stubSessionValidator) ValidateRequest(r *http.Request) (auth.SessionClaims, error) {
	if s.err != nil {
		return auth.SessionClaims{}, s.err
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}
	claims, ok := s.sessions[token]
	if !ok {
		return auth.SessionClaims{}, auth.ErrInvalidSessionToken
	}
	return claims, nil
}

func openRouterTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&santa.GuildEvent{}, &santa.Participant{}, &santa.GuildChange{}, &users.Profile{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestSantaService(t *testing.T, db *gorm.DB, notifier santa.Notifier) *santa.Service {
	t.Helper()
	store, err := santa.NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	service, err := santa.NewService(santa.ServiceConfig{
		Store:      store,
		Notifier:   notifier,
		IDProvider: santa.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build santa service: %v", err)
	}
	return service
}

// newStubbedRouter serves the API with the moderator token managing guild-1
// and every other token mapping to a plain member named after it.
func newStubbedRouter(t *testing.T, members ...string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessions := map[string]auth.SessionClaims{
		testModeratorToken: {UserID: "moderator", ManagedGuilds: []string{"guild-1"}},
	}
	for _, member := range members {
		sessions[member] = auth.SessionClaims{UserID: member}
	}
	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: stubSessionValidator{sessions: sessions},
		SantaService:     newTestSantaService(t, openRouterTestDatabase(t), nil),
		Logger:           zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler
}

func performRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body == nil {
		payload = bytes.NewBuffer(nil)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		payload = bytes.NewBuffer(encoded)
	}
	request := httptest.NewRequest(method, path, payload)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return body
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
}

func mustIssueToken(t *testing.T, issuer *auth.TokenIssuer, identity auth.SessionIdentity) string {
	t.Helper()
	token, _, err := issuer.Issue(identity)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}
