package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/santa/internal/auth"
	"github.com/MarcoPoloResearchLab/santa/internal/santa"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/guilds/guild-1", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: auth.ErrExpiredSessionToken},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/guilds/guild-1", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: errors.New("signature mismatch")},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestCORSMiddlewareAllowsGuildMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware())
	router.PUT("/guilds/guild-1/wish", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/guilds/guild-1/wish", http.NoBody)
	request.Header.Set("Origin", "https://app.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPut)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	allowMethods := recorder.Header().Get("Access-Control-Allow-Methods")
	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		if !strings.Contains(allowMethods, method) {
			t.Fatalf("expected Access-Control-Allow-Methods to include %s, got %q", method, allowMethods)
		}
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin, got %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestClassifyErrorMapsDomainKinds(t *testing.T) {
	testCases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: %w", santa.ErrInvalidState, santa.ErrGuildNotFound), http.StatusNotFound, "guild_not_found"},
		{fmt.Errorf("%w: %w", santa.ErrInvalidState, santa.ErrGuildAlreadyExists), http.StatusConflict, "guild_already_exists"},
		{santa.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{santa.ErrAlreadyParticipating, http.StatusConflict, "already_participating"},
		{santa.ErrNotParticipating, http.StatusNotFound, "not_participating"},
		{santa.ErrInsufficientParticipants, http.StatusUnprocessableEntity, "insufficient_participants"},
		{santa.ErrNotAssignedAsSender, http.StatusNotFound, "not_assigned_as_sender"},
		{santa.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
		{santa.ErrAdminRequired, http.StatusForbidden, "admin_required"},
		{errors.New("disk on fire"), http.StatusInternalServerError, errorKindInternal},
	}
	for _, testCase := range testCases {
		status, kind := classifyError(testCase.err)
		if status != testCase.status || kind != testCase.kind {
			t.Fatalf("%v: expected %d/%s, got %d/%s", testCase.err, testCase.status, testCase.kind, status, kind)
		}
	}
}

func TestRouterRequiresAuthentication(t *testing.T) {
	handler := newStubbedRouter(t)
	recorder := performRequest(t, handler, http.MethodGet, "/guilds/guild-1", "", nil)
	expectStatus(t, recorder, http.StatusUnauthorized)

	recorder = performRequest(t, handler, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, recorder, http.StatusOK)
}

func TestRouterModeratorRoutesRequireCapability(t *testing.T) {
	handler := newStubbedRouter(t, "alice")

	recorder := performRequest(t, handler, http.MethodPost, "/guilds/guild-1/event", "alice", nil)
	expectStatus(t, recorder, http.StatusForbidden)
	if body := decodeBody(t, recorder); body["error"] != "admin_required" {
		t.Fatalf("expected admin_required, got %v", body)
	}

	recorder = performRequest(t, handler, http.MethodPost, "/guilds/guild-2/event", testModeratorToken, nil)
	expectStatus(t, recorder, http.StatusForbidden)

	recorder = performRequest(t, handler, http.MethodPost, "/guilds/guild-1/event", testModeratorToken, nil)
	expectStatus(t, recorder, http.StatusCreated)
	if body := decodeBody(t, recorder); body["state"] != string(santa.StateStarted) {
		t.Fatalf("expected started state, got %v", body)
	}
}

func TestRouterMapsServiceErrors(t *testing.T) {
	handler := newStubbedRouter(t, "alice")

	recorder := performRequest(t, handler, http.MethodPost, "/guilds/guild-1/participants/me", "alice", nil)
	expectStatus(t, recorder, http.StatusNotFound)
	if body := decodeBody(t, recorder); body["error"] != "guild_not_found" || body["code"] != "santa.join.invalid_state" {
		t.Fatalf("unexpected error body %v", body)
	}

	expectStatus(t, performRequest(t, handler, http.MethodPost, "/guilds/guild-1/event", testModeratorToken, nil), http.StatusCreated)
	recorder = performRequest(t, handler, http.MethodPost, "/guilds/guild-1/event", testModeratorToken, nil)
	expectStatus(t, recorder, http.StatusConflict)
	if body := decodeBody(t, recorder); body["error"] != "guild_already_exists" {
		t.Fatalf("unexpected error body %v", body)
	}

	expectStatus(t, performRequest(t, handler, http.MethodPost, "/guilds/guild-1/participants/me", "alice", nil), http.StatusNoContent)
	recorder = performRequest(t, handler, http.MethodPost, "/guilds/guild-1/participants/me", "alice", nil)
	expectStatus(t, recorder, http.StatusConflict)
	if body := decodeBody(t, recorder); body["error"] != "already_participating" || body["code"] != "santa.join.already_participating" {
		t.Fatalf("unexpected error body %v", body)
	}

	recorder = performRequest(t, handler, http.MethodPost, "/guilds/guild-1/assign", testModeratorToken, nil)
	expectStatus(t, recorder, http.StatusUnprocessableEntity)
	if body := decodeBody(t, recorder); body["error"] != "insufficient_participants" {
		t.Fatalf("unexpected error body %v", body)
	}

	recorder = performRequest(t, handler, http.MethodPost, "/guilds/guild-1/distribute", testModeratorToken, nil)
	expectStatus(t, recorder, http.StatusConflict)
	if body := decodeBody(t, recorder); body["error"] != "invalid_state" || body["code"] != "santa.distribute.invalid_state" {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestRouterValidatesTextPayloads(t *testing.T) {
	handler := newStubbedRouter(t, "alice")
	expectStatus(t, performRequest(t, handler, http.MethodPost, "/guilds/guild-1/event", testModeratorToken, nil), http.StatusCreated)
	expectStatus(t, performRequest(t, handler, http.MethodPost, "/guilds/guild-1/participants/me", "alice", nil), http.StatusNoContent)

	recorder := performRequest(t, handler, http.MethodPut, "/guilds/guild-1/wish", "alice", map[string]string{"wish": ""})
	expectStatus(t, recorder, http.StatusBadRequest)

	recorder = performRequest(t, handler, http.MethodPut, "/guilds/guild-1/wish", "alice", map[string]string{"wish": strings.Repeat("w", maxWishLength+1)})
	expectStatus(t, recorder, http.StatusBadRequest)

	recorder = performRequest(t, handler, http.MethodPut, "/guilds/guild-1/wish", "alice", map[string]string{"wish": "a warm scarf"})
	expectStatus(t, recorder, http.StatusOK)
	if body := decodeBody(t, recorder); body["accepted"] != true || body["redact_source"] != true {
		t.Fatalf("expected accepted wish with redaction, got %v", body)
	}

	recorder = performRequest(t, handler, http.MethodPut, "/guilds/guild-1/budget", testModeratorToken, map[string]string{"budget": strings.Repeat("9", maxBudgetLength+1)})
	expectStatus(t, recorder, http.StatusBadRequest)
	recorder = performRequest(t, handler, http.MethodPut, "/guilds/guild-1/budget", testModeratorToken, map[string]string{"budget": "20 EUR"})
	expectStatus(t, recorder, http.StatusNoContent)

	recorder = performRequest(t, handler, http.MethodGet, "/guilds/guild-1/participants", testModeratorToken, nil)
	expectStatus(t, recorder, http.StatusOK)
	participants, ok := decodeBody(t, recorder)["participants"].([]any)
	if !ok || len(participants) != 1 {
		t.Fatalf("expected one participant, got %v", participants)
	}
	if entry := participants[0].(map[string]any); entry["user_id"] != "alice" || entry["has_wish"] != true {
		t.Fatalf("unexpected participant entry %v", entry)
	}
}

func TestRouterStatusOfUnknownGuild(t *testing.T) {
	handler := newStubbedRouter(t, "alice")
	recorder := performRequest(t, handler, http.MethodGet, "/guilds/unknown-guild", "alice", nil)
	expectStatus(t, recorder, http.StatusOK)
	if body := decodeBody(t, recorder); body["state"] != string(santa.StateNone) || body["guild_id"] != "unknown-guild" {
		t.Fatalf("unexpected status body %v", body)
	}
}
