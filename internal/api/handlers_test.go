// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/embedding"
	"github.com/lkmcompany/gorgone/internal/jobqueue"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/orchestrator"
	"github.com/lkmcompany/gorgone/internal/provider"
	"github.com/lkmcompany/gorgone/internal/provider/tweet"
	"github.com/lkmcompany/gorgone/internal/rule"
	"github.com/lkmcompany/gorgone/internal/tracker"
)

type stubPush struct {
	*tweet.Adapter
}

func (s *stubPush) CreateRemoteRule(ctx context.Context, name, querySpec string) (string, error) {
	return "ext-" + name, nil
}
func (s *stubPush) UpdateRemoteRule(ctx context.Context, externalRuleID, querySpec string, intervalSeconds int, active bool) error {
	return nil
}
func (s *stubPush) DeleteRemoteRule(ctx context.Context, externalRuleID string) error { return nil }
func (s *stubPush) Search(ctx context.Context, querySpec string, cursor *string, pageSize int) ([][]byte, *string, error) {
	return nil, nil, nil
}
func (s *stubPush) FetchCounters(ctx context.Context, providerItemID string) (models.Counters, error) {
	return models.Counters{}, provider.ErrItemNotFound
}

type stubVectorizer struct{}

func (stubVectorizer) EnsureEmbeddings(ctx context.Context, itemIDs []uuid.UUID) (embedding.Result, error) {
	return embedding.Result{Total: len(itemIDs)}, nil
}

type testServer struct {
	db      *database.DB
	handler *Handler
	router  http.Handler
	zoneID  uuid.UUID
}

const (
	testWebhookSecret = "SECRET"
	testSigningSecret = "signing-secret"
	testBearerToken   = "callback-token"
	testAdminToken    = "admin-token"
)

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	queueCfg := config.QueueConfig{
		DefaultConcurrency:    1,
		MaxAttempts:           3,
		RetryInitialBackoff:   time.Second,
		RetryMaxBackoff:       time.Minute,
		LeaseDuration:         time.Minute,
		PollInterval:          10 * time.Millisecond,
		CallbackSigningSecret: testSigningSecret,
		CallbackBearerToken:   testBearerToken,
	}
	q, err := jobqueue.NewQueue(db, queueCfg, config.NATSConfig{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	dispatcher := jobqueue.NewDispatcher(db, queueCfg, q, zerolog.Nop())

	push := &stubPush{Adapter: tweet.New(config.TweetProviderConfig{WebhookSecret: testWebhookSecret}, config.ProviderConfig{
		RequestTimeout:     time.Second,
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	})}

	thresholds := models.DefaultTierThresholds()
	trk := tracker.New(db, map[models.Provider]tracker.CounterFetcher{models.ProviderTweet: push}, thresholds, zerolog.Nop())
	registry := rule.New(db, push, zerolog.Nop())
	orch := orchestrator.New(db, registry, q, trk, stubVectorizer{}, nil, push, nil, thresholds, zerolog.Nop())
	orch.RegisterHandlers(dispatcher)

	handler := NewHandler(db, orch, registry, q, dispatcher, push, queueCfg,
		config.SecurityConfig{AdminToken: testAdminToken, RateLimitDisabled: true}, nil)

	zoneID := uuid.New()
	_, err = db.Conn().ExecContext(context.Background(), `
		INSERT INTO zones (id, client_id, source_tweet, is_active) VALUES (?, ?, true, true)`,
		zoneID, uuid.New())
	if err != nil {
		t.Fatalf("seed zone: %v", err)
	}

	return &testServer{db: db, handler: handler, router: handler.Router(), zoneID: zoneID}
}

func (ts *testServer) seedRule(t *testing.T, externalID string) {
	t.Helper()
	id := uuid.New()
	r := models.Rule{
		ID:              id,
		ZoneID:          ts.zoneID,
		Name:            "rule-" + externalID,
		Kind:            models.RuleKindKeyword,
		QuerySpec:       "ai",
		IntervalSeconds: 60,
		IsActive:        true,
	}
	if err := ts.db.CreateRule(context.Background(), r); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	if err := ts.db.SetRuleExternalID(context.Background(), id, externalID); err != nil {
		t.Fatalf("set external id: %v", err)
	}
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookAcknowledgesEmptyPayload(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("X-API-Key", testWebhookSecret)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestWebhookEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	ts.seedRule(t, "R1")

	body := `{"rule_id":"R1","tweets":[{"id":"T1","text":"hi #ai","created_at":"2026-07-31T12:00:00Z","user":{"id":"U1","handle":"Ada"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-API-Key", testWebhookSecret)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["received"] != 1 || resp["inserted"] != 1 || resp["duplicates"] != 0 || resp["errors"] != 0 {
		t.Errorf("response = %v, want received=1 inserted=1", resp)
	}

	// Replaying the same body counts a duplicate and inserts nothing.
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-API-Key", testWebhookSecret)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode duplicate response: %v", err)
	}
	if resp["inserted"] != 0 || resp["duplicates"] != 1 {
		t.Errorf("duplicate response = %v, want duplicates=1", resp)
	}
}

func TestJobCallbackSignatureRequired(t *testing.T) {
	ts := newTestServer(t)
	payload := []byte(`{"item_ids":[],"zone_id":"` + uuid.NewString() + `"}`)

	// Unsigned, no bearer: rejected.
	req := httptest.NewRequest(http.MethodPost, "/_jobs/vectorize", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unsigned status = %d, want 401", rec.Code)
	}

	// Bad signature: rejected.
	req = httptest.NewRequest(http.MethodPost, "/_jobs/vectorize", bytes.NewReader(payload))
	req.Header.Set(jobqueue.SignatureHeader, "deadbeef")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature status = %d, want 401", rec.Code)
	}

	// Valid signature: accepted.
	req = httptest.NewRequest(http.MethodPost, "/_jobs/vectorize", bytes.NewReader(payload))
	req.Header.Set(jobqueue.SignatureHeader, jobqueue.Sign(testSigningSecret, payload))
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed status = %d body = %s", rec.Code, rec.Body.String())
	}

	// Bearer fallback without a signature header: accepted.
	req = httptest.NewRequest(http.MethodPost, "/_jobs/vectorize", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+testBearerToken)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("bearer status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/dead-letters", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("tokenless status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/dead-letters", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authorized status = %d, want 200", rec.Code)
	}
}

func TestCreateRuleValidatesInterval(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(createRuleRequest{
		ZoneID:          ts.zoneID.String(),
		Name:            "too-fast-news",
		Kind:            string(models.RuleKindNewsQuery),
		QuerySpec:       "elections",
		IntervalSeconds: 60, // below the 15-minute news floor
	})
	req := httptest.NewRequest(http.MethodPost, "/admin/rules", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d body = %s, want 400", rec.Code, rec.Body.String())
	}
}

func TestHealthReportsOK(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != "ok" || resp.Database != "ok" {
		t.Errorf("health = %+v, want ok/ok", resp)
	}
}
