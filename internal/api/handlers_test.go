package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
	"github.com/LeventeLantos/outreach-compliance/internal/consent"
	"github.com/LeventeLantos/outreach-compliance/internal/metrics"
	"github.com/LeventeLantos/outreach-compliance/internal/model"
	"github.com/LeventeLantos/outreach-compliance/internal/repo"
	"github.com/LeventeLantos/outreach-compliance/internal/scheduler"
)

type fakeRepo struct {
	// capture args
	gotLimit  int
	gotOffset int

	// behavior
	items []model.Message
	err   error
}

var _ repo.MessageRepository = (*fakeRepo)(nil)

func (f *fakeRepo) ClaimPending(ctx context.Context, limit int) ([]model.Message, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRepo) MarkSent(ctx context.Context, id int64, remoteMessageID string) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id int64, reason string) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) MarkSuppressed(ctx context.Context, id int64, reason string) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) Defer(ctx context.Context, id int64, until time.Time) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) ListSent(ctx context.Context, limit, offset int) ([]model.Message, error) {
	f.gotLimit = limit
	f.gotOffset = offset
	return f.items, f.err
}

func newTestServer(t *testing.T, r repo.MessageRepository) (*scheduler.Scheduler, http.Handler) {
	t.Helper()

	// Long interval so only the immediate tick happens (noop anyway).
	s, err := scheduler.New(time.Hour, func(context.Context) {})
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	policy := compliance.DefaultPolicy()
	m := metrics.New()
	svc := consent.NewService(consent.NewMemoryStore(), policy, consent.WithObserver(m))
	h := NewHandler(s, r, svc, policy).WithMetrics(m.Handler())
	return s, Router(h)
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func TestHealth(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}

	body := decodeJSON(t, rr)
	if v, ok := body["ok"].(bool); !ok || !v {
		t.Fatalf("expected {ok:true}, got %v", body)
	}
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("%s %s: expected 200, got %d body=%q", method, path, rr.Code, rr.Body.String())
	}
	return rr
}

func TestSchedulerEndpoints(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	steps := []struct {
		method  string
		path    string
		running bool
	}{
		{http.MethodGet, "/v1/scheduler/status", false},
		{http.MethodPost, "/v1/scheduler/start", true},
		{http.MethodGet, "/v1/scheduler/status", true},
		{http.MethodPost, "/v1/scheduler/stop", false},
	}

	for _, st := range steps {
		body := decodeJSON(t, get(t, mux, st.method, st.path))
		if running, ok := body["running"].(bool); !ok || running != st.running {
			t.Fatalf("%s %s: expected running=%v, got %v", st.method, st.path, st.running, body)
		}
	}
}

func TestListSentMessages_ExposesComplianceFields(t *testing.T) {
	sentAt := time.Date(2026, 6, 10, 16, 0, 0, 0, time.UTC)
	deferred := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	remote := "carrier-42"

	fr := &fakeRepo{
		items: []model.Message{{
			ID:              7,
			TenantID:        "clinic-9",
			RecipientPhone:  "+15551234567",
			Content:         "Hi {{first_name}}",
			Variables:       map[string]string{"first_name": "Ana"},
			Jurisdiction:    "FL",
			Timezone:        "America/New_York",
			Status:          model.Sent,
			DeferredUntil:   &deferred,
			SentAt:          &sentAt,
			RemoteMessageID: &remote,
		}},
	}

	s, mux := newTestServer(t, fr)
	defer s.Stop()

	body := decodeJSON(t, get(t, mux, http.MethodGet, "/v1/messages/sent"))
	if fr.gotLimit != 50 || fr.gotOffset != 0 {
		t.Fatalf("expected defaults limit=50 offset=0, got limit=%d offset=%d", fr.gotLimit, fr.gotOffset)
	}

	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one item, got %v", body["items"])
	}
	item := items[0].(map[string]any)

	if item["TenantID"] != "clinic-9" || item["Jurisdiction"] != "FL" || item["Timezone"] != "America/New_York" {
		t.Fatalf("routing fields missing from %v", item)
	}
	if item["Status"] != string(model.Sent) || item["RemoteMessageID"] != remote {
		t.Fatalf("delivery fields missing from %v", item)
	}
	vars, _ := item["Variables"].(map[string]any)
	if vars["first_name"] != "Ana" {
		t.Fatalf("expected variables to round trip, got %v", item["Variables"])
	}
	if item["DeferredUntil"] != deferred.Format(time.RFC3339) {
		t.Fatalf("expected deferredUntil %s, got %v", deferred.Format(time.RFC3339), item["DeferredUntil"])
	}
}

func TestListSentMessages_Paging(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=10&offset=5", 10, 5},
		{"?limit=abc&offset=zzz", 50, 0},
	}

	for _, tc := range cases {
		fr := &fakeRepo{}
		s, mux := newTestServer(t, fr)

		body := decodeJSON(t, get(t, mux, http.MethodGet, "/v1/messages/sent"+tc.query))
		s.Stop()

		if fr.gotLimit != tc.wantLimit || fr.gotOffset != tc.wantOffset {
			t.Fatalf("%q: expected limit=%d offset=%d, got limit=%d offset=%d",
				tc.query, tc.wantLimit, tc.wantOffset, fr.gotLimit, fr.gotOffset)
		}
		if _, ok := body["items"]; !ok {
			t.Fatalf("%q: expected items key, got %v", tc.query, body)
		}
	}
}

func TestListSentMessages_RepoErrorReturns500(t *testing.T) {
	fr := &fakeRepo{err: errors.New("db down")}
	s, mux := newTestServer(t, fr)
	defer s.Stop()

	req := httptest.NewRequest(http.MethodGet, "/v1/messages/sent", nil)
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "db down") {
		t.Fatalf("expected error body to contain repo error, got %q", rr.Body.String())
	}
}

func TestRouterRoot(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "outreach-compliance" {
		t.Fatalf("expected body %q, got %q", "outreach-compliance", got)
	}
}
