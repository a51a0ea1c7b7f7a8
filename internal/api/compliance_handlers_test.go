package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestInbound_OptOutThenRepeat(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	rr := post(t, mux, "/v1/inbound", `{"tenantId":"t1","from":"(555) 123-4567","body":"S T O P"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["phone"] != "+15551234567" || body["classification"] != "opt-out" || body["state"] != "opted_out" {
		t.Fatalf("unexpected body %v", body)
	}
	if changed, _ := body["changed"].(bool); !changed {
		t.Fatalf("expected first opt-out to change state, got %v", body)
	}
	if reply, _ := body["autoReply"].(string); reply == "" {
		t.Fatalf("expected auto reply, got %v", body)
	}

	rr = post(t, mux, "/v1/inbound", `{"tenantId":"t1","from":"+15551234567","body":"stop"}`)
	body = decodeJSON(t, rr)
	if changed, _ := body["changed"].(bool); changed {
		t.Fatalf("expected repeat opt-out to be a no-op, got %v", body)
	}
}

func TestInbound_OrdinaryReplyOmitsAutoReply(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	rr := post(t, mux, "/v1/inbound", `{"tenantId":"t1","from":"5551234567","body":"yes please"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["classification"] != "none" || body["state"] != "subscribed" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["autoReply"]; ok {
		t.Fatalf("expected no autoReply field, got %v", body)
	}
}

func TestInbound_BadRequests(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	cases := []struct {
		name string
		body string
		code int
		want string
	}{
		{"broken json", `{"tenantId":`, http.StatusBadRequest, "invalid json"},
		{"missing tenant", `{"from":"+15551234567","body":"hi"}`, http.StatusBadRequest, "TenantID required"},
		{"missing from", `{"tenantId":"t1","body":"hi"}`, http.StatusBadRequest, "From required"},
		{"unaddressable sender", `{"tenantId":"t1","from":"anonymous","body":"stop"}`, http.StatusUnprocessableEntity, "invalid phone"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, mux, "/v1/inbound", tc.body)
			if rr.Code != tc.code {
				t.Fatalf("expected %d, got %d body=%q", tc.code, rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tc.want) {
				t.Fatalf("expected body to contain %q, got %q", tc.want, rr.Body.String())
			}
		})
	}
}

func TestEvaluateOutbound(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	cases := []struct {
		name    string
		body    string
		blocked bool
		footer  bool
	}{
		{
			name:    "allowed, footer fresh",
			body:    `{"localTime":"10:00","jurisdiction":null,"lastFooterAt":"2026-05-20T10:00:00Z","now":"2026-06-01T10:00:00Z"}`,
			blocked: false,
			footer:  false,
		},
		{
			name:    "strict state after 20:00",
			body:    `{"localTime":"20:01","jurisdiction":"FL","lastFooterAt":null,"now":"2026-06-01T10:00:00Z"}`,
			blocked: true,
			footer:  true,
		},
		{
			name:    "fail closed on garbage",
			body:    `{"localTime":"soon","lastFooterAt":"last week","now":"2026-06-01T10:00:00Z"}`,
			blocked: true,
			footer:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, mux, "/v1/outbound/evaluate", tc.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
			}
			body := decodeJSON(t, rr)
			if body["blockedByQuietHours"] != tc.blocked || body["footerRequired"] != tc.footer {
				t.Fatalf("unexpected decision %v", body)
			}
		})
	}
}

func TestEvaluateOutbound_MissingTimesFailClosed(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	for _, body := range []string{`{}`, `{"localTime":"","now":""}`, `{"localTime":"10:00"}`} {
		rr := post(t, mux, "/v1/outbound/evaluate", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d body=%q", body, rr.Code, rr.Body.String())
		}
		got := decodeJSON(t, rr)
		if got["footerRequired"] != true {
			t.Fatalf("%s: expected footer required, got %v", body, got)
		}
		if body != `{"localTime":"10:00"}` && got["blockedByQuietHours"] != true {
			t.Fatalf("%s: expected blocked, got %v", body, got)
		}
	}

	rr := post(t, mux, "/v1/outbound/evaluate", `{"localTime":"10:00"`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on malformed json, got %d", rr.Code)
	}
}

func TestRenderTemplate(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	rr := post(t, mux, "/v1/templates/render", `{"template":"Hi {{first_name}}, your {{appointment_type}} with {{brand_name}}","variables":{"first_name":"Ana","brand_name":"Glow"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["text"] != "Hi Ana, your appointment with Glow" {
		t.Fatalf("unexpected render %v", body)
	}
}

func TestRenderTemplate_TooLong(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	rr := post(t, mux, "/v1/templates/render", `{"template":"{{first_name}} says hello","variables":{"first_name":"Alexandra"},"maxLength":10}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%q", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["max"] != float64(10) || body["length"] != float64(20) {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, mux := newTestServer(t, &fakeRepo{})
	defer s.Stop()

	_ = post(t, mux, "/v1/inbound", `{"tenantId":"t1","from":"+15551234567","body":"help"}`)

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `inbound_classifications_total{classification="help"} 1`) {
		t.Fatalf("expected help counter, got %q", rr.Body.String())
	}
}
