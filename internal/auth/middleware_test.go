package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newAuthedHandler(t *testing.T) http.Handler {
	t.Helper()
	validator, err := NewStaticAPIKeyValidator("valid-key:tenant-a:report_reader")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing downstream of middleware")
		}
		w.Header().Set("X-Tenant", identity.TenantID)
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(nil, validator)(inner)
}

func TestMiddlewareRejectsMissingKey(t *testing.T) {
	handler := newAuthedHandler(t)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/operations", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", recorder.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error_code"] != "UNAUTHORIZED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestMiddlewareRejectsUnknownKey(t *testing.T) {
	handler := newAuthedHandler(t)
	request := httptest.NewRequest(http.MethodGet, "/v1/operations", nil)
	request.Header.Set("X-API-Key", "wrong-key")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestMiddlewareAcceptsHeaderKey(t *testing.T) {
	handler := newAuthedHandler(t)
	request := httptest.NewRequest(http.MethodGet, "/v1/operations", nil)
	request.Header.Set("X-API-Key", "valid-key")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if recorder.Header().Get("X-Tenant") != "tenant-a" {
		t.Fatalf("tenant = %q", recorder.Header().Get("X-Tenant"))
	}
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	handler := newAuthedHandler(t)
	request := httptest.NewRequest(http.MethodGet, "/v1/operations", nil)
	request.Header.Set("Authorization", "Bearer valid-key")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
}
