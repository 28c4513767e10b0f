package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shiva/swiftparcel/internal/auth"
	"github.com/shiva/swiftparcel/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_RejectsMissingToken(t *testing.T) {
	h := Auth(auth.NewVerifier("secret"))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "MISSING_TOKEN") {
		t.Errorf("body = %s, want MISSING_TOKEN code", rec.Body.String())
	}
}

func TestAuth_ExpiredTokenCode(t *testing.T) {
	v := auth.NewVerifier("secret")
	token, _ := v.Issue(auth.Identity{
		UserID: "u1", UserType: model.TypeCustomer, Phone: "+911111111111",
	}, -time.Minute)

	h := Auth(v)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "TOKEN_EXPIRED") {
		t.Errorf("body = %s, want TOKEN_EXPIRED code", rec.Body.String())
	}
}

func TestAuth_InjectsIdentity(t *testing.T) {
	v := auth.NewVerifier("secret")
	want := auth.Identity{UserID: "u1", UserType: model.TypeCustomer, Phone: "+911111111111"}
	token, err := v.Issue(want, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var got auth.Identity
	var ok bool
	h := Auth(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = IdentityFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !ok {
		t.Fatal("identity missing from context")
	}
	if got != want {
		t.Errorf("identity = %+v, want %+v", got, want)
	}
}

func TestRequireAdmin(t *testing.T) {
	v := auth.NewVerifier("secret")
	chain := func(id auth.Identity) int {
		token, _ := v.Issue(id, time.Hour)
		h := Auth(v)(RequireAdmin(okHandler()))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := chain(auth.Identity{UserID: "a1", UserType: model.TypeAdmin, Role: "admin", Phone: "+911111111111"}); code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", code)
	}
	if code := chain(auth.Identity{UserID: "c1", UserType: model.TypeCustomer, Phone: "+912222222222"}); code != http.StatusForbidden {
		t.Errorf("customer status = %d, want 403", code)
	}
}

func TestRateLimit_BudgetExhausts(t *testing.T) {
	h := RateLimit(3, time.Hour)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-budget status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "RATE_LIMIT_EXCEEDED") {
		t.Errorf("body = %s, want RATE_LIMIT_EXCEEDED code", rec.Body.String())
	}
}

func TestRateLimit_PerCaller(t *testing.T) {
	h := RateLimit(1, time.Hour)(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), first)

	// A different caller has its own bucket.
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("second caller status = %d, want 200", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS headers missing")
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
