package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireAdmin_AllowsAdminKey_BlocksPublicKey(t *testing.T) {
	keys := Keys{
		Public: []string{"pub_key"},
		Admin:  []string{"adm_key"},
	}

	// Admin key -> 200
	reqAdm := httptest.NewRequest(http.MethodGet, "/admin", nil)
	reqAdm.Header.Set("X-API-Key", "adm_key")
	recAdm := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recAdm, reqAdm)
	if recAdm.Code != http.StatusOK {
		t.Fatalf("admin key should pass; got %d", recAdm.Code)
	}

	// Bearer form -> 200
	reqBearer := httptest.NewRequest(http.MethodGet, "/admin", nil)
	reqBearer.Header.Set("Authorization", "Bearer adm_key")
	recBearer := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recBearer, reqBearer)
	if recBearer.Code != http.StatusOK {
		t.Fatalf("bearer admin key should pass; got %d", recBearer.Code)
	}

	// Public key -> 403
	reqPub := httptest.NewRequest(http.MethodGet, "/admin", nil)
	reqPub.Header.Set("X-API-Key", "pub_key")
	recPub := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recPub, reqPub)
	if recPub.Code != http.StatusForbidden {
		t.Fatalf("public key should be forbidden; got %d", recPub.Code)
	}

	// Missing key -> 401
	reqNone := httptest.NewRequest(http.MethodGet, "/admin", nil)
	recNone := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recNone, reqNone)
	if recNone.Code != http.StatusUnauthorized {
		t.Fatalf("missing key should be 401; got %d", recNone.Code)
	}
}

func TestRequireAny_OpenWhenNoKeys(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	RequireAny(Keys{})(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 with no keys configured; got %d", rec.Code)
	}
}

func TestRequireAny_RejectsUnknownKey(t *testing.T) {
	keys := Keys{Public: []string{"pub_key"}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "nope")
	rec := httptest.NewRecorder()
	RequireAny(keys)(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401; got %d", rec.Code)
	}
}
