package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/certnode/certnode/internal/auth"
	"github.com/certnode/certnode/internal/certify"
	"github.com/certnode/certnode/internal/config"
	"github.com/certnode/certnode/internal/vault"
)

const goodDoc = "Sensor drift accounts for most of the residual error, because the reference junction " +
	"warms during long runs, and since the housing lacks insulation, the baseline moves with ambient " +
	"temperature. Repeated measurements likely understate the effect, as the logging interval smooths " +
	"short excursions, although the trend suggests a steady gradient across the board. Therefore the " +
	"calibration routine must compensate for housing temperature, thus anchoring every reading to a " +
	"stable reference point.\n\n" +
	"The correction table addresses this, because each probe carries its own offset curve, and the " +
	"firmware interpolates between calibration points whenever the ambient reading changes. Field data " +
	"indicates that the interpolation error stays small, and bench testing suggests the residuals " +
	"shrink further, although the upper range seems noisier than the rest. Therefore the correction " +
	"must cover that range, thus the outliers lose their influence.\n\n" +
	"Validation runs confirm the gain, because the corrected series tracks the reference instrument " +
	"closely, and since the spread between repeated passes narrows to the noise floor, the correction " +
	"holds. The residual histogram suggests a symmetric distribution, and the tails likely reflect " +
	"quantization rather than drift, although longer runs would settle the question. Therefore the " +
	"procedure must ship with the next firmware, thus closing the drift issue.\n\n" +
	"The remaining work therefore narrows, because the method appears stable, since the residuals stay " +
	"bounded, and furthermore the outliers likely vanish once the table covers the upper end of the " +
	"range. In conclusion the drift correction holds across the tested span, thus the sensor meets its " +
	"specification, and consequently the release can proceed."

func newTestMux(t *testing.T, cfg *config.Config) *http.ServeMux {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	store, err := vault.Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("opening vault: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pipeline := certify.New(cfg, store)
	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)

	mux := http.NewServeMux()
	New(pipeline, store, a, cfg).RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func certifyGoodDoc(t *testing.T, mux *http.ServeMux) certify.Result {
	t.Helper()
	w := doJSON(t, mux, "POST", "/api/v1/certify", map[string]string{
		"content":   goodDoc,
		"cert_type": "FULL_DOCUMENT",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("certify status = %d, body = %s", w.Code, w.Body.String())
	}
	var res certify.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Certificate == nil {
		t.Fatal("response missing certificate")
	}
	return res
}

func TestCertifyEndpointValidation(t *testing.T) {
	mux := newTestMux(t, nil)

	w := doJSON(t, mux, "POST", "/api/v1/certify", map[string]string{"content": "too short"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("short content status = %d, want 400", w.Code)
	}

	w = doJSON(t, mux, "POST", "/api/v1/certify", map[string]string{
		"content":   strings.Repeat("long enough content here ", 10),
		"cert_type": "BOGUS",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad cert type status = %d, want 400", w.Code)
	}
}

func TestCertifyBodyTooLarge(t *testing.T) {
	mux := newTestMux(t, nil)
	w := doJSON(t, mux, "POST", "/api/v1/certify", map[string]string{
		"content": strings.Repeat("a", 2<<20),
	})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", w.Code)
	}
}

func TestCertifyEndpointGateFailure(t *testing.T) {
	mux := newTestMux(t, nil)
	w := doJSON(t, mux, "POST", "/api/v1/certify", map[string]string{
		"content": strings.Split(goodDoc, "\n\n")[0],
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("gate failure status = %d, want 422", w.Code)
	}
	var res certify.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Success || len(res.Issues) == 0 {
		t.Errorf("422 body should carry diagnostics: %+v", res)
	}
}

func TestCertifyVerifyAndBadge(t *testing.T) {
	mux := newTestMux(t, nil)
	res := certifyGoodDoc(t, mux)
	certID := res.Certificate.CertID()

	// Verify with the returned certificate.
	certJSON, _ := res.Certificate.JSON()
	w := doJSON(t, mux, "POST", "/api/v1/verify", map[string]any{
		"content":     goodDoc,
		"certificate": json.RawMessage(certJSON),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", w.Code, w.Body.String())
	}
	var vr struct {
		Valid bool `json:"valid"`
	}
	json.Unmarshal(w.Body.Bytes(), &vr)
	if !vr.Valid {
		t.Errorf("verification should pass: %s", w.Body.String())
	}

	// Certificate lookup.
	w = doJSON(t, mux, "GET", "/api/v1/cert/"+certID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("cert lookup status = %d", w.Code)
	}

	// Badge: JSON payload by default, rendered formats on request.
	w = doJSON(t, mux, "GET", "/api/v1/badge/"+certID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"cert_id"`) {
		t.Fatalf("badge JSON = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, mux, "GET", "/api/v1/badge/"+certID+"?format=svg", nil)
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("svg badge content type = %s", ct)
	}
	w = doJSON(t, mux, "GET", "/api/v1/badge/"+certID+"?format=html&style=compact", nil)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("html badge content type = %s", ct)
	}

	// Hash existence check, ledger search, and anchor lookup.
	w = doJSON(t, mux, "GET", "/api/v1/verify/"+res.Certificate.Fingerprint.CombinedHash, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"found":true`) {
		t.Errorf("verify by hash = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, mux, "GET", "/api/v1/vault/search?cert_type=FULL_DOCUMENT", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), certID) {
		t.Errorf("vault search = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, mux, "GET", "/api/v1/vault/anchor/"+res.Certificate.VaultAnchor, nil)
	if w.Code != http.StatusOK {
		t.Errorf("anchor lookup status = %d", w.Code)
	}
}

func TestVerifyByHashNotFound(t *testing.T) {
	mux := newTestMux(t, nil)
	w := doJSON(t, mux, "GET", "/api/v1/verify/"+strings.Repeat("0", 64), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown hash status = %d, want 404", w.Code)
	}
}

func TestBadgeNotFound(t *testing.T) {
	mux := newTestMux(t, nil)
	w := doJSON(t, mux, "GET", "/api/v1/badge/no-such-cert", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing badge status = %d, want 404", w.Code)
	}
}

func TestDriftEndpoint(t *testing.T) {
	mux := newTestMux(t, nil)
	res := certifyGoodDoc(t, mux)
	certID := res.Certificate.CertID()

	w := doJSON(t, mux, "POST", "/api/v1/drift/"+certID, map[string]string{"content": goodDoc})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"drift_detected":false`) {
		t.Errorf("clean drift check = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, mux, "POST", "/api/v1/drift/"+certID, map[string]string{"content": goodDoc + " edited"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"drift_detected":true`) {
		t.Errorf("drifted check = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, mux, "POST", "/api/v1/drift/no-such-id", map[string]string{"content": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown cert drift status = %d, want 404", w.Code)
	}
}

func TestStatusAndHealth(t *testing.T) {
	mux := newTestMux(t, nil)

	w := doJSON(t, mux, "GET", "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status map[string]any
	json.Unmarshal(w.Body.Bytes(), &status)
	if status["system"] != "CertNode" {
		t.Errorf("system = %v", status["system"])
	}
	if status["genesis_hash"] == "" {
		t.Error("status missing genesis hash")
	}

	w = doJSON(t, mux, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health = %d", w.Code)
	}
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	mux := newTestMux(t, nil)

	if w := doJSON(t, mux, "GET", "/api/v1/vault/alerts", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("alerts without token = %d, want 401", w.Code)
	}
	if w := doJSON(t, mux, "POST", "/api/v1/vault/alerts/1/resolve", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("resolve without token = %d, want 401", w.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	cfg := config.DefaultConfig()
	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)
	hash, err := a.HashPassword("operator-secret")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	cfg.Auth.OperatorPasswordHash = hash
	mux := newTestMux(t, cfg)

	// Wrong password.
	w := doJSON(t, mux, "POST", "/api/v1/auth/login", map[string]string{"password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d, want 401", w.Code)
	}

	// Correct password.
	w = doJSON(t, mux, "POST", "/api/v1/auth/login", map[string]string{"password": "operator-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	token := resp["token"]
	if token == "" {
		t.Fatal("login returned no token")
	}

	// Token unlocks the alert listing.
	req := httptest.NewRequest("GET", "/api/v1/vault/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("alerts with token = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	mux := newTestMux(t, nil)
	w := doJSON(t, mux, "POST", "/api/v1/auth/login", map[string]string{"password": "anything"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("login without configured hash = %d, want 401", w.Code)
	}
}
