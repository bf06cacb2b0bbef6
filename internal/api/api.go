// Package api exposes the certification pipeline over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/certnode/certnode/internal/auth"
	"github.com/certnode/certnode/internal/badge"
	"github.com/certnode/certnode/internal/certify"
	"github.com/certnode/certnode/internal/config"
	"github.com/certnode/certnode/internal/ics"
	"github.com/certnode/certnode/internal/vault"
)

// maxBodySize bounds certification and verification request bodies.
const maxBodySize = 1 << 20 // 1MB

// CertifyRateLimiter is the rate limiter for POST /api/v1/certify.
var CertifyRateLimiter = NewRateLimiter(100, time.Hour)

type API struct {
	pipeline *certify.Pipeline
	store    *vault.Store
	auth     *auth.Auth
	cfg      *config.Config
	started  time.Time
}

func New(pipeline *certify.Pipeline, store *vault.Store, a *auth.Auth, cfg *config.Config) *API {
	return &API{
		pipeline: pipeline,
		store:    store,
		auth:     a,
		cfg:      cfg,
		started:  time.Now(),
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	// Certification
	mux.HandleFunc("POST /api/v1/certify", RateLimitMiddleware(CertifyRateLimiter, a.handleCertify))
	mux.HandleFunc("POST /api/v1/verify", a.handleVerify)
	mux.HandleFunc("GET /api/v1/verify/{hash}", a.handleVerifyByHash)

	// Certificates & badges
	mux.HandleFunc("GET /api/v1/cert/{id}", a.handleGetCert)
	mux.HandleFunc("GET /api/v1/badge/{id}", a.handleBadge)

	// Vault
	mux.HandleFunc("GET /api/v1/vault/search", a.handleVaultSearch)
	mux.HandleFunc("GET /api/v1/vault/anchor/{anchor}", a.handleVaultAnchor)
	mux.HandleFunc("GET /api/v1/vault/stats", a.handleVaultStats)

	// Drift surveillance
	mux.HandleFunc("POST /api/v1/drift/{id}", a.handleDriftCheck)
	mux.HandleFunc("GET /api/v1/vault/alerts", a.requireOperator(a.handleAlerts))
	mux.HandleFunc("POST /api/v1/vault/alerts/{id}/resolve", a.requireOperator(a.handleResolveAlert))

	// Auth & system
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/status", a.handleStatus)
	mux.HandleFunc("GET /health", a.handleHealth)
}

func (a *API) handleCertify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req certify.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CertType == "" {
		req.CertType = ics.CertFullDocument
	}

	res, err := a.pipeline.Certify(req)
	if err != nil {
		if errors.Is(err, certify.ErrContentTooShort) || errors.Is(err, certify.ErrInvalidCertType) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, "certification failed", http.StatusInternalServerError)
		return
	}

	// Gate failure is reported with full diagnostics, not hidden behind an
	// opaque error.
	if !res.Success {
		jsonResp(w, http.StatusUnprocessableEntity, res)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req struct {
		Content      string          `json:"content"`
		Certificate  json.RawMessage `json:"certificate,omitempty"`
		CombinedHash string          `json:"combined_hash,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		jsonError(w, "content is required", http.StatusBadRequest)
		return
	}

	var valid bool
	var verifyErrs []string
	var err error
	if req.CombinedHash != "" {
		valid, verifyErrs, err = a.pipeline.VerifyStored(req.Content, req.CombinedHash)
	} else {
		valid, verifyErrs, err = a.pipeline.Verify(req.Content, req.Certificate)
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	jsonResp(w, http.StatusOK, map[string]any{
		"valid":  valid,
		"errors": verifyErrs,
	})
}

// handleVerifyByHash is a lightweight existence check: does the ledger hold a
// certificate with this combined hash.
func (a *API) handleVerifyByHash(w http.ResponseWriter, r *http.Request) {
	entry, err := a.store.ByHash(r.PathValue("hash"))
	if err != nil {
		jsonError(w, "vault lookup failed", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		jsonResp(w, http.StatusNotFound, map[string]any{"found": false})
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"found":        true,
		"cert_id":      entry.CertID,
		"cert_type":    entry.CertType,
		"timestamp":    entry.Timestamp,
		"vault_anchor": entry.VaultAnchor,
	})
}

func (a *API) handleGetCert(w http.ResponseWriter, r *http.Request) {
	entry, err := a.store.ByID(r.PathValue("id"))
	if err != nil {
		jsonError(w, "vault lookup failed", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		jsonError(w, "certificate not found", http.StatusNotFound)
		return
	}
	cert, err := entry.Certificate()
	if err != nil {
		jsonError(w, "stored certificate is corrupt", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, cert)
}

func (a *API) handleBadge(w http.ResponseWriter, r *http.Request) {
	entry, err := a.store.ByID(r.PathValue("id"))
	if err != nil {
		jsonError(w, "vault lookup failed", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		jsonError(w, "certificate not found", http.StatusNotFound)
		return
	}
	cert, err := entry.Certificate()
	if err != nil {
		jsonError(w, "stored certificate is corrupt", http.StatusInternalServerError)
		return
	}

	payload := badge.FromCertificate(cert)
	style := badge.ParseStyle(r.URL.Query().Get("style"))

	switch r.URL.Query().Get("format") {
	case "svg":
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(badge.RenderSVG(payload, style)))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(badge.RenderHTML(payload, style)))
	default:
		jsonResp(w, http.StatusOK, payload)
	}
}

func (a *API) handleVaultSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	f := vault.Filter{
		CertType:        q.Get("cert_type"),
		AuthorSignature: q.Get("author"),
		DateFrom:        q.Get("from"),
		DateTo:          q.Get("to"),
		Limit:           limit,
	}

	entries, err := a.store.Search(f)
	if err != nil {
		jsonError(w, "vault search failed", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) handleVaultAnchor(w http.ResponseWriter, r *http.Request) {
	entry, err := a.store.ByAnchor(r.PathValue("anchor"))
	if err != nil {
		jsonError(w, "vault lookup failed", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		jsonError(w, "anchor not found", http.StatusNotFound)
		return
	}
	jsonResp(w, http.StatusOK, entry)
}

func (a *API) handleVaultStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Stats()
	if err != nil {
		jsonError(w, "vault stats failed", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, stats)
}

func (a *API) handleDriftCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		jsonError(w, "content is required", http.StatusBadRequest)
		return
	}

	alert, err := a.store.DetectDrift(r.PathValue("id"), req.Content)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			jsonError(w, "certificate not found", http.StatusNotFound)
			return
		}
		jsonError(w, "drift check failed", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"drift_detected": alert != nil}
	if alert != nil {
		resp["alert"] = alert
	}
	jsonResp(w, http.StatusOK, resp)
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	alerts, err := a.store.Alerts(unresolvedOnly, limit)
	if err != nil {
		jsonError(w, "listing alerts failed", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (a *API) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid alert id", http.StatusBadRequest)
		return
	}
	if err := a.store.ResolveAlert(id); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operator string `json:"operator"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	hash := a.cfg.Auth.OperatorPasswordHash
	if hash == "" || !a.auth.CheckPassword(hash, req.Password) {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	operator := req.Operator
	if operator == "" {
		operator = a.cfg.Certification.Operator
	}
	token, err := a.auth.GenerateToken(operator)
	if err != nil {
		jsonError(w, "token generation failed", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Stats()
	if err != nil {
		jsonError(w, "vault stats failed", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"system":  config.SystemName,
		"version": config.Version,
		"components": map[string]string{
			"cdp":    config.CDPVersion,
			"frame":  config.FrameVersion,
			"stride": config.StrideVersion,
		},
		"operator":     a.cfg.Certification.Operator,
		"genesis_hash": a.pipeline.GenesisHash(),
		"threshold":    a.pipeline.Threshold(),
		"vault":        stats,
		"uptime_sec":   int(time.Since(a.started).Seconds()),
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireOperator guards administrative endpoints with a valid operator JWT.
func (a *API) requireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := a.auth.ExtractClaims(r)
		if claims == nil || claims.Role != auth.RoleOperator {
			jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
