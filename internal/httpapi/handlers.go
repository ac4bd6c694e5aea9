package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"lastid.org/internal/identity"
	"lastid.org/internal/obs"
	"lastid.org/internal/resource"
)

// ReadyProbe checks backing-store readiness (DB ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	store    identity.Store
	verifier *resource.Verifier
	registry *resource.Registry

	rateBurst    int
	ratePerSec   int
	maxBodyBytes int64
}

func New(rp ReadyProbe, version string, store identity.Store, verifier *resource.Verifier, registry *resource.Registry) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		store:        store,
		verifier:     verifier,
		registry:     registry,
		rateBurst:    20,
		ratePerSec:   10,
		maxBodyBytes: 1 << 20,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// token verification protocol, client-authenticated
	a.mux.HandleFunc("/api/1/token/verify", a.handleTokenVerify)
	a.mux.HandleFunc("/api/1/token/get_scope", a.handleTokenGetScope)

	// principal lookups, client-authenticated
	a.mux.HandleFunc("/api/1/user/get_by_userid", a.handleUserGetByUserid)
	a.mux.HandleFunc("/api/1/user/get_by_userids", a.handleUserGetByUserids)
	a.mux.HandleFunc("/api/1/user/get", a.handleUserGet)
	a.mux.HandleFunc("/api/1/user/getusers", a.handleUserGetUsers)
	a.mux.HandleFunc("/api/1/user/autocomplete", a.handleUserAutocomplete)

	// disclosure resources, token-authenticated
	for _, res := range registry.Resources() {
		a.mux.HandleFunc("/api/1/"+res.Name, a.resourceHandler(res.Name))
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// SetRateLimit overrides the per-IP token-bucket defaults. Call before
// Handler.
func (a *API) SetRateLimit(burst, perSec int) {
	a.rateBurst = burst
	a.ratePerSec = perSec
}

// SetMaxBodyBytes overrides the request body cap. Call before Handler.
func (a *API) SetMaxBodyBytes(n int64) {
	a.maxBodyBytes = n
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "lastid-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "lastid-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
