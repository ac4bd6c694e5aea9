package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"lastid.org/internal/resource"
)

// callbackName limits JSONP callbacks to plain identifiers.
var callbackName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

// noCache marks API responses as uncacheable. Every envelope carries user or
// client specific data.
func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "private, no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
}

// writeEnvelope renders payload as JSON, or as a JSONP call when jsonp is
// allowed and the request carries a valid callback parameter. JSONP responses
// are always HTTP 200 so browsers execute them.
func writeEnvelope(w http.ResponseWriter, r *http.Request, code int, payload map[string]any, jsonp bool) {
	noCache(w)
	if jsonp {
		if cb := r.FormValue("callback"); cb != "" && callbackName.MatchString(cb) {
			data, err := json.Marshal(payload)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cb + "("))
			_, _ = w.Write(data)
			_, _ = w.Write([]byte(");"))
			return
		}
	}
	writeJSON(w, code, payload)
}

// apiResult renders a status:ok envelope with fields merged at the top level.
func apiResult(w http.ResponseWriter, r *http.Request, fields map[string]any, jsonp bool) {
	payload := map[string]any{"status": "ok"}
	for k, v := range fields {
		payload[k] = v
	}
	writeEnvelope(w, r, http.StatusOK, payload, jsonp)
}

// apiError renders a status:error envelope at HTTP 200. The transaction
// succeeded; the answer is a refusal.
func apiError(w http.ResponseWriter, r *http.Request, code string, jsonp bool) {
	writeEnvelope(w, r, http.StatusOK, map[string]any{
		"status": "error",
		"error":  code,
	}, jsonp)
}

// requestError renders a malformed-request refusal at HTTP 400.
func requestError(w http.ResponseWriter, r *http.Request, code, description string) {
	payload := map[string]any{
		"status": "error",
		"error":  code,
	}
	if description != "" {
		payload["error_description"] = description
	}
	writeEnvelope(w, r, http.StatusBadRequest, payload, false)
}

// respondResourceError maps a resource.Error to the wire. Unknown errors are
// storage or programming faults and surface as HTTP 500.
func respondResourceError(w http.ResponseWriter, r *http.Request, err error, jsonp bool) {
	var rerr *resource.Error
	if !errors.As(err, &rerr) {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	switch rerr.Kind {
	case resource.KindRequest:
		requestError(w, r, rerr.Code, rerr.Description)
	case resource.KindValidation:
		requestError(w, r, rerr.Code, rerr.Description)
	default:
		apiError(w, r, rerr.Code, jsonp)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	noCache(w)
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
