package httpapi

import (
	"net/http"
	"strings"

	"lastid.org/internal/audit"
	"lastid.org/internal/resource"
)

func (a *API) handleTokenVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := a.authenticateClient(w, r)
	if !ok {
		return
	}
	r = auditContext(r, caller.Buid, "")

	result, err := a.verifier.Verify(r.Context(), caller, r.FormValue("access_token"), r.FormValue("resource"))
	if err != nil {
		respondResourceError(w, r, err, false)
		return
	}
	_ = audit.LogEvent(r.Context(), "token.verify", map[string]any{
		"resource": r.FormValue("resource"),
	})
	apiResult(w, r, verifyFields(result), false)
}

func (a *API) handleTokenGetScope(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := a.authenticateClient(w, r)
	if !ok {
		return
	}
	r = auditContext(r, caller.Buid, "")

	result, err := a.verifier.GetScope(r.Context(), caller, r.FormValue("access_token"))
	if err != nil {
		respondResourceError(w, r, err, false)
		return
	}
	apiResult(w, r, verifyFields(result), false)
}

func verifyFields(result *resource.VerifyResult) map[string]any {
	fields := map[string]any{
		"validity":   result.Validity,
		"clientinfo": result.ClientInfo,
	}
	if result.UserInfo != nil {
		fields["userinfo"] = result.UserInfo
	}
	return fields
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
