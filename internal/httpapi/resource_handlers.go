package httpapi

import (
	"errors"
	"net/http"

	"lastid.org/internal/identity"
	"lastid.org/internal/resource"
)

// resourceHandler builds the http.HandlerFunc for one registry resource.
// The request authenticates with a bearer token; the acting client is the
// token's owning client.
func (a *API) resourceHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodPost:
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
			return
		}

		token, ok := a.authenticateToken(w, r)
		if !ok {
			return
		}
		client, err := a.store.ClientByKey(r.Context(), token.ClientBuid)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}

		var user *identity.User
		if token.UserBuid != "" {
			user, err = a.store.UserByBuid(r.Context(), token.UserBuid)
			if err != nil && !errors.Is(err, identity.ErrNotFound) {
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}
		}

		if err := r.ParseForm(); err != nil {
			requestError(w, r, "bad_request", "malformed form data")
			return
		}

		r = auditContext(r, client.Buid, token.UserBuid)
		doc, err := a.registry.Dispatch(r.Context(), name, &resource.Request{
			Token:  token,
			Client: client,
			User:   user,
			Args:   r.Form,
		})
		if err != nil {
			respondResourceError(w, r, err, false)
			return
		}
		apiResult(w, r, doc, false)
	}
}
