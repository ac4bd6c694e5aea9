package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lastid.org/internal/audit"
	"lastid.org/internal/identity"
	"lastid.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// authenticateClient resolves the calling client from HTTP Basic credentials
// or client_id/client_secret form fields, verifying the secret against the
// stored bcrypt hash. A nil client with a nil error never happens; failures
// are written to the response.
func (a *API) authenticateClient(w http.ResponseWriter, r *http.Request) (*identity.Client, bool) {
	key, secret, ok := r.BasicAuth()
	if !ok {
		key = r.FormValue("client_id")
		secret = r.FormValue("client_secret")
	}
	key = strings.TrimSpace(key)
	if key == "" || secret == "" {
		obs.CountAuthFailure("client")
		writeError(w, r, http.StatusUnauthorized, "client credentials required")
		return nil, false
	}

	client, err := a.store.ClientByKey(r.Context(), key)
	if errors.Is(err, identity.ErrNotFound) {
		obs.CountAuthFailure("client")
		writeError(w, r, http.StatusUnauthorized, "unknown client")
		return nil, false
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)) != nil {
		obs.CountAuthFailure("client")
		writeError(w, r, http.StatusUnauthorized, "invalid client secret")
		return nil, false
	}
	return client, true
}

// authenticateToken resolves a live access token from the Authorization
// header or the access_token parameter.
func (a *API) authenticateToken(w http.ResponseWriter, r *http.Request) (*identity.Token, bool) {
	access, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		access = strings.TrimSpace(r.FormValue("access_token"))
	}
	if access == "" {
		obs.CountAuthFailure("token")
		apiError(w, r, "no_token", false)
		return nil, false
	}

	token, err := a.store.TokenByAccess(r.Context(), access)
	if errors.Is(err, identity.ErrNotFound) {
		obs.CountAuthFailure("token")
		apiError(w, r, "no_token", false)
		return nil, false
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if token.Expired(time.Now()) {
		obs.CountAuthFailure("token")
		apiError(w, r, "no_token", false)
		return nil, false
	}
	return token, true
}

// auditContext enriches the request context with the authenticated identities.
func auditContext(r *http.Request, clientKey, userBuid string) *http.Request {
	ctx := audit.WithClient(r.Context(), clientKey)
	ctx = audit.WithActor(ctx, userBuid)
	return r.WithContext(ctx)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
