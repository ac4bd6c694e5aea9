package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"lastid.org/internal/identity"
)

// userRecord is the wire shape of a user lookup result.
func userRecord(u *identity.User) map[string]any {
	oldids := make([]string, 0, len(u.OldIDs))
	olduuids := make([]string, 0, len(u.OldIDs))
	for _, old := range u.OldIDs {
		oldids = append(oldids, old.Buid)
		olduuids = append(olduuids, old.UUID)
	}
	return map[string]any{
		"type":     "user",
		"userid":   u.Buid,
		"buid":     u.Buid,
		"uuid":     u.UUID,
		"name":     u.Username,
		"title":    u.Fullname,
		"label":    u.Pickername(),
		"timezone": u.Timezone,
		"oldids":   oldids,
		"olduuids": olduuids,
	}
}

func orgRecord(o *identity.Organization) map[string]any {
	return map[string]any{
		"type":   "organization",
		"userid": o.Buid,
		"buid":   o.Buid,
		"uuid":   o.UUID,
		"name":   o.Name,
		"title":  o.Title,
		"label":  o.Pickername(),
	}
}

// handleUserGetByUserid returns the user or organization with the given buid.
func (a *API) handleUserGetByUserid(w http.ResponseWriter, r *http.Request) {
	client, ok := a.authenticateClient(w, r)
	if !ok {
		return
	}
	r = auditContext(r, client.Buid, "")

	buid := strings.TrimSpace(r.FormValue("userid"))
	if buid == "" {
		apiError(w, r, "no_userid_provided", true)
		return
	}
	user, err := a.store.UserByBuid(r.Context(), buid)
	if err == nil {
		apiResult(w, r, userRecord(user), true)
		return
	}
	if !errors.Is(err, identity.ErrNotFound) {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	org, err := a.store.OrganizationByBuid(r.Context(), buid)
	if err == nil {
		apiResult(w, r, orgRecord(org), true)
		return
	}
	if !errors.Is(err, identity.ErrNotFound) {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiError(w, r, "not_found", true)
}

// handleUserGetByUserids is the batched variant, returning every matching
// user and organization.
func (a *API) handleUserGetByUserids(w http.ResponseWriter, r *http.Request) {
	client, ok := a.authenticateClient(w, r)
	if !ok {
		return
	}
	r = auditContext(r, client.Buid, "")

	if err := r.ParseForm(); err != nil {
		requestError(w, r, "bad_request", "malformed form data")
		return
	}
	buids := r.Form["userid"]
	if len(buids) == 0 {
		apiError(w, r, "no_userid_provided", true)
		return
	}

	users, err := a.store.UsersByBuids(r.Context(), buids)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	orgs, err := a.store.OrganizationsByBuids(r.Context(), buids)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	results := make([]map[string]any, 0, len(users)+len(orgs))
	for _, u := range users {
		results = append(results, userRecord(u))
	}
	for _, o := range orgs {
		results = append(results, orgRecord(o))
	}
	apiResult(w, r, map[string]any{"results": results}, true)
}

// handleUserGet looks a user up by username, email address or external
// service username.
func (a *API) handleUserGet(w http.ResponseWriter, r *http.Request) {
	client, ok := a.authenticateClient(w, r)
	if !ok {
		return
	}
	r = auditContext(r, client.Buid, "")

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		apiError(w, r, "no_name_provided", false)
		return
	}
	user, err := a.store.UserByName(r.Context(), name)
	if errors.Is(err, identity.ErrNotFound) {
		apiError(w, r, "not_found", false)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiResult(w, r, userRecord(user), false)
}

// handleUserGetUsers is the batched name lookup, de-duplicated by buid.
func (a *API) handleUserGetUsers(w http.ResponseWriter, r *http.Request) {
	client, ok := a.authenticateClient(w, r)
	if !ok {
		return
	}
	r = auditContext(r, client.Buid, "")

	if err := r.ParseForm(); err != nil {
		requestError(w, r, "bad_request", "malformed form data")
		return
	}
	names := r.Form["name"]
	if len(names) == 0 {
		apiError(w, r, "no_name_provided", false)
		return
	}

	seen := make(map[string]bool)
	results := make([]map[string]any, 0, len(names))
	for _, name := range names {
		user, err := a.store.UserByName(r.Context(), name)
		if errors.Is(err, identity.ErrNotFound) {
			continue
		}
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if seen[user.Buid] {
			continue
		}
		seen[user.Buid] = true
		results = append(results, userRecord(user))
	}
	if len(results) == 0 {
		apiError(w, r, "not_found", false)
		return
	}
	apiResult(w, r, map[string]any{"results": results}, false)
}

// handleUserAutocomplete returns users matching a prefix search term.
func (a *API) handleUserAutocomplete(w http.ResponseWriter, r *http.Request) {
	client, ok := a.authenticateClient(w, r)
	if !ok {
		return
	}
	r = auditContext(r, client.Buid, "")

	q := strings.TrimSpace(r.FormValue("q"))
	if q == "" {
		apiError(w, r, "no_query_provided", true)
		return
	}
	users, err := a.store.AutocompleteUsers(r.Context(), q)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	results := make([]map[string]any, 0, len(users))
	for _, u := range users {
		results = append(results, map[string]any{
			"userid": u.Buid,
			"buid":   u.Buid,
			"uuid":   u.UUID,
			"name":   u.Username,
			"title":  u.Fullname,
			"label":  u.Pickername(),
		})
	}
	apiResult(w, r, map[string]any{"users": results}, true)
}
