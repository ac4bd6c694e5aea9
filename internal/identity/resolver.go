package identity

import (
	"context"
	"sort"
)

// PermissionResolver computes the effective access-permission set for a
// (client, user) pair.
type PermissionResolver struct {
	store Store
}

// NewPermissionResolver constructs a resolver over the given store.
func NewPermissionResolver(store Store) *PermissionResolver {
	return &PermissionResolver{store: store}
}

// Resolve returns the sorted effective permissions for user against client.
// User-owned clients use the direct (client, user) grant; all other clients
// take the union of (client, team) grants over the user's teams. A missing
// grant record and an empty grant both yield an empty, non-nil slice, never
// an error; errors surface only for storage faults.
func (r *PermissionResolver) Resolve(ctx context.Context, client *Client, user *User) ([]string, error) {
	if client.UserOwned() {
		perms, _, err := r.store.UserPermissions(ctx, client.Buid, user.Buid)
		if err != nil {
			return nil, err
		}
		return sortedUnique(perms), nil
	}

	teams, err := r.store.TeamsForUser(ctx, user.Buid)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, team := range teams {
		perms, ok, err := r.store.TeamPermissions(ctx, client.Buid, team.Buid)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, p := range perms {
			if p != "" {
				set[p] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func sortedUnique(values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
