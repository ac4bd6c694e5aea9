package identity

import (
	"context"

	"lastid.org/internal/scope"
)

// Document is the JSON-shaped result of a projection. Keys appear only when
// the requesting scope granted the corresponding topic.
type Document = map[string]any

// UserInfoProjector produces the minimal disclosed profile document for a
// (user, client, scope) triple. Each topic check is independent; a request
// may carry zero, some, or all topics.
type UserInfoProjector struct {
	store    Store
	resolver *PermissionResolver
}

// NewUserInfoProjector constructs a projector backed by store.
func NewUserInfoProjector(store Store, resolver *PermissionResolver) *UserInfoProjector {
	return &UserInfoProjector{store: store, resolver: resolver}
}

// Project computes the disclosure document for user as requested by client
// under scopes. sessionID, when non-empty, is echoed regardless of scope.
// When includePermissions is set the resolved permission list is attached
// under "permissions" (possibly empty, never absent).
func (p *UserInfoProjector) Project(ctx context.Context, user *User, client *Client, scopes scope.Set, includePermissions bool, sessionID string) (Document, error) {
	info := Document{}

	if scopes.Grants("id") {
		oldids := make([]string, 0, len(user.OldIDs))
		olduuids := make([]string, 0, len(user.OldIDs))
		for _, old := range user.OldIDs {
			oldids = append(oldids, old.Buid)
			olduuids = append(olduuids, old.UUID)
		}
		info["userid"] = user.Buid
		info["buid"] = user.Buid
		info["uuid"] = user.UUID
		info["username"] = user.Username
		info["fullname"] = user.Fullname
		info["timezone"] = user.Timezone
		info["avatar"] = user.Avatar
		info["oldids"] = oldids
		info["olduuids"] = olduuids
	}

	if sessionID != "" {
		info["sessionid"] = sessionID
	}

	if scopes.Grants("email") {
		info["email"] = user.Email
	}
	if scopes.Grants("phone") {
		info["phone"] = user.Phone
	}

	if scopes.Grants("organizations") {
		owned, err := p.store.OrganizationsOwned(ctx, user.Buid)
		if err != nil {
			return nil, err
		}
		member, err := p.store.OrganizationsMemberOf(ctx, user.Buid)
		if err != nil {
			return nil, err
		}
		info["organizations"] = Document{
			"owner":  orgEntries(owned),
			"member": orgEntries(member),
			"all":    orgEntries(unionOrgs(owned, member)),
		}
	}

	teams := newTeamArena()
	if scopes.GrantsAny("organizations", "teams") {
		direct, err := p.store.TeamsForUser(ctx, user.Buid)
		if err != nil {
			return nil, err
		}
		for _, team := range direct {
			teams.upsert(team, true)
		}
	}
	if scopes.Grants("teams") {
		// Owners of an organization see every team in it, surfaced as
		// member:false unless they joined directly.
		owned, err := p.store.OrganizationsOwned(ctx, user.Buid)
		if err != nil {
			return nil, err
		}
		for _, org := range owned {
			orgTeams, err := p.store.TeamsForOrganization(ctx, org.Buid)
			if err != nil {
				return nil, err
			}
			for _, team := range orgTeams {
				teams.upsert(team, false)
			}
		}
	}
	if !teams.empty() {
		info["teams"] = teams.list()
	}

	if includePermissions {
		perms, err := p.resolver.Resolve(ctx, client, user)
		if err != nil {
			return nil, err
		}
		info["permissions"] = perms
	}
	return info, nil
}

func orgEntries(orgs []*Organization) []Document {
	out := make([]Document, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, Document{
			"userid": org.Buid,
			"buid":   org.Buid,
			"uuid":   org.UUID,
			"name":   org.Name,
			"title":  org.Title,
		})
	}
	return out
}

func unionOrgs(owned, member []*Organization) []*Organization {
	seen := make(map[string]struct{}, len(owned)+len(member))
	out := make([]*Organization, 0, len(owned)+len(member))
	for _, org := range append(append([]*Organization{}, owned...), member...) {
		if _, ok := seen[org.Buid]; ok {
			continue
		}
		seen[org.Buid] = struct{}{}
		out = append(out, org)
	}
	return out
}

// teamArena keys team records by buid so a team seen through both direct
// membership and ownership appears once. Direct membership wins.
type teamArena struct {
	order   []string
	records map[string]Document
}

func newTeamArena() *teamArena {
	return &teamArena{records: make(map[string]Document)}
}

func (a *teamArena) upsert(team *Team, member bool) {
	if _, ok := a.records[team.Buid]; ok {
		return
	}
	a.order = append(a.order, team.Buid)
	a.records[team.Buid] = Document{
		"userid":   team.Buid,
		"buid":     team.Buid,
		"uuid":     team.UUID,
		"title":    team.Title,
		"org":      team.OrgBuid,
		"org_uuid": team.OrgUUID,
		"owners":   team.Owners,
		"member":   member,
	}
}

func (a *teamArena) empty() bool { return len(a.order) == 0 }

func (a *teamArena) list() []Document {
	out := make([]Document, 0, len(a.order))
	for _, buid := range a.order {
		out = append(out, a.records[buid])
	}
	return out
}
