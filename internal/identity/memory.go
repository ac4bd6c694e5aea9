package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory implements Store in process, for tests and DSN-less development.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]*User
	orgs      map[string]*Organization
	orgOrder  []string
	teams     map[string]*Team
	teamOrder []string
	members   map[string][]string // team buid -> member user buids
	clients   map[string]*Client
	tokens    map[string]*Token
	sessions  map[string]*Session
	userPerms map[string]string // client|user -> space-separated permissions
	teamPerms map[string]string // client|team -> space-separated permissions
	emails    map[string][]EmailAddress
	phones    map[string][]PhoneNumber
	extids    map[string][]ExternalID
	now       func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]*User),
		orgs:      make(map[string]*Organization),
		teams:     make(map[string]*Team),
		members:   make(map[string][]string),
		clients:   make(map[string]*Client),
		tokens:    make(map[string]*Token),
		sessions:  make(map[string]*Session),
		userPerms: make(map[string]string),
		teamPerms: make(map[string]string),
		emails:    make(map[string][]EmailAddress),
		phones:    make(map[string][]PhoneNumber),
		extids:    make(map[string][]ExternalID),
		now:       time.Now,
	}
}

func grantKey(clientBuid, subjectBuid string) string { return clientBuid + "|" + subjectBuid }

// AddUser registers a user.
func (m *Memory) AddUser(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Buid] = u
}

// AddOrganization registers an organization.
func (m *Memory) AddOrganization(o *Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[o.Buid]; !ok {
		m.orgOrder = append(m.orgOrder, o.Buid)
	}
	m.orgs[o.Buid] = o
}

// AddTeam registers a team and its direct members.
func (m *Memory) AddTeam(t *Team, memberBuids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[t.Buid]; !ok {
		m.teamOrder = append(m.teamOrder, t.Buid)
	}
	m.teams[t.Buid] = t
	m.members[t.Buid] = append(m.members[t.Buid], memberBuids...)
}

// AddClient registers a client by its public key.
func (m *Memory) AddClient(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.Buid] = c
}

// AddToken registers an active token, replacing any prior token for the same
// (user, client) pair — mirroring the storage-layer uniqueness rule.
func (m *Memory) AddToken(t *Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.UserBuid != "" {
		for access, prior := range m.tokens {
			if prior.UserBuid == t.UserBuid && prior.ClientBuid == t.ClientBuid {
				delete(m.tokens, access)
			}
		}
	}
	m.tokens[t.Access] = t
}

// AddSession registers a session.
func (m *Memory) AddSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Buid] = s
}

// SetUserPermissions stores a direct (client, user) grant.
func (m *Memory) SetUserPermissions(clientBuid, userBuid, permissions string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userPerms[grantKey(clientBuid, userBuid)] = permissions
}

// SetTeamPermissions stores a (client, team) grant.
func (m *Memory) SetTeamPermissions(clientBuid, teamBuid, permissions string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teamPerms[grantKey(clientBuid, teamBuid)] = permissions
}

// AddEmail appends a known address for a user.
func (m *Memory) AddEmail(userBuid string, e EmailAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[userBuid] = append(m.emails[userBuid], e)
}

// AddPhone appends a known number for a user.
func (m *Memory) AddPhone(userBuid string, p PhoneNumber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phones[userBuid] = append(m.phones[userBuid], p)
}

// AddExternalID links an external login provider record to a user.
func (m *Memory) AddExternalID(userBuid string, e ExternalID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extids[userBuid] = append(m.extids[userBuid], e)
}

func (m *Memory) UserByBuid(_ context.Context, buid string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[buid]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UsersByBuids(ctx context.Context, buids []string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*User
	for _, buid := range buids {
		if u, ok := m.users[buid]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Memory) UserByName(_ context.Context, name string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == name || u.Email == name {
			return u, nil
		}
	}
	for userBuid, ids := range m.extids {
		for _, ext := range ids {
			if ext.Username == name {
				if u, ok := m.users[userBuid]; ok {
					return u, nil
				}
			}
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) AutocompleteUsers(_ context.Context, q string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q = strings.ToLower(q)
	var out []*User
	for _, u := range m.users {
		if strings.HasPrefix(strings.ToLower(u.Username), q) ||
			strings.HasPrefix(strings.ToLower(u.Fullname), q) ||
			strings.HasPrefix(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Buid < out[j].Buid })
	return out, nil
}

func (m *Memory) OrganizationByBuid(_ context.Context, buid string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[buid]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *Memory) OrganizationsByBuids(_ context.Context, buids []string) ([]*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Organization
	for _, buid := range buids {
		if o, ok := m.orgs[buid]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Memory) OrganizationsOwned(_ context.Context, userBuid string) ([]*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Organization
	for _, buid := range m.orgOrder {
		org := m.orgs[buid]
		if org.OwnersTeamBuid == "" {
			continue
		}
		if m.isMemberLocked(org.OwnersTeamBuid, userBuid) {
			out = append(out, org)
		}
	}
	return out, nil
}

func (m *Memory) OrganizationsMemberOf(_ context.Context, userBuid string) ([]*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Organization
	for _, orgBuid := range m.orgOrder {
		org := m.orgs[orgBuid]
		for _, teamBuid := range m.teamOrder {
			team := m.teams[teamBuid]
			if team.OrgBuid == orgBuid && m.isMemberLocked(teamBuid, userBuid) {
				out = append(out, org)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) TeamsForUser(_ context.Context, userBuid string) ([]*Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Team
	for _, teamBuid := range m.teamOrder {
		if m.isMemberLocked(teamBuid, userBuid) {
			out = append(out, m.teams[teamBuid])
		}
	}
	return out, nil
}

func (m *Memory) TeamsForOrganization(_ context.Context, orgBuid string) ([]*Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Team
	for _, teamBuid := range m.teamOrder {
		if m.teams[teamBuid].OrgBuid == orgBuid {
			out = append(out, m.teams[teamBuid])
		}
	}
	return out, nil
}

func (m *Memory) ClientByKey(_ context.Context, key string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[key]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *Memory) TokenByAccess(_ context.Context, access string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[access]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *Memory) UserPermissions(_ context.Context, clientBuid, userBuid string) ([]string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.userPerms[grantKey(clientBuid, userBuid)]
	if !ok {
		return nil, false, nil
	}
	return strings.Fields(raw), true, nil
}

func (m *Memory) TeamPermissions(_ context.Context, clientBuid, teamBuid string) ([]string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.teamPerms[grantKey(clientBuid, teamBuid)]
	if !ok {
		return nil, false, nil
	}
	return strings.Fields(raw), true, nil
}

func (m *Memory) UserEmails(_ context.Context, userBuid string) ([]EmailAddress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EmailAddress{}, m.emails[userBuid]...), nil
}

func (m *Memory) UserPhones(_ context.Context, userBuid string) ([]PhoneNumber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]PhoneNumber{}, m.phones[userBuid]...), nil
}

func (m *Memory) ExternalIDs(_ context.Context, userBuid string) ([]ExternalID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ExternalID{}, m.extids[userBuid]...), nil
}

func (m *Memory) SessionByBuid(_ context.Context, buid string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[buid]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Memory) TouchSession(_ context.Context, sessionBuid, clientBuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionBuid]
	if !ok {
		return ErrNotFound
	}
	s.AccessedAt = m.now().UTC()
	s.LastClientBuid = clientBuid
	return nil
}

func (m *Memory) UpdateUserAvatar(_ context.Context, userBuid, avatar string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userBuid]
	if !ok {
		return ErrNotFound
	}
	u.Avatar = avatar
	return nil
}

// isMemberLocked requires at least a read lock.
func (m *Memory) isMemberLocked(teamBuid, userBuid string) bool {
	for _, member := range m.members[teamBuid] {
		if member == userBuid {
			return true
		}
	}
	return false
}

var _ Store = (*Memory)(nil)
