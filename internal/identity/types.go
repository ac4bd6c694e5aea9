package identity

import (
	"time"

	"lastid.org/internal/scope"
)

// MergedID records the identifiers of an older principal that was merged into
// this one. Merges append; a principal's own buid never changes.
type MergedID struct {
	Buid string
	UUID string
}

// User is a human principal.
type User struct {
	Buid     string
	UUID     string
	Username string
	Fullname string
	Timezone string
	Avatar   string
	Email    string // primary address
	Phone    string // primary number
	OldIDs   []MergedID
}

// Pickername is the human-facing label used in lookup responses.
func (u *User) Pickername() string {
	if u.Username != "" {
		return u.Fullname + " (@" + u.Username + ")"
	}
	return u.Fullname
}

// EmailAddress is one of a user's addresses. Private addresses are withheld
// from the all-addresses disclosure.
type EmailAddress struct {
	Address string
	Private bool
}

// PhoneNumber is one of a user's numbers.
type PhoneNumber struct {
	Number  string
	Private bool
}

// Organization is a principal that owns teams and clients.
type Organization struct {
	Buid           string
	UUID           string
	Name           string
	Title          string
	OwnersTeamBuid string
}

// Pickername mirrors User.Pickername for organizations.
func (o *Organization) Pickername() string {
	if o.Name != "" {
		return o.Title + " (~" + o.Name + ")"
	}
	return o.Title
}

// Team belongs to exactly one organization. Owners is true when this team is
// the organization's designated owners team.
type Team struct {
	Buid    string
	UUID    string
	Title   string
	OrgBuid string
	OrgUUID string
	Owners  bool
}

// Client is a registered application. A client is either user-owned
// (UserBuid set) or governed by an organization.
type Client struct {
	Buid       string // public client id presented as "key"
	Title      string
	Website    string
	Namespace  string // prefix for the client's own resource vocabulary; may be empty
	Trusted    bool
	SecretHash string // bcrypt hash of the client secret
	UserBuid   string // controlling user for user-owned clients
	OrgBuid    string

	// Owner identity, resolved by the store at load time.
	OwnerBuid  string
	OwnerUUID  string
	OwnerTitle string
}

// UserOwned reports whether the client is controlled by a single user rather
// than an organization.
func (c *Client) UserOwned() bool { return c.UserBuid != "" }

// Token binds an effective scope to a (user, client) pair, or to a client
// alone when UserBuid is empty. Token records are read-only here; issuance
// and revocation happen elsewhere. The storage layer enforces at most one
// active token per (user, client).
type Token struct {
	Access     string // the opaque token string
	UserBuid   string
	ClientBuid string
	Scope      []string // effective scope actually granted
	CreatedAt  time.Time
	ExpiresAt  time.Time // zero means no expiry
}

// EffectiveScope returns the granted scope as a queryable set.
func (t *Token) EffectiveScope() scope.Set { return scope.New(t.Scope...) }

// Expired reports whether the token's validity window has passed.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Session is an interactive user session, visible here only for
// session/verify. Sudo is an elevated, recently re-confirmed state.
type Session struct {
	Buid           string
	UserBuid       string
	UserUUID       string
	ExpiresAt      time.Time
	SudoUntil      time.Time
	AccessedAt     time.Time
	LastClientBuid string
}

// HasSudo reports whether the session is currently elevated.
func (s *Session) HasSudo(now time.Time) bool {
	return !s.SudoUntil.IsZero() && now.Before(s.SudoUntil)
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ExternalID links a user to an external login provider. OAuth material is
// disclosed only to trusted clients.
type ExternalID struct {
	Service          string
	UserID           string
	Username         string
	OAuthToken       string
	OAuthTokenSecret string
	OAuthTokenType   string
}
