package identity

import "context"

// Store describes the persistence operations the core evaluates policy over.
// Reads must come from a consistent snapshot per request; the two writes
// (session touch, avatar update) are single-record and atomic.
type Store interface {
	// Principal lookups.
	UserByBuid(ctx context.Context, buid string) (*User, error)
	UsersByBuids(ctx context.Context, buids []string) ([]*User, error)
	UserByName(ctx context.Context, name string) (*User, error)
	AutocompleteUsers(ctx context.Context, q string) ([]*User, error)
	OrganizationByBuid(ctx context.Context, buid string) (*Organization, error)
	OrganizationsByBuids(ctx context.Context, buids []string) ([]*Organization, error)

	// Membership graph.
	OrganizationsOwned(ctx context.Context, userBuid string) ([]*Organization, error)
	OrganizationsMemberOf(ctx context.Context, userBuid string) ([]*Organization, error)
	TeamsForUser(ctx context.Context, userBuid string) ([]*Team, error)
	TeamsForOrganization(ctx context.Context, orgBuid string) ([]*Team, error)

	// Clients and tokens.
	ClientByKey(ctx context.Context, key string) (*Client, error)
	TokenByAccess(ctx context.Context, access string) (*Token, error)

	// Permission grants. The bool reports whether a grant record exists;
	// callers currently treat a missing record and an empty grant alike.
	UserPermissions(ctx context.Context, clientBuid, userBuid string) ([]string, bool, error)
	TeamPermissions(ctx context.Context, clientBuid, teamBuid string) ([]string, bool, error)

	// Contact and external-login details.
	UserEmails(ctx context.Context, userBuid string) ([]EmailAddress, error)
	UserPhones(ctx context.Context, userBuid string) ([]PhoneNumber, error)
	ExternalIDs(ctx context.Context, userBuid string) ([]ExternalID, error)

	// Sessions.
	SessionByBuid(ctx context.Context, buid string) (*Session, error)
	TouchSession(ctx context.Context, sessionBuid, clientBuid string) error

	// The single profile mutation granted to the resource layer.
	UpdateUserAvatar(ctx context.Context, userBuid, avatar string) error
}
