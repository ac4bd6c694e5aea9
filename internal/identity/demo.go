package identity

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"lastid.org/internal/ids"
)

// DemoSecret is the client secret seeded by SeedDemo.
const DemoSecret = "password"

// DemoFixture reports the identifiers generated by SeedDemo so they can be
// printed at startup and used against a development server.
type DemoFixture struct {
	UserBuid  string
	OrgBuid   string
	ClientKey string
	Token     string
	SessionID string
}

// SeedDemo populates a Memory store with a small development fixture: one
// user, one organization with an owners team, one trusted client under the
// "demo" namespace, an active session and an access token. All identifiers
// are freshly generated buid/uuid pairs.
func SeedDemo(m *Memory) (DemoFixture, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoSecret), bcrypt.MinCost)
	if err != nil {
		return DemoFixture{}, err
	}

	userBuid, userUUID := newPrincipalID()
	orgBuid, orgUUID := newPrincipalID()
	teamBuid, teamUUID := newPrincipalID()
	clientKey, _ := newPrincipalID()
	sessionBuid, _ := newPrincipalID()
	token := ids.Buid()
	now := time.Now()

	m.AddUser(&User{
		Buid:     userBuid,
		UUID:     userUUID,
		Username: "demo",
		Fullname: "Demo User",
		Timezone: "UTC",
		Email:    "demo@example.com",
	})
	m.AddOrganization(&Organization{
		Buid:           orgBuid,
		UUID:           orgUUID,
		Name:           "demo-org",
		Title:          "Demo Org",
		OwnersTeamBuid: teamBuid,
	})
	m.AddTeam(&Team{
		Buid:    teamBuid,
		UUID:    teamUUID,
		Title:   "Owners",
		OrgBuid: orgBuid,
		OrgUUID: orgUUID,
		Owners:  true,
	}, userBuid)
	m.AddClient(&Client{
		Buid:       clientKey,
		Title:      "Demo Client",
		Website:    "https://demo.example.com",
		Namespace:  "demo",
		Trusted:    true,
		SecretHash: string(hash),
		OrgBuid:    orgBuid,
		OwnerBuid:  orgBuid,
		OwnerUUID:  orgUUID,
		OwnerTitle: "Demo Org (~demo-org)",
	})
	m.SetTeamPermissions(clientKey, teamBuid, "siteadmin")
	m.AddToken(&Token{
		Access:     token,
		UserBuid:   userBuid,
		ClientBuid: clientKey,
		Scope:      []string{"id", "email", "organizations", "teams", "demo:*"},
		CreatedAt:  now,
	})
	m.AddSession(&Session{
		Buid:      sessionBuid,
		UserBuid:  userBuid,
		UserUUID:  userUUID,
		ExpiresAt: now.Add(24 * time.Hour),
	})

	return DemoFixture{
		UserBuid:  userBuid,
		OrgBuid:   orgBuid,
		ClientKey: clientKey,
		Token:     token,
		SessionID: sessionBuid,
	}, nil
}

// newPrincipalID generates a fresh uuid and its 22-character buid form.
func newPrincipalID() (buid, canonical string) {
	canonical = uuid.NewString()
	buid, _ = ids.UUIDToBuid(canonical)
	return buid, canonical
}
