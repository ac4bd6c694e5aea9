package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

// Open connects to PostgreSQL and returns a configured store.
func Open(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing connection pool.
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

const userColumns = `buid, uuid, username, fullname, timezone, avatar, email, phone`

func (s *PGStore) scanUser(ctx context.Context, row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.Buid, &u.UUID, &u.Username, &u.Fullname, &u.Timezone, &u.Avatar, &u.Email, &u.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadOldIDs(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) loadOldIDs(ctx context.Context, u *User) error {
	rows, err := s.db.QueryContext(ctx, `
		select old_buid, old_uuid from user_oldids
		where user_buid=$1 order by position asc
	`, u.Buid)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var old MergedID
		if err := rows.Scan(&old.Buid, &old.UUID); err != nil {
			return err
		}
		u.OldIDs = append(u.OldIDs, old)
	}
	return rows.Err()
}

func (s *PGStore) UserByBuid(ctx context.Context, buid string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where buid=$1`, buid)
	return s.scanUser(ctx, row)
}

func (s *PGStore) UsersByBuids(ctx context.Context, buids []string) ([]*User, error) {
	var out []*User
	for _, buid := range buids {
		u, err := s.UserByBuid(ctx, buid)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *PGStore) UserByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		select distinct u.buid, u.uuid, u.username, u.fullname, u.timezone, u.avatar, u.email, u.phone
		from users u
		left join user_emails e on e.user_buid = u.buid
		left join user_externalids x on x.user_buid = u.buid
		where u.username=$1 or u.email=$1 or e.address=$1 or x.ext_username=$1
		limit 1
	`, name)
	return s.scanUser(ctx, row)
}

func (s *PGStore) AutocompleteUsers(ctx context.Context, q string) ([]*User, error) {
	pattern := strings.ToLower(q) + "%"
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+` from users
		where lower(username) like $1 or lower(fullname) like $1 or lower(email) like $1
		order by buid asc
		limit 25
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Buid, &u.UUID, &u.Username, &u.Fullname, &u.Timezone, &u.Avatar, &u.Email, &u.Phone); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

const orgColumns = `buid, uuid, name, title, coalesce(owners_team_buid,'')`

func scanOrg(row interface{ Scan(...any) error }) (*Organization, error) {
	var o Organization
	if err := row.Scan(&o.Buid, &o.UUID, &o.Name, &o.Title, &o.OwnersTeamBuid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *PGStore) OrganizationByBuid(ctx context.Context, buid string) (*Organization, error) {
	return scanOrg(s.db.QueryRowContext(ctx, `select `+orgColumns+` from organizations where buid=$1`, buid))
}

func (s *PGStore) OrganizationsByBuids(ctx context.Context, buids []string) ([]*Organization, error) {
	var out []*Organization
	for _, buid := range buids {
		o, err := s.OrganizationByBuid(ctx, buid)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *PGStore) queryOrgs(ctx context.Context, query string, args ...any) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PGStore) OrganizationsOwned(ctx context.Context, userBuid string) ([]*Organization, error) {
	return s.queryOrgs(ctx, `
		select o.buid, o.uuid, o.name, o.title, coalesce(o.owners_team_buid,'')
		from organizations o
		join team_members tm on tm.team_buid = o.owners_team_buid
		where tm.user_buid=$1
		order by o.buid asc
	`, userBuid)
}

func (s *PGStore) OrganizationsMemberOf(ctx context.Context, userBuid string) ([]*Organization, error) {
	return s.queryOrgs(ctx, `
		select distinct o.buid, o.uuid, o.name, o.title, coalesce(o.owners_team_buid,'')
		from organizations o
		join teams t on t.org_buid = o.buid
		join team_members tm on tm.team_buid = t.buid
		where tm.user_buid=$1
		order by o.buid asc
	`, userBuid)
}

const teamSelect = `
	select t.buid, t.uuid, t.title, t.org_buid, o.uuid,
	       (o.owners_team_buid = t.buid) as owners
	from teams t
	join organizations o on o.buid = t.org_buid`

func (s *PGStore) queryTeams(ctx context.Context, query string, args ...any) ([]*Team, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.Buid, &t.UUID, &t.Title, &t.OrgBuid, &t.OrgUUID, &t.Owners); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PGStore) TeamsForUser(ctx context.Context, userBuid string) ([]*Team, error) {
	return s.queryTeams(ctx, teamSelect+`
		join team_members tm on tm.team_buid = t.buid
		where tm.user_buid=$1
		order by t.buid asc
	`, userBuid)
}

func (s *PGStore) TeamsForOrganization(ctx context.Context, orgBuid string) ([]*Team, error) {
	return s.queryTeams(ctx, teamSelect+`
		where t.org_buid=$1
		order by t.buid asc
	`, orgBuid)
}

func (s *PGStore) ClientByKey(ctx context.Context, key string) (*Client, error) {
	var (
		c        Client
		userBuid sql.NullString
		orgBuid  sql.NullString
	)
	// Owner identity comes from the controlling user when present, else the
	// governing organization.
	err := s.db.QueryRowContext(ctx, `
		select c.buid, c.title, c.website, coalesce(c.namespace,''), c.trusted, c.secret_hash,
		       c.user_buid, c.org_buid,
		       coalesce(u.buid, o.buid, ''), coalesce(u.uuid, o.uuid, ''),
		       coalesce(u.fullname, o.title, '')
		from clients c
		left join users u on u.buid = c.user_buid
		left join organizations o on o.buid = c.org_buid
		where c.buid=$1
	`, key).Scan(&c.Buid, &c.Title, &c.Website, &c.Namespace, &c.Trusted, &c.SecretHash,
		&userBuid, &orgBuid, &c.OwnerBuid, &c.OwnerUUID, &c.OwnerTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.UserBuid = userBuid.String
	c.OrgBuid = orgBuid.String
	return &c, nil
}

func (s *PGStore) TokenByAccess(ctx context.Context, access string) (*Token, error) {
	var (
		t         Token
		userBuid  sql.NullString
		rawScope  string
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select access, user_buid, client_buid, scope, created_at, expires_at
		from tokens where access=$1
	`, access).Scan(&t.Access, &userBuid, &t.ClientBuid, &rawScope, &t.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.UserBuid = userBuid.String
	t.Scope = strings.Fields(rawScope)
	if expiresAt.Valid {
		t.ExpiresAt = expiresAt.Time
	}
	return &t, nil
}

func (s *PGStore) UserPermissions(ctx context.Context, clientBuid, userBuid string) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		select permissions from client_user_permissions
		where client_buid=$1 and user_buid=$2
	`, clientBuid, userBuid).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return strings.Fields(raw), true, nil
}

func (s *PGStore) TeamPermissions(ctx context.Context, clientBuid, teamBuid string) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		select permissions from client_team_permissions
		where client_buid=$1 and team_buid=$2
	`, clientBuid, teamBuid).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return strings.Fields(raw), true, nil
}

func (s *PGStore) UserEmails(ctx context.Context, userBuid string) ([]EmailAddress, error) {
	rows, err := s.db.QueryContext(ctx, `
		select address, private from user_emails
		where user_buid=$1 order by position asc
	`, userBuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EmailAddress
	for rows.Next() {
		var e EmailAddress
		if err := rows.Scan(&e.Address, &e.Private); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) UserPhones(ctx context.Context, userBuid string) ([]PhoneNumber, error) {
	rows, err := s.db.QueryContext(ctx, `
		select number, private from user_phones
		where user_buid=$1 order by position asc
	`, userBuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PhoneNumber
	for rows.Next() {
		var p PhoneNumber
		if err := rows.Scan(&p.Number, &p.Private); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) ExternalIDs(ctx context.Context, userBuid string) ([]ExternalID, error) {
	rows, err := s.db.QueryContext(ctx, `
		select service, ext_userid, ext_username, oauth_token, oauth_token_secret, oauth_token_type
		from user_externalids where user_buid=$1 order by service asc
	`, userBuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExternalID
	for rows.Next() {
		var e ExternalID
		if err := rows.Scan(&e.Service, &e.UserID, &e.Username, &e.OAuthToken, &e.OAuthTokenSecret, &e.OAuthTokenType); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) SessionByBuid(ctx context.Context, buid string) (*Session, error) {
	var (
		sess       Session
		sudoUntil  sql.NullTime
		accessedAt sql.NullTime
		lastClient sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select s.buid, s.user_buid, u.uuid, s.expires_at, s.sudo_until, s.accessed_at, s.last_client_buid
		from sessions s
		join users u on u.buid = s.user_buid
		where s.buid=$1
	`, buid).Scan(&sess.Buid, &sess.UserBuid, &sess.UserUUID, &sess.ExpiresAt, &sudoUntil, &accessedAt, &lastClient)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sudoUntil.Valid {
		sess.SudoUntil = sudoUntil.Time
	}
	if accessedAt.Valid {
		sess.AccessedAt = accessedAt.Time
	}
	sess.LastClientBuid = lastClient.String
	return &sess, nil
}

func (s *PGStore) TouchSession(ctx context.Context, sessionBuid, clientBuid string) error {
	res, err := s.db.ExecContext(ctx, `
		update sessions set accessed_at = now(), last_client_buid = $2
		where buid=$1
	`, sessionBuid, clientBuid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdateUserAvatar(ctx context.Context, userBuid, avatar string) error {
	res, err := s.db.ExecContext(ctx, `update users set avatar=$2 where buid=$1`, userBuid, avatar)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
