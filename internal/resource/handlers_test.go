package resource

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"testing"
	"time"

	"lastid.org/internal/identity"
)

func seedHandlers(t *testing.T) (*Handlers, *identity.Memory) {
	t.Helper()
	store := identity.NewMemory()
	store.AddUser(&identity.User{
		Buid:     "u-dana",
		UUID:     "55555555-5555-4555-8555-555555555555",
		Username: "dana",
		Fullname: "Dana Diaz",
		Timezone: "Asia/Kolkata",
		Email:    "dana@example.com",
		Phone:    "+15550101",
	})
	store.AddEmail("u-dana", identity.EmailAddress{Address: "dana@example.com"})
	store.AddEmail("u-dana", identity.EmailAddress{Address: "dana@work.example.com"})
	store.AddEmail("u-dana", identity.EmailAddress{Address: "secret@example.com", Private: true})
	store.AddPhone("u-dana", identity.PhoneNumber{Number: "+15550101"})
	store.AddPhone("u-dana", identity.PhoneNumber{Number: "+15550199", Private: true})
	store.AddExternalID("u-dana", identity.ExternalID{
		Service:    "twitter",
		UserID:     "12345",
		Username:   "dana_t",
		OAuthToken: "tw-token",
	})
	store.AddExternalID("u-dana", identity.ExternalID{
		Service:        "google",
		UserID:         "dana@gmail.example.com",
		Username:       "dana@gmail.example.com",
		OAuthToken:     "goog-token",
		OAuthTokenType: "Bearer",
	})
	resolver := identity.NewPermissionResolver(store)
	projector := identity.NewUserInfoProjector(store, resolver)
	return NewHandlers(store, projector), store
}

func handlerRequest(store *identity.Memory, scopes []string, args url.Values) *Request {
	user, _ := store.UserByBuid(context.Background(), "u-dana")
	if args == nil {
		args = url.Values{}
	}
	return &Request{
		Token: &identity.Token{
			Access:     "tok-h",
			UserBuid:   "u-dana",
			ClientBuid: "ck-h",
			Scope:      scopes,
			CreatedAt:  time.Now(),
		},
		Client: &identity.Client{Buid: "ck-h", Title: "Handler App", Trusted: true},
		User:   user,
		Args:   args,
	}
}

func TestIDMinimal(t *testing.T) {
	h, store := seedHandlers(t)
	doc, err := h.ID(context.Background(), handlerRequest(store, []string{"id", "email"}, nil))
	if err != nil {
		t.Fatalf("ID failed: %v", err)
	}
	if doc["userid"] != "u-dana" || doc["username"] != "dana" {
		t.Fatalf("unexpected identity fields: %v", doc)
	}
	if _, ok := doc["email"]; ok {
		t.Fatal("minimal projection must not include email")
	}
	if _, ok := doc["permissions"]; ok {
		t.Fatal("minimal projection must not include permissions")
	}
}

func TestIDAll(t *testing.T) {
	h, store := seedHandlers(t)
	req := handlerRequest(store, []string{"id", "email"}, url.Values{"all": {"1"}})
	doc, err := h.ID(context.Background(), req)
	if err != nil {
		t.Fatalf("ID failed: %v", err)
	}
	if doc["email"] != "dana@example.com" {
		t.Fatalf("expected email in full projection: %v", doc)
	}
	if _, ok := doc["permissions"]; !ok {
		t.Fatal("full projection must include permissions")
	}
}

func TestSessionVerifyActive(t *testing.T) {
	h, store := seedHandlers(t)
	store.AddSession(&identity.Session{
		Buid:      "s-1",
		UserBuid:  "u-dana",
		UserUUID:  "55555555-5555-4555-8555-555555555555",
		ExpiresAt: time.Now().Add(time.Hour),
		SudoUntil: time.Now().Add(10 * time.Minute),
	})
	req := handlerRequest(store, []string{"id"}, url.Values{"sessionid": {"s-1"}})
	doc, err := h.SessionVerify(context.Background(), req)
	if err != nil {
		t.Fatalf("SessionVerify failed: %v", err)
	}
	if doc["active"] != true || doc["sessionid"] != "s-1" || doc["userid"] != "u-dana" {
		t.Fatalf("unexpected document: %v", doc)
	}
	if doc["sudo"] != true {
		t.Fatalf("expected sudo session: %v", doc)
	}

	session, err := store.SessionByBuid(context.Background(), "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if session.LastClientBuid != "ck-h" {
		t.Fatalf("session not touched: %v", session.LastClientBuid)
	}
	if session.AccessedAt.IsZero() {
		t.Fatal("AccessedAt not updated")
	}

	// A repeat verification records a fresh touch and stays active.
	first := session.AccessedAt
	time.Sleep(2 * time.Millisecond)
	doc, err = h.SessionVerify(context.Background(), req)
	if err != nil {
		t.Fatalf("second SessionVerify failed: %v", err)
	}
	if doc["active"] != true {
		t.Fatalf("expected session still active: %v", doc)
	}
	session, err = store.SessionByBuid(context.Background(), "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if !session.AccessedAt.After(first) {
		t.Fatalf("second touch not recorded: %v vs %v", session.AccessedAt, first)
	}
}

func TestSessionVerifyDerivesUserUUID(t *testing.T) {
	h, store := seedHandlers(t)
	// 22 base64url zeros decode to the nil uuid.
	const buid = "AAAAAAAAAAAAAAAAAAAAAA"
	store.AddUser(&identity.User{Buid: buid, Username: "erin", Fullname: "Erin Evans"})
	store.AddSession(&identity.Session{
		Buid:      "s-derived",
		UserBuid:  buid,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	user, _ := store.UserByBuid(context.Background(), buid)
	req := &Request{
		Token: &identity.Token{
			Access:     "tok-erin",
			UserBuid:   buid,
			ClientBuid: "ck-h",
			Scope:      []string{"id"},
			CreatedAt:  time.Now(),
		},
		Client: &identity.Client{Buid: "ck-h", Title: "Handler App"},
		User:   user,
		Args:   url.Values{"sessionid": {"s-derived"}},
	}
	doc, err := h.SessionVerify(context.Background(), req)
	if err != nil {
		t.Fatalf("SessionVerify failed: %v", err)
	}
	if doc["active"] != true {
		t.Fatalf("expected active session: %v", doc)
	}
	if doc["user_uuid"] != "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("user_uuid not derived from buid: %v", doc["user_uuid"])
	}
}

func TestSessionVerifyInactive(t *testing.T) {
	h, store := seedHandlers(t)
	store.AddSession(&identity.Session{
		Buid:      "s-expired",
		UserBuid:  "u-dana",
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	store.AddSession(&identity.Session{
		Buid:      "s-other",
		UserBuid:  "u-somebody-else",
		ExpiresAt: time.Now().Add(time.Hour),
	})

	for _, sessionid := range []string{"s-missing", "s-expired", "s-other"} {
		req := handlerRequest(store, []string{"id"}, url.Values{"sessionid": {sessionid}})
		doc, err := h.SessionVerify(context.Background(), req)
		if err != nil {
			t.Fatalf("SessionVerify(%s) failed: %v", sessionid, err)
		}
		if doc["active"] != false {
			t.Fatalf("expected inactive for %s: %v", sessionid, doc)
		}
		if _, ok := doc["userid"]; ok {
			t.Fatalf("inactive response must not leak user identity: %v", doc)
		}
	}
}

func TestAvatarEdit(t *testing.T) {
	h, store := seedHandlers(t)

	req := handlerRequest(store, []string{"avatar/edit"}, url.Values{"avatar": {"ftp://example.com/a.png"}})
	_, err := h.AvatarEdit(context.Background(), req)
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = handlerRequest(store, []string{"avatar/edit"}, url.Values{"avatar": {"https://cdn.example.com/a.png"}})
	doc, err := h.AvatarEdit(context.Background(), req)
	if err != nil {
		t.Fatalf("AvatarEdit failed: %v", err)
	}
	if doc["avatar"] != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected document: %v", doc)
	}
	user, _ := store.UserByBuid(context.Background(), "u-dana")
	if user.Avatar != "https://cdn.example.com/a.png" {
		t.Fatalf("avatar not persisted: %q", user.Avatar)
	}
}

func TestEmailWithAll(t *testing.T) {
	h, store := seedHandlers(t)

	doc, err := h.Email(context.Background(), handlerRequest(store, []string{"email"}, nil))
	if err != nil {
		t.Fatalf("Email failed: %v", err)
	}
	if doc["email"] != "dana@example.com" {
		t.Fatalf("unexpected primary: %v", doc["email"])
	}
	if _, ok := doc["all"]; ok {
		t.Fatal("all list must be opt-in")
	}

	doc, err = h.Email(context.Background(), handlerRequest(store, []string{"email"}, url.Values{"all": {"true"}}))
	if err != nil {
		t.Fatalf("Email failed: %v", err)
	}
	all, ok := doc["all"].([]string)
	if !ok {
		t.Fatalf("all not a []string: %T", doc["all"])
	}
	want := []string{"dana@example.com", "dana@work.example.com"}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("private address leaked or missing: %v", all)
	}
}

func TestPhoneWithAll(t *testing.T) {
	h, store := seedHandlers(t)
	doc, err := h.Phone(context.Background(), handlerRequest(store, []string{"phone"}, url.Values{"all": {"yes"}}))
	if err != nil {
		t.Fatalf("Phone failed: %v", err)
	}
	if doc["phone"] != "+15550101" {
		t.Fatalf("unexpected primary: %v", doc["phone"])
	}
	all, ok := doc["all"].([]string)
	if !ok || !reflect.DeepEqual(all, []string{"+15550101"}) {
		t.Fatalf("unexpected all list: %v", doc["all"])
	}
}

func TestExternalIDsServiceFilter(t *testing.T) {
	h, store := seedHandlers(t)

	doc, err := h.ExternalIDs(context.Background(), handlerRequest(store, []string{"user/externalids"}, nil))
	if err != nil {
		t.Fatalf("ExternalIDs failed: %v", err)
	}
	if len(doc) != 2 {
		t.Fatalf("expected both services: %v", doc)
	}

	doc, err = h.ExternalIDs(context.Background(), handlerRequest(store, []string{"user/externalids"}, url.Values{"service": {"twitter"}}))
	if err != nil {
		t.Fatalf("ExternalIDs failed: %v", err)
	}
	if len(doc) != 1 {
		t.Fatalf("filter not applied: %v", doc)
	}
	tw, ok := doc["twitter"].(identity.Document)
	if !ok {
		t.Fatalf("twitter entry missing: %v", doc)
	}
	if tw["oauth_token"] != "tw-token" || tw["username"] != "dana_t" {
		t.Fatalf("unexpected twitter record: %v", tw)
	}
}

func TestParseBool(t *testing.T) {
	for _, raw := range []string{"1", "t", "true", "Y", "YES", "on", " true "} {
		if !parseBool(raw) {
			t.Fatalf("expected true for %q", raw)
		}
	}
	for _, raw := range []string{"", "0", "false", "no", "off", "maybe"} {
		if parseBool(raw) {
			t.Fatalf("expected false for %q", raw)
		}
	}
}
