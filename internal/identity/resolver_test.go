package identity

import (
	"context"
	"reflect"
	"testing"
)

func seedGraph(t *testing.T) (*Memory, *User, *Organization) {
	t.Helper()
	store := NewMemory()

	user := &User{Buid: "u1", UUID: "uuid-u1", Username: "alice", Fullname: "Alice", Email: "alice@example.com"}
	store.AddUser(user)

	org := &Organization{Buid: "o1", UUID: "uuid-o1", Name: "acme", Title: "Acme", OwnersTeamBuid: "t-owners"}
	store.AddOrganization(org)
	store.AddTeam(&Team{Buid: "t-owners", UUID: "uuid-t0", Title: "Owners", OrgBuid: "o1", OrgUUID: "uuid-o1", Owners: true}, "u1")
	store.AddTeam(&Team{Buid: "t-dev", UUID: "uuid-t1", Title: "Developers", OrgBuid: "o1", OrgUUID: "uuid-o1"}, "u1")
	store.AddTeam(&Team{Buid: "t-ops", UUID: "uuid-t2", Title: "Operators", OrgBuid: "o1", OrgUUID: "uuid-o1"})
	return store, user, org
}

func TestResolveUserOwnedClient(t *testing.T) {
	store, user, _ := seedGraph(t)
	client := &Client{Buid: "c1", UserBuid: "u1"}
	store.SetUserPermissions("c1", "u1", "write read read")

	resolver := NewPermissionResolver(store)
	perms, err := resolver.Resolve(context.Background(), client, user)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(perms, []string{"read", "write"}) {
		t.Fatalf("unexpected permissions: %v", perms)
	}
}

func TestResolveUserOwnedClientNoGrant(t *testing.T) {
	store, user, _ := seedGraph(t)
	client := &Client{Buid: "c1", UserBuid: "u1"}

	perms, err := NewPermissionResolver(store).Resolve(context.Background(), client, user)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if perms == nil || len(perms) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", perms)
	}
}

func TestResolveTeamUnion(t *testing.T) {
	store, user, _ := seedGraph(t)
	client := &Client{Buid: "c2", OrgBuid: "o1"}
	store.SetTeamPermissions("c2", "t-owners", "admin read")
	store.SetTeamPermissions("c2", "t-dev", "deploy read")
	// t-ops has a grant but the user is not a member.
	store.SetTeamPermissions("c2", "t-ops", "secret")

	resolver := NewPermissionResolver(store)
	perms, err := resolver.Resolve(context.Background(), client, user)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"admin", "deploy", "read"}
	if !reflect.DeepEqual(perms, want) {
		t.Fatalf("Resolve = %v, want %v", perms, want)
	}

	// Deterministic: a second run over unchanged grants is identical.
	again, err := resolver.Resolve(context.Background(), client, user)
	if err != nil {
		t.Fatalf("Resolve (second run): %v", err)
	}
	if !reflect.DeepEqual(again, perms) {
		t.Fatalf("resolution not stable: %v vs %v", again, perms)
	}
}

func TestResolveNoTeamGrants(t *testing.T) {
	store, user, _ := seedGraph(t)
	client := &Client{Buid: "c3", OrgBuid: "o1"}

	perms, err := NewPermissionResolver(store).Resolve(context.Background(), client, user)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(perms) != 0 {
		t.Fatalf("expected no permissions, got %v", perms)
	}
}
