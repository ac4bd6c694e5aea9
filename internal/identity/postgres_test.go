package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGTokenByAccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	created := time.Now().UTC().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"access", "user_buid", "client_buid", "scope", "created_at", "expires_at"}).
		AddRow("tok-1", "u1", "c1", "id email crm:contacts", created, nil)
	mock.ExpectQuery("select access, user_buid, client_buid, scope, created_at, expires_at.*from tokens").
		WithArgs("tok-1").WillReturnRows(rows)

	tok, err := store.TokenByAccess(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("TokenByAccess: %v", err)
	}
	if tok.UserBuid != "u1" || tok.ClientBuid != "c1" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if len(tok.Scope) != 3 || tok.Scope[2] != "crm:contacts" {
		t.Fatalf("scope not split: %v", tok.Scope)
	}
	if tok.Expired(time.Now()) {
		t.Fatal("token without expiry must not be expired")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGTokenByAccessMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("from tokens").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"access", "user_buid", "client_buid", "scope", "created_at", "expires_at"}))

	if _, err := store.TokenByAccess(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGClientByKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	rows := sqlmock.NewRows([]string{
		"buid", "title", "website", "namespace", "trusted", "secret_hash",
		"user_buid", "org_buid", "owner_buid", "owner_uuid", "owner_title",
	}).AddRow("c1", "CRM", "https://crm.example", "crm", true, "$2a$10$hash", nil, "o1", "o1", "uuid-o1", "Acme")
	mock.ExpectQuery("from clients c").WithArgs("c1").WillReturnRows(rows)

	client, err := store.ClientByKey(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ClientByKey: %v", err)
	}
	if client.UserOwned() {
		t.Fatal("org-governed client must not be user-owned")
	}
	if client.Namespace != "crm" || !client.Trusted || client.OwnerTitle != "Acme" {
		t.Fatalf("unexpected client: %+v", client)
	}
}

func TestPGUserPermissionsAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("from client_user_permissions").WithArgs("c1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"permissions"}))

	perms, found, err := store.UserPermissions(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("UserPermissions: %v", err)
	}
	if found || perms != nil {
		t.Fatalf("expected absent grant, got found=%v perms=%v", found, perms)
	}
}

func TestPGTouchSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec("update sessions set accessed_at").WithArgs("s1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.TouchSession(context.Background(), "s1", "c1"); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}

	mock.ExpectExec("update sessions set accessed_at").WithArgs("gone", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.TouchSession(context.Background(), "gone", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
