package main

import (
	"path/filepath"
	"testing"
)

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := newPrincipalStore(path)
	if err != nil {
		t.Fatalf("newPrincipalStore: %v", err)
	}
	u, err := store.createUser("Alice", "alice@example.com", "password123", "alice")
	if err != nil {
		t.Fatalf("createUser: %v", err)
	}

	// A second open re-runs the migrations against the populated file;
	// they must be a no-op and the data must still be there.
	store, err = newPrincipalStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := store.userByID(u.ID)
	if err != nil {
		t.Fatalf("userByID after reopen: %v", err)
	}
	if got.Email != "alice@example.com" || got.APIKey != u.APIKey {
		t.Fatalf("reopened user = %+v", got)
	}
}

func TestUniqueIndexesEnforced(t *testing.T) {
	store, err := newPrincipalStore(filepath.Join(t.TempDir(), "unique.db"))
	if err != nil {
		t.Fatalf("newPrincipalStore: %v", err)
	}

	u := &userModel{ID: "u1", Name: "A", Email: "a@example.com",
		PasswordDigest: "x", Domain: "a", APIKey: "key-1"}
	if err := store.db.Create(u).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := &userModel{ID: "u2", Name: "B", Email: "a@example.com",
		PasswordDigest: "x", Domain: "b", APIKey: "key-2"}
	if err := store.db.Create(dup).Error; !isDuplicate(err) {
		t.Fatalf("duplicate email at the index: got %v", err)
	}
}
