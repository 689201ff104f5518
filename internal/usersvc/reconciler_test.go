package usersvc

import (
	"context"
	"testing"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/events"
)

func TestHandleUserRegisteredCreatesReplica(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := NewReconciler(store, testLogger())

	err := rec.HandleUserRegistered(context.Background(), &events.UserRegistered{
		UserID:       7,
		Email:        "jo@example.com",
		Name:         "Jo Doe",
		Phone:        "555-0100",
		PasswordHash: "cached-hash",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	profile := store.profiles[7]
	if profile == nil {
		t.Fatal("expected replica created")
	}
	if profile.Email != "jo@example.com" || profile.Name != "Jo Doe" || profile.PasswordHash != "cached-hash" {
		t.Fatalf("incomplete replica %+v", profile)
	}
}

func TestHandleUserRegisteredFillsExistingBootstrap(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.profiles[7] = &models.UserProfile{ID: 7}
	rec := NewReconciler(store, testLogger())

	err := rec.HandleUserRegistered(context.Background(), &events.UserRegistered{
		UserID: 7,
		Email:  "jo@example.com",
		Name:   "Jo Doe",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.profiles[7].Name != "Jo Doe" {
		t.Fatal("expected bootstrap filled")
	}
}

func TestHandleUserDataSyncedFillsOnlyBlanks(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.profiles[7] = &models.UserProfile{
		ID:   7,
		Name: "Locally Edited",
	}
	rec := NewReconciler(store, testLogger())

	err := rec.HandleUserDataSynced(context.Background(), &events.UserDataSynced{
		UserID:       7,
		Email:        "jo@example.com",
		Name:         "Origin Name",
		Phone:        "555-0100",
		PasswordHash: "cached-hash",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	profile := store.profiles[7]
	if profile.Name != "Locally Edited" {
		t.Fatal("local data must win over the snapshot")
	}
	if profile.Email != "jo@example.com" || profile.Phone != "555-0100" || profile.PasswordHash != "cached-hash" {
		t.Fatalf("blanks must be filled, got %+v", profile)
	}
}

func TestHandleUserDataSyncedFillsWhitespaceFields(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.profiles[7] = &models.UserProfile{
		ID:    7,
		Name:  "  ",
		Phone: "\t",
	}
	rec := NewReconciler(store, testLogger())

	err := rec.HandleUserDataSynced(context.Background(), &events.UserDataSynced{
		UserID: 7,
		Name:   "Origin Name",
		Phone:  "555-0100",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	profile := store.profiles[7]
	if profile.Name != "Origin Name" {
		t.Fatalf("whitespace-only name must be treated as blank, got %q", profile.Name)
	}
	if profile.Phone != "555-0100" {
		t.Fatalf("whitespace-only phone must be treated as blank, got %q", profile.Phone)
	}
}

func TestHandleUserDataSyncedIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := NewReconciler(store, testLogger())

	payload := &events.UserDataSynced{
		UserID: 7,
		Email:  "jo@example.com",
		Name:   "Jo Doe",
	}
	if err := rec.HandleUserDataSynced(context.Background(), payload); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	first := *store.profiles[7]

	if err := rec.HandleUserDataSynced(context.Background(), payload); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if *store.profiles[7] != first {
		t.Fatal("re-applying the same snapshot must change nothing")
	}
}
