package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
)

func TestPendingSignIn_SaveGetReplaceDelete(t *testing.T) {
	db := newTestDB(t, &domain.PendingSignIn{})
	ctx := context.Background()

	if _, err := GetPendingSignIn(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty table: want ErrNotFound, got %v", err)
	}

	if _, err := SavePendingSignIn(ctx, db, "u1", "+15550001", "hash-1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := GetPendingSignIn(ctx, db, "u1")
	if err != nil || got.PhoneCodeHash != "hash-1" || got.PhoneNumber != "+15550001" {
		t.Fatalf("Get after save: %+v, %v", got, err)
	}

	// A second request replaces the first.
	if _, err := SavePendingSignIn(ctx, db, "u1", "+15550002", "hash-2"); err != nil {
		t.Fatalf("Save (replace): %v", err)
	}
	var n int64
	db.Model(&domain.PendingSignIn{}).Where("user_id = ?", "u1").Count(&n)
	if n != 1 {
		t.Fatalf("expected one pending row, got %d", n)
	}
	got, _ = GetPendingSignIn(ctx, db, "u1")
	if got.PhoneCodeHash != "hash-2" || got.PhoneNumber != "+15550002" {
		t.Fatalf("replace did not take effect: %+v", got)
	}

	if err := DeletePendingSignIn(ctx, db, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := GetPendingSignIn(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: want ErrNotFound, got %v", err)
	}
	// Idempotent.
	if err := DeletePendingSignIn(ctx, db, "u1"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestPendingSignIn_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := SavePendingSignIn(context.Background(), db, "u1", "+1", "h"); err == nil {
		t.Fatalf("expected error without table")
	}
	if _, err := GetPendingSignIn(context.Background(), db, "u1"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected raw DB error without table, got %v", err)
	}
}
