package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"campusnet/internal/models"
)

func TestUserCreateDuplicateEmail(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	university := seedUniversityRow(t, database, "State University", "state.edu")
	seedUserRow(t, database, "alice@state.edu", university.ID)

	token := "another-token"
	dup := &models.User{
		ID:                "usr_duplicate",
		Email:             "alice@state.edu",
		Username:          "alice2",
		PasswordHash:      "x",
		Role:              models.RoleUser,
		VerificationToken: &token,
		UniversityID:      university.ID,
	}
	err := NewUserRepository(database).Create(ctx, dup, &models.UserProfile{FirstName: "A", LastName: "B"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestMarkVerifiedConsumesToken(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	university := seedUniversityRow(t, database, "State University", "state.edu")
	user := seedUserRow(t, database, "alice@state.edu", university.ID)
	repo := NewUserRepository(database)

	rows, err := repo.MarkVerified(ctx, *user.VerificationToken)
	if err != nil {
		t.Fatalf("MarkVerified() error = %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}

	// The same token cannot verify twice.
	rows, err = repo.MarkVerified(ctx, *user.VerificationToken)
	if err != nil {
		t.Fatalf("second MarkVerified() error = %v", err)
	}
	if rows != 0 {
		t.Fatalf("second call rows = %d, want 0", rows)
	}

	got, err := repo.FindByEmail(ctx, "alice@state.edu")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if !got.IsVerified {
		t.Fatalf("user not verified after MarkVerified")
	}
	if got.VerificationToken != nil {
		t.Fatalf("verification token not cleared")
	}
}

func TestFindActiveByIDExcludesInactive(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	university := seedUniversityRow(t, database, "State University", "state.edu")
	user := seedUserRow(t, database, "alice@state.edu", university.ID)
	repo := NewUserRepository(database)

	// New users start inactive.
	if _, err := repo.FindActiveByID(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindActiveByID() error = %v, want ErrNotFound", err)
	}

	if err := repo.RecordLogin(ctx, user.ID); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}

	got, err := repo.FindActiveByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindActiveByID() after login error = %v", err)
	}
	if got.LastLoginAt == nil {
		t.Fatalf("last_login_at not stamped")
	}
}

func TestResetTokenLifecycle(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	university := seedUniversityRow(t, database, "State University", "state.edu")
	user := seedUserRow(t, database, "alice@state.edu", university.ID)
	repo := NewUserRepository(database)
	now := time.Now().UTC()

	if err := repo.SetResetToken(ctx, user.ID, "reset-abc", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken() error = %v", err)
	}

	got, err := repo.FindByValidResetToken(ctx, "reset-abc", now)
	if err != nil {
		t.Fatalf("FindByValidResetToken() error = %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("found user %q, want %q", got.ID, user.ID)
	}

	// Past the expiry the token does not resolve.
	if _, err := repo.FindByValidResetToken(ctx, "reset-abc", now.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired lookup error = %v, want ErrNotFound", err)
	}

	// Updating the password clears the token entirely.
	if err := repo.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	if _, err := repo.FindByValidResetToken(ctx, "reset-abc", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("post-update lookup error = %v, want ErrNotFound", err)
	}

	got, err = repo.FindByEmail(ctx, "alice@state.edu")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Fatalf("password hash = %q, want new-hash", got.PasswordHash)
	}
}

func TestClearExpiredResetTokens(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	university := seedUniversityRow(t, database, "State University", "state.edu")
	expired := seedUserRow(t, database, "old@state.edu", university.ID)
	fresh := seedUserRow(t, database, "new@state.edu", university.ID)
	repo := NewUserRepository(database)
	now := time.Now().UTC()

	if err := repo.SetResetToken(ctx, expired.ID, "reset-old", now.Add(-time.Minute)); err != nil {
		t.Fatalf("SetResetToken() error = %v", err)
	}
	if err := repo.SetResetToken(ctx, fresh.ID, "reset-new", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken() error = %v", err)
	}

	cleared, err := repo.ClearExpiredResetTokens(ctx, now)
	if err != nil {
		t.Fatalf("ClearExpiredResetTokens() error = %v", err)
	}
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}

	if _, err := repo.FindByValidResetToken(ctx, "reset-new", now); err != nil {
		t.Fatalf("live token cleared too: %v", err)
	}
}

func TestPublicByID(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	university := seedUniversityRow(t, database, "State University", "state.edu")
	user := seedUserRow(t, database, "alice@state.edu", university.ID)
	repo := NewUserRepository(database)

	got, err := repo.PublicByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("PublicByID() error = %v", err)
	}
	if got.UniversityName != "State University" {
		t.Fatalf("university name = %q, want State University", got.UniversityName)
	}
	if got.Profile.FirstName != "Test" || got.Profile.LastName != "User" {
		t.Fatalf("profile = %q %q, want Test User", got.Profile.FirstName, got.Profile.LastName)
	}
}
