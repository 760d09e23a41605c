package db

import (
	"context"
	"path/filepath"
	"testing"

	"campusnet/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func seedUniversityRow(t *testing.T, database *DB, name string, domains ...string) *models.University {
	t.Helper()

	u := &models.University{Name: name, Domains: domains}
	if err := NewUniversityRepository(database).Create(context.Background(), u); err != nil {
		t.Fatalf("creating university: %v", err)
	}
	return u
}

func seedUserRow(t *testing.T, database *DB, email, universityID string) *models.User {
	t.Helper()

	id, err := GenerateID("usr")
	if err != nil {
		t.Fatalf("GenerateID() error = %v", err)
	}
	token := "verify-" + id
	user := &models.User{
		ID:                id,
		Email:             email,
		Username:          "tester",
		PasswordHash:      "$2a$04$notarealhashnotarealhashnotarealhash",
		Role:              models.RoleUser,
		VerificationToken: &token,
		UniversityID:      universityID,
	}
	profile := &models.UserProfile{FirstName: "Test", LastName: "User"}
	if err := NewUserRepository(database).Create(context.Background(), user, profile); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}
