package models

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	PasswordHash        string     `json:"-"`
	Role                UserRole   `json:"role"`
	IsActive            bool       `json:"isActive"`
	IsVerified          bool       `json:"isVerified"`
	VerificationToken   *string    `json:"-"`
	ResetToken          *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
	UniversityID        string     `json:"universityId"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
}

type UserProfile struct {
	UserID    string  `json:"-"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// PublicUser is the projection returned to clients. It never carries
// credential material.
type PublicUser struct {
	ID             string      `json:"id"`
	Email          string      `json:"email"`
	Username       string      `json:"username"`
	Role           UserRole    `json:"role"`
	IsActive       bool        `json:"isActive"`
	IsVerified     bool        `json:"isVerified"`
	LastLoginAt    *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UniversityName string      `json:"universityName"`
	UniversityLogo *string     `json:"universityLogo,omitempty"`
	Profile        UserProfile `json:"profile"`
}
