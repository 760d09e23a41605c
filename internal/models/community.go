package models

import "time"

type MemberRole string

const (
	MemberRoleMember MemberRole = "member"
	MemberRoleAdmin  MemberRole = "admin"
)

type Community struct {
	ID           string    `json:"id"`
	UniversityID string    `json:"universityId"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	IsPublic     bool      `json:"isPublic"`
	CreatorID    string    `json:"creatorId"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CommunityMember struct {
	CommunityID string     `json:"communityId"`
	UserID      string     `json:"userId"`
	Role        MemberRole `json:"role"`
	JoinedAt    time.Time  `json:"joinedAt"`
}
