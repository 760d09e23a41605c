package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusnet/internal/models"
)

type CommunityRepository struct {
	db DBTX
}

func NewCommunityRepository(db DBTX) *CommunityRepository {
	return &CommunityRepository{db: db}
}

func (r *CommunityRepository) WithTx(tx *sql.Tx) *CommunityRepository {
	return &CommunityRepository{db: tx}
}

// EnsureDefaultMembership enrolls a freshly verified user into their
// university's default community. If the university already has one, the
// user joins as a member; otherwise a new community is created with the
// user as its admin.
func (r *CommunityRepository) EnsureDefaultMembership(ctx context.Context, universityID, universityName, userID string) error {
	community, err := r.findDefault(ctx, universityID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if community != nil {
		return r.addMember(ctx, community.ID, userID, models.MemberRoleMember)
	}

	id, err := GenerateID("com")
	if err != nil {
		return fmt.Errorf("generating community ID: %w", err)
	}

	name := universityName + " Community"
	description := "Official community of " + universityName
	now := nowUTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO communities (id, university_id, name, description, is_public, creator_id, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, universityID, name, description, userID, now,
	)
	if err != nil {
		return fmt.Errorf("creating community: %w", err)
	}

	return r.addMember(ctx, id, userID, models.MemberRoleAdmin)
}

func (r *CommunityRepository) findDefault(ctx context.Context, universityID string) (*models.Community, error) {
	var c models.Community
	var description sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, university_id, name, description, is_public, creator_id, created_at
		 FROM communities WHERE university_id = ? ORDER BY created_at ASC LIMIT 1`,
		universityID,
	).Scan(&c.ID, &c.UniversityID, &c.Name, &description, &c.IsPublic, &c.CreatorID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying default community: %w", err)
	}

	c.Description = nullStringToPtr(description)
	return &c, nil
}

func (r *CommunityRepository) addMember(ctx context.Context, communityID, userID string, role models.MemberRole) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO community_members (community_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		communityID, userID, role, nowUTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil
		}
		return fmt.Errorf("adding community member: %w", err)
	}
	return nil
}

func (r *CommunityRepository) FindMember(ctx context.Context, communityID, userID string) (*models.CommunityMember, error) {
	var m models.CommunityMember

	err := r.db.QueryRowContext(ctx,
		`SELECT community_id, user_id, role, joined_at FROM community_members WHERE community_id = ? AND user_id = ?`,
		communityID, userID,
	).Scan(&m.CommunityID, &m.UserID, &m.Role, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying community member: %w", err)
	}
	return &m, nil
}

// FindDefaultByUniversity exposes the default community lookup for callers
// outside the enrollment path.
func (r *CommunityRepository) FindDefaultByUniversity(ctx context.Context, universityID string) (*models.Community, error) {
	return r.findDefault(ctx, universityID)
}
