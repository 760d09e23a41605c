package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusnet/internal/models"
)

type UniversityRepository struct {
	db DBTX
}

func NewUniversityRepository(db DBTX) *UniversityRepository {
	return &UniversityRepository{db: db}
}

func (r *UniversityRepository) WithTx(tx *sql.Tx) *UniversityRepository {
	return &UniversityRepository{db: tx}
}

// FindByEmailDomain resolves a university by suffix match: the registering
// email's domain must end with one of the stored domain strings, so a row
// storing "state.edu" accepts both alice@state.edu and alice@cs.state.edu.
func (r *UniversityRepository) FindByEmailDomain(ctx context.Context, domain string) (*models.University, error) {
	var u models.University
	var country, logoURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT univ.id, univ.name, univ.country, univ.logo_url, univ.created_at
		 FROM universities univ
		 WHERE EXISTS (
		     SELECT 1 FROM university_domains d
		     WHERE d.university_id = univ.id AND ? LIKE '%' || d.domain
		 )
		 LIMIT 1`,
		domain,
	).Scan(&u.ID, &u.Name, &country, &logoURL, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying university by domain: %w", err)
	}

	u.Country = nullStringToPtr(country)
	u.LogoURL = nullStringToPtr(logoURL)
	return &u, nil
}

func (r *UniversityRepository) FindByID(ctx context.Context, id string) (*models.University, error) {
	var u models.University
	var country, logoURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, country, logo_url, created_at FROM universities WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Name, &country, &logoURL, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying university: %w", err)
	}

	u.Country = nullStringToPtr(country)
	u.LogoURL = nullStringToPtr(logoURL)
	return &u, nil
}

// List returns a page of universities ordered by name, plus the total count
// for pagination metadata.
func (r *UniversityRepository) List(ctx context.Context, page, limit int) ([]*models.University, int, error) {
	offset := (page - 1) * limit

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM universities`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting universities: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, country, logo_url, created_at FROM universities ORDER BY name ASC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying universities: %w", err)
	}
	defer rows.Close()

	var universities []*models.University
	for rows.Next() {
		var u models.University
		var country, logoURL sql.NullString

		if err := rows.Scan(&u.ID, &u.Name, &country, &logoURL, &u.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning university: %w", err)
		}
		u.Country = nullStringToPtr(country)
		u.LogoURL = nullStringToPtr(logoURL)
		universities = append(universities, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating universities: %w", err)
	}

	for _, u := range universities {
		domains, err := r.domains(ctx, u.ID)
		if err != nil {
			return nil, 0, err
		}
		u.Domains = domains
	}

	return universities, total, nil
}

// Create inserts a university together with its accepted domain suffixes.
func (r *UniversityRepository) Create(ctx context.Context, u *models.University) error {
	if u.ID == "" {
		id, err := GenerateID("uni")
		if err != nil {
			return fmt.Errorf("generating university ID: %w", err)
		}
		u.ID = id
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = nowUTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO universities (id, name, country, logo_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Country, u.LogoURL, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating university: %w", err)
	}

	for _, domain := range u.Domains {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO university_domains (university_id, domain) VALUES (?, ?)`,
			u.ID, domain,
		)
		if err != nil {
			return fmt.Errorf("creating university domain: %w", err)
		}
	}

	return nil
}

func (r *UniversityRepository) domains(ctx context.Context, universityID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT domain FROM university_domains WHERE university_id = ? ORDER BY domain`,
		universityID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying university domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning university domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}
