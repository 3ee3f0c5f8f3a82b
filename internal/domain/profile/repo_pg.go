package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surgicast/surgicast/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const profileCols = `id, email, full_name, role, profile_picture_url, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.ProfilePictureURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO profiles (id, email, full_name, role, profile_picture_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.Email, p.FullName, p.Role, p.ProfilePictureURL).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE id = $1`, id))
}

func (r *repoPG) UpdateName(ctx context.Context, id uuid.UUID, fullName string) (*Profile, error) {
	return scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE profiles SET full_name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileCols, id, fullName))
}

func (r *repoPG) UpdatePicture(ctx context.Context, id uuid.UUID, url string) (*Profile, error) {
	return scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE profiles SET profile_picture_url = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileCols, id, url))
}

func (r *repoPG) UpsertSurgeonDetails(ctx context.Context, d *SurgeonDetails) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO surgeon_details (user_id, specialty, hospital_affiliation, credentials, bio)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			specialty = EXCLUDED.specialty,
			hospital_affiliation = EXCLUDED.hospital_affiliation,
			credentials = EXCLUDED.credentials,
			bio = EXCLUDED.bio`,
		d.UserID, d.Specialty, d.HospitalAffiliation, d.Credentials, d.Bio)
	return err
}

func (r *repoPG) ListSurgeons(ctx context.Context, query string) ([]*Surgeon, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT p.id, p.email, p.full_name, p.role, p.profile_picture_url, p.created_at, p.updated_at,
			d.user_id, COALESCE(d.specialty, ''), COALESCE(d.hospital_affiliation, ''),
			COALESCE(d.credentials, ''), COALESCE(d.bio, '')
		FROM profiles p
		LEFT JOIN surgeon_details d ON d.user_id = p.id
		WHERE p.role = 'surgeon'
			AND ($1::text = '' OR p.full_name ILIKE '%' || $1 || '%'
				OR d.specialty ILIKE '%' || $1 || '%'
				OR d.hospital_affiliation ILIKE '%' || $1 || '%')
		ORDER BY p.full_name`, query)
	if err != nil {
		return nil, fmt.Errorf("list surgeons: %w", err)
	}
	defer rows.Close()

	var items []*Surgeon
	for rows.Next() {
		var s Surgeon
		var detailsID *uuid.UUID
		var d SurgeonDetails
		if err := rows.Scan(&s.ID, &s.Email, &s.FullName, &s.Role, &s.ProfilePictureURL, &s.CreatedAt, &s.UpdatedAt,
			&detailsID, &d.Specialty, &d.HospitalAffiliation, &d.Credentials, &d.Bio); err != nil {
			return nil, err
		}
		if detailsID != nil {
			d.UserID = *detailsID
			s.SurgeonDetails = &d
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}
