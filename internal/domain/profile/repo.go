package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("profile not found")
	ErrExists   = errors.New("profile already exists")
)

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	UpdateName(ctx context.Context, id uuid.UUID, fullName string) (*Profile, error)
	UpdatePicture(ctx context.Context, id uuid.UUID, url string) (*Profile, error)
	// UpsertSurgeonDetails creates or replaces the details row for a surgeon.
	UpsertSurgeonDetails(ctx context.Context, d *SurgeonDetails) error
	// ListSurgeons returns surgeons whose full name, specialty or hospital
	// contains query, case-insensitively. An empty query matches all.
	ListSurgeons(ctx context.Context, query string) ([]*Surgeon, error)
}
