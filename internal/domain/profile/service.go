package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/surgicast/surgicast/internal/platform/blobstore"
)

// ErrPicturesDisabled is returned when no object storage is configured.
var ErrPicturesDisabled = errors.New("profile pictures are not configured")

type Service struct {
	repo    Repository
	storage blobstore.Presigner
}

// NewService builds the profile service. storage may be nil, in which case
// picture uploads report ErrPicturesDisabled.
func NewService(repo Repository, storage blobstore.Presigner) *Service {
	return &Service{repo: repo, storage: storage}
}

// Create stores a new profile with any valid role. Only trusted callers (the
// sign-up flow after its own role check, the CLI) reach this directly.
func (s *Service) Create(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !ValidRoles[p.Role] {
		return fmt.Errorf("invalid role: %s", p.Role)
	}
	return s.repo.Create(ctx, p)
}

// CreateSelf creates the caller's own profile; admin cannot be self-assigned.
func (s *Service) CreateSelf(ctx context.Context, p *Profile) error {
	if !SelfServiceRoles[p.Role] {
		return fmt.Errorf("invalid role: %s", p.Role)
	}
	return s.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateName(ctx context.Context, id uuid.UUID, fullName string) (*Profile, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("full_name is required")
	}
	return s.repo.UpdateName(ctx, id, fullName)
}

// PresignPicture returns an upload target for a new profile picture and
// points the profile at the object URL.
func (s *Service) PresignPicture(ctx context.Context, id uuid.UUID, contentType string) (*blobstore.Upload, *Profile, error) {
	if s.storage == nil {
		return nil, nil, ErrPicturesDisabled
	}
	up, err := s.storage.PresignUpload(ctx, id.String(), contentType)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.repo.UpdatePicture(ctx, id, up.ObjectURL)
	if err != nil {
		return nil, nil, err
	}
	return up, p, nil
}

func (s *Service) SaveSurgeonDetails(ctx context.Context, d *SurgeonDetails) error {
	p, err := s.repo.GetByID(ctx, d.UserID)
	if err != nil {
		return err
	}
	if p.Role != RoleSurgeon {
		return fmt.Errorf("profile %s is not a surgeon", d.UserID)
	}
	return s.repo.UpsertSurgeonDetails(ctx, d)
}

func (s *Service) ListSurgeons(ctx context.Context, query string) ([]*Surgeon, error) {
	return s.repo.ListSurgeons(ctx, strings.TrimSpace(query))
}
