package surgery

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("surgical case not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	// ListByPatient returns every case of a patient by proposed date, oldest
	// first, with the surgeon's name.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Case, error)
	// ListBySurgeon pages a surgeon's cases by proposed date with the
	// patient's name.
	ListBySurgeon(ctx context.Context, surgeonID uuid.UUID, limit, offset int) ([]*Case, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}
