package healthrecord

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

type DetailsRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*PatientDetails, error)
	Insert(ctx context.Context, d *PatientDetails) error
	// UpdateByUser replaces the info blocks of the row owned by d.UserID.
	UpdateByUser(ctx context.Context, d *PatientDetails) error
}

type VitalsRepository interface {
	GetByID(ctx context.Context, patientID, id uuid.UUID) (*VitalSigns, error)
	// ListByPatient returns entries newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*VitalSigns, error)
	Insert(ctx context.Context, v *VitalSigns) error
	// Update matches on id and patient_id.
	Update(ctx context.Context, v *VitalSigns) error
}

type SurgeryRepository interface {
	GetByID(ctx context.Context, patientID, id uuid.UUID) (*SurgicalHistory, error)
	// ListByPatient returns entries by surgery date, latest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*SurgicalHistory, error)
	Insert(ctx context.Context, s *SurgicalHistory) error
	// Update matches on id and patient_id.
	Update(ctx context.Context, s *SurgicalHistory) error
}

// Stores groups the repositories the editor dispatches to.
type Stores struct {
	Details   DetailsRepository
	Vitals    VitalsRepository
	Surgeries SurgeryRepository

	// tx runs fn in one store transaction; nil runs fn directly.
	tx func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (s Stores) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx(ctx, fn)
}
