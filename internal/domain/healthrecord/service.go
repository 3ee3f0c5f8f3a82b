package healthrecord

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	stores Stores
	logger zerolog.Logger
}

func NewService(stores Stores, logger zerolog.Logger) *Service {
	return &Service{stores: stores, logger: logger}
}

// Profile loads the health profile read model. A patient without a details
// row gets a nil Details.
func (s *Service) Profile(ctx context.Context, patientID uuid.UUID) (*HealthProfile, error) {
	details, err := s.stores.Details.GetByUser(ctx, patientID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load patient details: %w", err)
	}
	vitals, err := s.stores.Vitals.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load vital signs: %w", err)
	}
	surgeries, err := s.stores.Surgeries.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load surgical history: %w", err)
	}
	if vitals == nil {
		vitals = []*VitalSigns{}
	}
	if surgeries == nil {
		surgeries = []*SurgicalHistory{}
	}
	return &HealthProfile{Details: details, Vitals: vitals, Surgeries: surgeries}, nil
}

// Existing loads the record an edit-mode draft starts from. For personal
// drafts id is ignored and a missing row yields a nil record (create mode).
func (s *Service) Existing(ctx context.Context, patientID uuid.UUID, kind Kind, id *uuid.UUID) (Record, error) {
	switch kind {
	case KindPersonal:
		d, err := s.stores.Details.GetByUser(ctx, patientID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindVitals:
		if id == nil {
			return nil, nil
		}
		v, err := s.stores.Vitals.GetByID(ctx, patientID, *id)
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindSurgery:
		if id == nil {
			return nil, nil
		}
		sh, err := s.stores.Surgeries.GetByID(ctx, patientID, *id)
		if err != nil {
			return nil, err
		}
		return sh, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

// NewEditor builds the editor for a patient's dashboard session, refreshing
// the health profile after each save.
func (s *Service) NewEditor(sessionID string, patientID uuid.UUID) *Editor {
	refresh := func(ctx context.Context) (*HealthProfile, error) {
		return s.Profile(ctx, patientID)
	}
	return NewEditor(sessionID, patientID, s.stores, refresh, s.logger)
}
