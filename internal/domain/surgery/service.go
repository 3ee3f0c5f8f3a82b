package surgery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrInvalidEvent = errors.New("invalid status event")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// PatientCases lists a patient's cases, oldest proposed date first.
func (s *Service) PatientCases(ctx context.Context, patientID uuid.UUID) ([]*Case, error) {
	cases, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	if cases == nil {
		cases = []*Case{}
	}
	return cases, nil
}

// PatientSummary counts a patient's cases by status and returns the first
// few as upcoming.
func (s *Service) PatientSummary(ctx context.Context, patientID uuid.UUID) (*PatientSummary, error) {
	cases, err := s.PatientCases(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sum := &PatientSummary{Total: len(cases)}
	for _, c := range cases {
		switch c.Status {
		case StatusScheduled:
			sum.Scheduled++
		case StatusProposed:
			sum.Proposed++
		case StatusCompleted:
			sum.Completed++
		}
	}
	n := len(cases)
	if n > UpcomingLimit {
		n = UpcomingLimit
	}
	sum.Upcoming = cases[:n]
	return sum, nil
}

func (s *Service) SurgeonCases(ctx context.Context, surgeonID uuid.UUID, limit, offset int) ([]*Case, int, error) {
	cases, total, err := s.repo.ListBySurgeon(ctx, surgeonID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	if cases == nil {
		cases = []*Case{}
	}
	return cases, total, nil
}

// ApplyStatus records a status transition performed elsewhere.
func (s *Service) ApplyStatus(ctx context.Context, ev StatusEvent) error {
	if ev.CaseID == uuid.Nil {
		return fmt.Errorf("%w: case_id is required", ErrInvalidEvent)
	}
	if !ev.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, ev.Status)
	}
	if err := s.repo.UpdateStatus(ctx, ev.CaseID, ev.Status); err != nil {
		return fmt.Errorf("update case %s: %w", ev.CaseID, err)
	}
	s.logger.Info().Str("case_id", ev.CaseID.String()).Str("status", string(ev.Status)).Msg("case status applied")
	return nil
}
