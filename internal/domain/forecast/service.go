package forecast

import (
	"context"
	"fmt"
	"io"

	"github.com/surgicast/surgicast/internal/platform/reporting"
)

// Defaults of the forecaster form.
const (
	DefaultTMinus3 = 45
	DefaultTMinus2 = 52
	DefaultTMinus1 = 38

	// AccuracyMargin is the model's historical error, in cases.
	AccuracyMargin = 21
)

type Service struct {
	est      *Estimator
	velocity VelocityRepository
}

func NewService(est *Estimator, velocity VelocityRepository) *Service {
	return &Service{est: est, velocity: velocity}
}

func (s *Service) Predict(ctx context.Context, t3, t2, t1 int) Predicted {
	return s.est.Predict(ctx, t3, t2, t1)
}

func (s *Service) Velocity(ctx context.Context) ([]Week, error) {
	weeks, err := s.velocity.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load booking velocity: %w", err)
	}
	if weeks == nil {
		weeks = []Week{}
	}
	return weeks, nil
}

var reportHeaders = []string{"Week", "T-3", "T-2", "T-1", "Predicted", "Source"}

// WriteReport writes the velocity series with a prediction for every week.
func (s *Service) WriteReport(ctx context.Context, w io.Writer) error {
	weeks, err := s.Velocity(ctx)
	if err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(weeks))
	for _, wk := range weeks {
		p := s.est.Predict(ctx, wk.TMinus3, wk.TMinus2, wk.TMinus1)
		rows = append(rows, []interface{}{wk.Label, wk.TMinus3, wk.TMinus2, wk.TMinus1, p.Value, string(p.Source)})
	}
	return reporting.WriteXLSX(w, reporting.Table{
		Sheet:   "Forecast",
		Headers: reportHeaders,
		Widths:  []float64{14, 8, 8, 8, 12, 10},
		Rows:    rows,
	})
}
