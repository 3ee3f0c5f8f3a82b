// Package forecast predicts next-period surgical volume from the three most
// recent booking counts.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Predicted is a forecast and where it came from.
type Predicted struct {
	Value  int    `json:"predicted_volume"`
	Source Source `json:"source"`
}

type predictRequest struct {
	TMinus3 int `json:"t_minus_3"`
	TMinus2 int `json:"t_minus_2"`
	TMinus1 int `json:"t_minus_1"`
}

type predictResponse struct {
	PredictedVolume *json.Number `json:"predicted_volume"`
}

// Fallback is the local linear estimate 0.3*t3 + 0.4*t2 + 0.5*t1 + 15,
// rounded half up. Counts are non-negative, so the sum is kept in tenths.
func Fallback(t3, t2, t1 int) int {
	return (3*t3 + 4*t2 + 5*t1 + 150 + 5) / 10
}

// Estimator calls the prediction endpoint once per request and substitutes
// Fallback on any failure. An empty base URL always uses the fallback.
type Estimator struct {
	client *resty.Client
	url    string
	logger zerolog.Logger
}

func NewEstimator(baseURL string, logger zerolog.Logger) *Estimator {
	e := &Estimator{
		client: resty.New().SetRetryCount(0),
		logger: logger.With().Str("component", "estimator").Logger(),
	}
	if baseURL != "" {
		e.url = strings.TrimRight(baseURL, "/") + "/api/predict"
	}
	return e
}

func (e *Estimator) Predict(ctx context.Context, t3, t2, t1 int) Predicted {
	if v, ok := e.remote(ctx, t3, t2, t1); ok {
		return Predicted{Value: v, Source: SourceRemote}
	}
	return Predicted{Value: Fallback(t3, t2, t1), Source: SourceFallback}
}

func (e *Estimator) remote(ctx context.Context, t3, t2, t1 int) (int, bool) {
	if e.url == "" {
		return 0, false
	}
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(predictRequest{TMinus3: t3, TMinus2: t2, TMinus1: t1}).
		Post(e.url)
	if err != nil {
		e.logger.Warn().Err(err).Msg("prediction endpoint unreachable, using fallback")
		return 0, false
	}
	if !resp.IsSuccess() {
		e.logger.Warn().Int("status", resp.StatusCode()).Msg("prediction endpoint failed, using fallback")
		return 0, false
	}

	var body predictResponse
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body.PredictedVolume == nil {
		e.logger.Warn().Err(err).Msg("malformed prediction response, using fallback")
		return 0, false
	}
	v, err := body.PredictedVolume.Int64()
	if err != nil {
		e.logger.Warn().Str("predicted_volume", body.PredictedVolume.String()).Msg("non-integer prediction, using fallback")
		return 0, false
	}
	return int(v), true
}
