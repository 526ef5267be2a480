// Package predict talks to the price prediction service.
package predict

import (
	"context"
	"errors"
)

// Predictor returns a point estimate for a product description.
type Predictor interface {
	Predict(ctx context.Context, content string) (float64, error)
}

var (
	ErrTimeout      = errors.New("prediction timed out")
	ErrRequest      = errors.New("prediction request failed")
	ErrBadStatus    = errors.New("prediction service returned an error status")
	ErrMalformed    = errors.New("invalid prediction response format")
	ErrMissingPrice = errors.New("no price in prediction response")
)

// Category maps a prediction error to the short label used in run traces
// and logs.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRequest):
		return "request failed"
	case errors.Is(err, ErrBadStatus):
		return "bad status"
	case errors.Is(err, ErrMalformed):
		return "invalid response format"
	case errors.Is(err, ErrMissingPrice):
		return "no price in response"
	default:
		return "unknown"
	}
}

// PredictorFunc adapts a function to the Predictor interface.
type PredictorFunc func(ctx context.Context, content string) (float64, error)

func (f PredictorFunc) Predict(ctx context.Context, content string) (float64, error) {
	return f(ctx, content)
}
