package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/pricewise/pkg/httpclient"
)

// DefaultTimeout matches the cold-start budget of the hosted model.
const DefaultTimeout = 120 * time.Second

// ClientConfig configures the HTTP prediction client.
type ClientConfig struct {
	// BaseURL is the service root; requests go to BaseURL + "/predict".
	BaseURL string
	Timeout time.Duration
}

// Client calls a hosted price model over HTTP.
type Client struct {
	http     *httpclient.Client
	endpoint string
}

var _ Predictor = (*Client)(nil)

// NewClient creates a prediction client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("predict: base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return &Client{http: hc, endpoint: base + "/predict"}, nil
}

type predictRequest struct {
	Content string `json:"content"`
}

type predictResponse struct {
	Price json.RawMessage `json:"price"`
}

// Predict posts content to the model and returns its price estimate. Every
// failure wraps one of the package's sentinel errors.
func (c *Client) Predict(ctx context.Context, content string) (float64, error) {
	var resp predictResponse
	err := c.http.PostJSON(ctx, c.endpoint, nil, predictRequest{Content: content}, &resp)
	if err != nil {
		return 0, classify(err)
	}
	return parsePrice(resp.Price)
}

func classify(err error) error {
	var statusErr *httpclient.StatusError
	var decodeErr *httpclient.DecodeError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		return fmt.Errorf("%w: %d", ErrBadStatus, statusErr.StatusCode)
	case errors.As(err, &decodeErr):
		return fmt.Errorf("%w: %v", ErrMalformed, decodeErr.Err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
}

// parsePrice accepts a JSON number or a numeric string.
func parsePrice(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrMissingPrice
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, fmt.Errorf("%w: price is %s", ErrMalformed, raw)
		}
		v, err = strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(s), "$"), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: price %q is not a number", ErrMalformed, s)
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: price is not finite", ErrMalformed)
	}
	return v, nil
}
