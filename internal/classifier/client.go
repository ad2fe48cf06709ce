package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Prediction is the structured outcome of a classification call. The
// backend guarantees (but this client does not verify) that the
// probabilities sum to ~1 and that Confidence equals the probability of
// the predicted digit.
type Prediction struct {
	PredictedDigit int                `json:"predicted_digit"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
}

// responseEnvelope covers both success and error bodies from the backend.
type responseEnvelope struct {
	Error string `json:"error"`
	Prediction
}

type predictRequest struct {
	ImageData string `json:"image_data"`
}

// Client issues classification requests against the predict endpoint.
// One call per user gesture, no retries.
type Client struct {
	endpoint *url.URL
	client   *http.Client
	logger   *zap.Logger
}

// NewClient validates the endpoint URL and builds a client. A nil
// httpClient falls back to a default with a 30s timeout, generous enough
// for cold model loads.
func NewClient(endpoint string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid predict endpoint: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: u, client: httpClient, logger: logger.Named("classifier_client")}, nil
}

// Ping reports whether the predict endpoint answers at all. Any HTTP
// response counts as reachable, including 405 from endpoints that only
// accept POST; only a transport-level failure is an error.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint.String(), nil)
	if err != nil {
		return &NetworkError{Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()
	return nil
}

// Classify posts the encoded drawing and interprets the response.
// Failure taxonomy:
//   - non-2xx status            -> *TransportError
//   - 2xx body with error field -> *ServerError
//   - anything thrown in flight -> *NetworkError
func (c *Client) Classify(ctx context.Context, imageData string) (*Prediction, error) {
	payload, err := json.Marshal(predictRequest{ImageData: imageData})
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("predict request failed", zap.Error(err))
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		c.logger.Warn("predict endpoint returned non-success status", zap.Int("status", resp.StatusCode))
		return nil, &TransportError{StatusCode: resp.StatusCode}
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &NetworkError{Err: err}
	}
	if envelope.Error != "" {
		return nil, &ServerError{Message: envelope.Error}
	}

	prediction := envelope.Prediction
	return &prediction, nil
}
