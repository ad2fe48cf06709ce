package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(url, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return c
}

func TestClassifyParsesSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if body["image_data"] != "data:image/png;base64,abc" {
			t.Errorf("unexpected image_data %q", body["image_data"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
			"predicted_digit": 7,
			"confidence":      0.93,
			"probabilities":   map[string]float64{"7": 0.93, "3": 0.04},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	prediction, err := client.Classify(context.Background(), "data:image/png;base64,abc")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if prediction.PredictedDigit != 7 {
		t.Fatalf("unexpected digit %d", prediction.PredictedDigit)
	}
	if prediction.Confidence != 0.93 {
		t.Fatalf("unexpected confidence %f", prediction.Confidence)
	}
	if prediction.Probabilities["3"] != 0.04 {
		t.Fatalf("unexpected probabilities %v", prediction.Probabilities)
	}
}

func TestClassifyReturnsServerErrorForErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "Model not loaded"}) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Classify(context.Background(), "data:image/png;base64,abc")

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if serverErr.Message != "Model not loaded" {
		t.Fatalf("unexpected message %q", serverErr.Message)
	}
}

func TestClassifyReturnsTransportErrorOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>not json</html>")) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Classify(context.Background(), "data:image/png;base64,abc")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if transportErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", transportErr.StatusCode)
	}
}

func TestClassifyReturnsNetworkErrorOnConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(t, server.URL)
	_, err := client.Classify(context.Background(), "data:image/png;base64,abc")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
}

func TestPingTreatsAnyHTTPResponseAsReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// POST-only endpoints answer probes with 405; still reachable.
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("expected reachable, got %v", err)
	}
}

func TestPingReportsConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)
	err := client.Ping(context.Background())

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
}

func TestClassifyReturnsNetworkErrorOnMalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json")) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Classify(context.Background(), "data:image/png;base64,abc")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
}
