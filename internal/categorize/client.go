package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/config"
)

// Labeler classifies a transaction description into one of the fixed
// categories.
type Labeler interface {
	Classify(ctx context.Context, description string) (Label, error)
}

// ServiceUnavailableError represents a temporary failure of the
// classification service. This error can potentially be retried.
type ServiceUnavailableError struct {
	Message string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("classification service unavailable: %s", e.Message)
}

// IsServiceUnavailableError returns true if the error is a service unavailable error.
func IsServiceUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ServiceUnavailableError)
	return ok
}

// Client is the HTTP client for the zero-shot classification service. The
// pretrained model runs out of process; this client only ships descriptions
// to it and reads back ranked labels.
type Client struct {
	HTTPClient *http.Client
	baseURL    string
	logger     *logrus.Logger
}

// NewClient creates a classification service client.
func NewClient(cfg config.CategorizerConfig, logger *logrus.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.ServiceURL, "/"),
		logger:     logger,
	}
}

type classifyRequest struct {
	Text            string   `json:"text"`
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type classifyResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Classify sends one description to the service and returns the top-ranked
// label with its score.
func (c *Client) Classify(ctx context.Context, description string) (Label, error) {
	var result classifyResponse
	err := c.makeRequest(ctx, http.MethodPost, "/classify", classifyRequest{
		Text:            description,
		CandidateLabels: Categories,
		MultiLabel:      false,
	}, &result)
	if err != nil {
		return Label{}, err
	}

	if len(result.Labels) == 0 || len(result.Scores) != len(result.Labels) {
		return Label{}, fmt.Errorf("classification service returned malformed ranking")
	}

	return Label{Category: result.Labels[0], Confidence: result.Scores[0]}, nil
}

// HealthCheck verifies the classification service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.makeRequest(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	reqURL := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Warn("Error closing response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		errorMsg := string(respBody)
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error != "" {
			errorMsg = errResp.Error
		}

		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode >= 500 {
			return &ServiceUnavailableError{Message: errorMsg}
		}
		return fmt.Errorf("classification service error (%d): %s", resp.StatusCode, errorMsg)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
