// Package client talks to a running diagnosis server.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"diagnosis-service/internal/ml"
	"diagnosis-service/internal/server"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Predict posts fields as JSON and returns the ranked predictions.
func (c *Client) Predict(ctx context.Context, fields map[string]any) (*server.PredictResponse, error) {
	result := &server.PredictResponse{}
	failure := &server.ErrorResponse{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(fields).
		SetResult(result).
		SetError(failure).
		Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := failure.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return result, nil
}

func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	result := &server.HealthResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		Get(c.base + "/health")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	return result, nil
}

func (c *Client) ModelInfo(ctx context.Context) (*ml.Metadata, error) {
	result := &ml.Metadata{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		Get(c.base + "/model/info")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	return result, nil
}
