package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sentinel-guard/internal/session"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL  = "http://localhost:8080/api"
	DefaultClientID = "SentinelGuard-Pro-Web"
	DefaultTimeout  = 15 * time.Second
)

type APIConfig struct {
	BaseURL  string
	ClientID string
	Timeout  time.Duration
}

// APIClient talks to the backend REST API. The bearer token is taken from
// the session when each request is built.
type APIClient struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	session    *session.Session
	logger     *logrus.Logger
}

func NewAPIClient(cfg APIConfig, sess *session.Session, logger *logrus.Logger) *APIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if sess == nil {
		sess = session.New()
	}
	return &APIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		clientID:   cfg.ClientID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		session:    sess,
		logger:     logger,
	}
}

func (c *APIClient) Session() *session.Session {
	return c.session
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	raw, status, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	return unwrap(status, raw)
}

// send performs the request and maps transport level failures. It returns
// the raw body of successful responses.
func (c *APIClient) send(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", c.clientID)
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if c.logger != nil {
			c.logger.Warnf("Session rejected by backend on %s %s, clearing token", method, path)
		}
		if err := c.session.Invalidate(); err != nil && c.logger != nil {
			c.logger.Errorf("Failed to clear session: %v", err)
		}
		return nil, resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		apiErr := &APIError{Status: resp.StatusCode}
		var env envelope
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Msg
			if env.Code != nil {
				apiErr.Code = *env.Code
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, apiErr)
	}

	return data, resp.StatusCode, nil
}
