package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// ErrNoAI is returned when no AI endpoint is configured.
var ErrNoAI = errors.New("ai endpoint not configured")

// AIClient posts questions to a chat endpoint that answers with
// {"answer": "..."}.
type AIClient struct {
	url        string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewAIClient(url string, timeout time.Duration, logger *logrus.Logger) *AIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AIClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *AIClient) Enabled() bool {
	return c != nil && c.url != ""
}

func (c *AIClient) Ask(ctx context.Context, question string, topK int) (string, error) {
	if !c.Enabled() {
		return "", ErrNoAI
	}
	if topK <= 0 {
		topK = 1
	}

	body, err := json.Marshal(model.TraceRequest{Question: question, TopK: topK})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debugf("Calling AI endpoint %s", c.url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach ai endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read ai response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai endpoint returned status %d", resp.StatusCode)
	}

	var answer model.TraceAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return "", fmt.Errorf("failed to decode ai response: %w", err)
	}
	if answer.Answer == "" {
		return "", fmt.Errorf("ai response has no answer")
	}
	return answer.Answer, nil
}
