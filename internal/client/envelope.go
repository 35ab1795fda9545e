package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx response or a business failure reported in the envelope.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d, code %d", e.Status, e.Code)
	}
	return fmt.Sprintf("api error: status %d, code %d: %s", e.Status, e.Code, e.Message)
}

// envelope is the backend's {code, msg, data} wrapper.
type envelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// unwrap returns the data member of an envelope. Bodies that are not an
// envelope are returned as is.
func unwrap(status int, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] != '{' {
		return body, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code == nil {
		return body, nil
	}
	if *env.Code == 0 && env.Msg != "" {
		return nil, &APIError{Status: status, Code: *env.Code, Message: env.Msg}
	}
	return env.Data, nil
}

// pagedList covers the paged shapes the backend uses for lists.
type pagedList struct {
	Total   *int64          `json:"total"`
	Records json.RawMessage `json:"records"`
	Result  json.RawMessage `json:"result"`
	List    json.RawMessage `json:"list"`
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// decodeList unwraps data.records, data.result, data.list or data itself.
func decodeList[T any](data json.RawMessage) ([]T, int64, error) {
	data = bytes.TrimSpace(data)
	if !present(data) {
		return []T{}, 0, nil
	}

	items := data
	var total int64 = -1
	if data[0] == '{' {
		var page pagedList
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, 0, fmt.Errorf("failed to decode list: %w", err)
		}
		switch {
		case present(page.Records):
			items = page.Records
		case present(page.Result):
			items = page.Result
		case present(page.List):
			items = page.List
		default:
			items = nil
		}
		if page.Total != nil {
			total = *page.Total
		}
	}

	out := []T{}
	if items != nil {
		if err := json.Unmarshal(items, &out); err != nil {
			return nil, 0, fmt.Errorf("failed to decode list: %w", err)
		}
	}
	if total < 0 {
		total = int64(len(out))
	}
	return out, total, nil
}

func decodeInto(data json.RawMessage, v interface{}) error {
	if !present(data) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
