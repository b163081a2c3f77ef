package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Assistants v2 REST client covering the thread/run
// lifecycle the relay needs: create a thread, append a user message, start a
// run, poll it, and read the reply.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var out Thread
	if err := c.do(ctx, http.MethodPost, "/v1/threads", struct{}{}, &out); err != nil {
		return Thread{}, err
	}
	if out.ID == "" {
		return Thread{}, fmt.Errorf("assistants: thread create returned empty id")
	}
	return out, nil
}

func (c *Client) AddMessage(ctx context.Context, threadID, role, content string) error {
	body := map[string]string{"role": role, "content": content}
	var out Message
	return c.do(ctx, http.MethodPost, "/v1/threads/"+url.PathEscape(threadID)+"/messages", body, &out)
}

func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	body := map[string]string{"assistant_id": assistantID}
	var out Run
	if err := c.do(ctx, http.MethodPost, "/v1/threads/"+url.PathEscape(threadID)+"/runs", body, &out); err != nil {
		return Run{}, err
	}
	if out.ID == "" {
		return Run{}, fmt.Errorf("assistants: run create returned empty id")
	}
	return out, nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var out Run
	path := "/v1/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Run{}, err
	}
	return out, nil
}

// ListMessages returns the thread's messages newest first, at most limit of
// them (backend default when limit <= 0).
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error) {
	path := "/v1/threads/" + url.PathEscape(threadID) + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Data []Message `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	httpReq.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
			return fmt.Errorf("assistants http %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("assistants http %d: %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("assistants: decode %s %s: %w", method, path, err)
	}
	return nil
}
