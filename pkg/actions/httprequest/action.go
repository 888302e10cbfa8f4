// Package httprequest implements the http_request action for outbound
// webhook calls.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leadflowhq/leadflow/pkg/protocol"
	"github.com/leadflowhq/leadflow/pkg/template"
)

const ActionID = "http_request"

type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

type Action struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration
	Retry   RetryConfig

	httpClient *http.Client
}

type Factory struct{}

func NewActionFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return ActionID
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	method, _ := config["method"].(string)
	url, _ := config["url"].(string)
	body, _ := config["body"].(string)

	if url == "" {
		return nil, fmt.Errorf("http_request action requires a url")
	}

	if method == "" {
		method = http.MethodPost
	}

	headers := make(map[string]string)

	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for key, value := range headersConfig {
			if str, ok := value.(string); ok {
				headers[key] = str
			}
		}
	}

	retry := RetryConfig{Attempts: 1}

	if retryConfig, ok := config["retry"].(map[string]any); ok {
		if attempts, ok := retryConfig["attempts"].(float64); ok {
			retry.Attempts = int(attempts)
		}

		if delay, ok := retryConfig["delay"].(float64); ok {
			retry.Delay = time.Duration(delay) * time.Second
		}
	}

	return &Action{
		Method:     strings.ToUpper(method),
		URL:        url,
		Headers:    headers,
		Body:       body,
		Timeout:    30 * time.Second,
		Retry:      retry,
		httpClient: &http.Client{},
	}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext) (any, error) {
	url, err := a.render(a.URL, actionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render url: %w", err)
	}

	body, err := a.render(a.Body, actionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= a.Retry.Attempts; attempt++ {
		if attempt > 1 {
			actionCtx.Logger.InfoContext(ctx, "Retrying http_request",
				"attempt", attempt, "attempts", a.Retry.Attempts)
			time.Sleep(a.Retry.Delay)
		}

		result, err := a.doRequest(ctx, url, body)
		if err == nil {
			return result, nil
		}

		lastErr = err
	}

	return nil, lastErr
}

func (a *Action) doRequest(ctx context.Context, url, body string) (any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, a.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range a.Headers {
		req.Header.Set(key, value)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("http request returned status %d", resp.StatusCode)
	}

	result := map[string]any{"status_code": resp.StatusCode}

	var decoded any
	if json.Unmarshal(respBody, &decoded) == nil {
		result["body"] = decoded
	} else {
		result["body"] = string(respBody)
	}

	return result, nil
}

func (a *Action) render(input string, actionCtx protocol.ActionContext) (string, error) {
	if !template.NeedsTemplating(input) {
		return input, nil
	}

	return template.RenderWithLead(input, actionCtx.Lead, actionCtx.Execution)
}
