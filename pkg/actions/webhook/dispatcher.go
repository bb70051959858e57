// Package webhook delivers webhook actions as HTTP requests.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/models"
)

const maxResponseBody = 64 << 10

var ErrWebhookStatus = errors.New("webhook responded with an error status")

type Dispatcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewDispatcher creates a webhook dispatcher. Timeouts come from the request context.
func NewDispatcher(client *http.Client, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}

	return &Dispatcher{client: client, logger: logger.With("module", "webhook_action")}
}

func (d *Dispatcher) Type() models.ActionType {
	return models.ActionWebhook
}

func (d *Dispatcher) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Endpoint to call. Supports {{path}} placeholders.",
			},
			"method": map[string]any{
				"type":    "string",
				"default": http.MethodPost,
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"description": "Request body. Objects are sent as JSON.",
			},
		},
		"required": []string{"url"},
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req actions.Request) (map[string]any, error) {
	url := actions.String(req.Config, "url")
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", actions.ErrInvalidConfig)
	}

	method := strings.ToUpper(actions.String(req.Config, "method"))
	if method == "" {
		method = http.MethodPost
	}

	body, err := actions.Body(req.Config["body"])
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if len(body) > 0 && json.Valid(body) {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, value := range actions.StringMap(req.Config, "headers") {
		httpReq.Header.Set(key, value)
	}

	d.logger.DebugContext(ctx, "Calling webhook", "method", method, "url", url, "node_id", req.NodeID)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
	}

	var decoded any

	err = json.Unmarshal(respBody, &decoded)
	if err != nil {
		decoded = string(respBody)
	}

	return map[string]any{
		"statusCode": resp.StatusCode,
		"body":       decoded,
	}, nil
}
