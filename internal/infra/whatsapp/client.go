// internal/infra/whatsapp/client.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lecture_coordinator_bot/internal/domain/whatsapp"
	"lecture_coordinator_bot/internal/infra/logger"
)

const (
	graphBaseURL   = "https://graph.facebook.com/v21.0"
	requestTimeout = 30 * time.Second
	maxButtons     = 3
)

// CloudClient sends messages through the WhatsApp Business Cloud API.
// It implements whatsapp.Client.
type CloudClient struct {
	httpClient *http.Client
	token      string
	phoneID    string
	baseURL    string
}

func NewCloudClient(token, phoneID string) *CloudClient {
	return &CloudClient{
		httpClient: &http.Client{Timeout: requestTimeout},
		token:      token,
		phoneID:    phoneID,
		baseURL:    graphBaseURL,
	}
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a free-form text message, rendered as an interactive
// button message when quick-reply buttons are given. The Cloud API allows at
// most three buttons per message.
func (c *CloudClient) SendText(ctx context.Context, to, body string, buttons ...whatsapp.Button) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                whatsapp.ToWaID(to),
	}
	if len(buttons) == 0 {
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": body}
	} else {
		if len(buttons) > maxButtons {
			buttons = buttons[:maxButtons]
		}
		actionButtons := make([]map[string]any, 0, len(buttons))
		for _, b := range buttons {
			actionButtons = append(actionButtons, map[string]any{
				"type": "reply",
				"reply": map[string]any{
					"id":    b.ID,
					"title": b.Title,
				},
			})
		}
		payload["type"] = "interactive"
		payload["interactive"] = map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": body},
			"action": map[string]any{"buttons": actionButtons},
		}
	}
	return c.send(ctx, payload)
}

// SendTemplate sends a pre-approved message template, used when the
// recipient's 24-hour session window has lapsed.
func (c *CloudClient) SendTemplate(ctx context.Context, to, templateName string, params []string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                whatsapp.ToWaID(to),
		"type":              "template",
		"template": map[string]any{
			"name":     templateName,
			"language": map[string]any{"code": "en"},
		},
	}
	if len(params) > 0 {
		parameters := make([]map[string]any, 0, len(params))
		for _, p := range params {
			parameters = append(parameters, map[string]any{"type": "text", "text": p})
		}
		payload["template"].(map[string]any)["components"] = []map[string]any{
			{"type": "body", "parameters": parameters},
		}
	}
	return c.send(ctx, payload)
}

// SendDocument re-sends a previously uploaded document by its media id.
func (c *CloudClient) SendDocument(ctx context.Context, to, mediaID, filename, caption string) (string, error) {
	document := map[string]any{
		"id":       mediaID,
		"filename": filename,
	}
	if caption != "" {
		document["caption"] = caption
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                whatsapp.ToWaID(to),
		"type":              "document",
		"document":          document,
	}
	return c.send(ctx, payload)
}

func (c *CloudClient) send(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal outbound message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build outbound request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call WhatsApp API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read WhatsApp API response: %w", err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode WhatsApp API response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil {
			logger.Log.WithField("code", parsed.Error.Code).WithField("type", parsed.Error.Type).
				Error("WhatsApp API rejected message: ", parsed.Error.Message)
			return "", fmt.Errorf("whatsapp api error %d: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return "", fmt.Errorf("whatsapp api returned status %d", resp.StatusCode)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("whatsapp api response contained no message id")
	}
	return parsed.Messages[0].ID, nil
}
