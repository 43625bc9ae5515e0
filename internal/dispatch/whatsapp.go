package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GatewayError is a non-2xx response from the messaging gateway. The
// status code drives the terminal/transient classification.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("messaging gateway returned %d: %s", e.StatusCode, e.Body)
}

// MessageGateway sends one message to a destination and returns the
// provider's opaque message id.
type MessageGateway interface {
	Send(ctx context.Context, destination, body string) (string, error)
}

// WhatsAppClient sends reminder template messages through the WhatsApp
// Business Cloud API.
type WhatsAppClient struct {
	endpoint string // e.g. https://graph.facebook.com/v20.0/{phone_number_id}/messages
	token    string
	template string
	http     *http.Client
}

func NewWhatsAppClient(endpoint, token, template string, timeout time.Duration) *WhatsAppClient {
	return &WhatsAppClient{
		endpoint: endpoint,
		token:    token,
		template: template,
		http:     &http.Client{Timeout: timeout},
	}
}

type waTemplateRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	RecipientType    string     `json:"recipient_type"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Template         waTemplate `json:"template"`
}

type waTemplate struct {
	Name       string        `json:"name"`
	Language   waLanguage    `json:"language"`
	Components []waComponent `json:"components"`
}

type waLanguage struct {
	Code string `json:"code"`
}

type waComponent struct {
	Type       string        `json:"type"`
	Parameters []waParameter `json:"parameters"`
}

type waParameter struct {
	Type          string `json:"type"`
	ParameterName string `json:"parameter_name,omitempty"`
	Text          string `json:"text"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *WhatsAppClient) Send(ctx context.Context, destination, body string) (string, error) {
	payload := waTemplateRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               destination,
		Type:             "template",
		Template: waTemplate{
			Name:     c.template,
			Language: waLanguage{Code: "es_mx"},
			Components: []waComponent{{
				Type: "body",
				Parameters: []waParameter{{
					Type:          "text",
					ParameterName: "reminder_txt",
					Text:          body,
				}},
			}},
		},
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out waResponse
	if err := json.Unmarshal(raw, &out); err == nil && len(out.Messages) > 0 {
		return out.Messages[0].ID, nil
	}
	return "", nil
}
