package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jobinfo/wabot/core/config"
	"github.com/jobinfo/wabot/core/logger"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// Sender delivers outbound message descriptors. Retry and rate limiting are
// the implementation's concern; the engine only hands over descriptors.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// MediaFetcher resolves and downloads inbound media (CV documents).
type MediaFetcher interface {
	MediaURL(ctx context.Context, mediaID string) (string, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}

// Client talks to the WhatsApp Cloud (Graph) API.
type Client struct {
	token   string
	phoneID string
	baseURL string
	http    *http.Client
}

// NewClient builds a Graph API client from configuration.
func NewClient(cfg config.WhatsAppConfig) *Client {
	base := cfg.GraphBaseURL
	if base == "" {
		base = defaultGraphBaseURL
	}
	return &Client{
		token:   cfg.Token,
		phoneID: cfg.PhoneID,
		baseURL: base,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Send converts a message descriptor into a Cloud API request and posts it.
func (c *Client) Send(ctx context.Context, msg Message) error {
	body, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	start := time.Now()
	err = c.post(ctx, endpoint, body)
	logger.WA.Log(ctx, levelFor(err), "message send",
		slog.String("event", "wa.send"),
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	return err
}

// MediaURL resolves a media id into a short-lived download URL.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.baseURL, mediaID), nil)
	if err != nil {
		return "", fmt.Errorf("media url request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("media url lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media url lookup: unexpected status %d", resp.StatusCode)
	}

	var decoded struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("media url decode: %w", err)
	}
	return decoded.URL, nil
}

// DownloadMedia fetches the raw bytes behind a resolved media URL.
func (c *Client) DownloadMedia(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("media download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

func levelFor(err error) slog.Level {
	if err != nil {
		return slog.LevelError
	}
	return slog.LevelDebug
}

// encodeMessage renders the Cloud API JSON for a message descriptor.
func encodeMessage(msg Message) ([]byte, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                msg.To,
	}

	switch msg.Kind {
	case MessageText:
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": msg.Body}

	case MessageTemplate:
		params := make([]map[string]string, 0, len(msg.TemplateParams))
		for _, p := range msg.TemplateParams {
			params = append(params, map[string]string{"type": "text", "text": p})
		}
		payload["type"] = "template"
		payload["template"] = map[string]any{
			"name":     msg.Template,
			"language": map[string]string{"code": "en"},
			"components": []map[string]any{
				{"type": "body", "parameters": params},
			},
		}

	case MessageButtons:
		buttons := make([]map[string]any, 0, len(msg.Buttons))
		for _, b := range msg.Buttons {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]string{"id": b.ID, "title": b.Title},
			})
		}
		interactive := map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": msg.Body},
			"action": map[string]any{"buttons": buttons},
		}
		if msg.Header != "" {
			interactive["header"] = map[string]string{"type": "text", "text": msg.Header}
		}
		payload["type"] = "interactive"
		payload["interactive"] = interactive

	case MessageList:
		sections := make([]map[string]any, 0, len(msg.Sections))
		for _, s := range msg.Sections {
			rows := make([]map[string]string, 0, len(s.Rows))
			for _, r := range s.Rows {
				row := map[string]string{"id": r.ID, "title": r.Title}
				if r.Description != "" {
					row["description"] = r.Description
				}
				rows = append(rows, row)
			}
			sections = append(sections, map[string]any{"title": s.Title, "rows": rows})
		}
		payload["type"] = "interactive"
		payload["interactive"] = map[string]any{
			"type":   "list",
			"body":   map[string]string{"text": msg.Body},
			"action": map[string]any{"button": msg.ButtonText, "sections": sections},
		}

	default:
		return nil, fmt.Errorf("unsupported message kind %q", msg.Kind)
	}

	return json.Marshal(payload)
}
