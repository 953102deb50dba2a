package whatsapp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jobinfo/wabot/core/logger"
)

// Kind identifies the shape of a normalized inbound event.
type Kind string

const (
	// KindText is a plain text message.
	KindText Kind = "text"
	// KindButtonReply is a quick-reply button press (interactive or template).
	KindButtonReply Kind = "button_reply"
	// KindListReply is an interactive list selection.
	KindListReply Kind = "list_reply"
	// KindFlowCompletion is a WhatsApp Flow completion payload (nfm_reply).
	KindFlowCompletion Kind = "flow_completion"
	// KindMedia is a document upload.
	KindMedia Kind = "media"
	// KindUnknown covers message types the engine does not interpret.
	KindUnknown Kind = "unknown"
)

// Event is one normalized inbound unit handed to the dispatcher. Exactly the
// fields matching Kind are populated.
type Event struct {
	RequestID string
	Sender    string
	Kind      Kind
	Timestamp time.Time

	Text      string            // KindText
	ButtonID  string            // KindButtonReply
	ListRowID string            // KindListReply
	Fields    map[string]string // KindFlowCompletion
	MediaID   string            // KindMedia
	MimeType  string            // KindMedia
}

// Template button payloads are mapped onto the same button ids used by
// interactive quick replies so the dispatcher sees a single vocabulary.
var templateButtonIDs = map[string]string{
	"Post Vacancy": "btn_post_vacancy",
	"My Vacancies": "btn_my_vacancies",
}

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []rawMessage `json:"messages"`
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type rawMessage struct {
	From      string `json:"from"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID string `json:"id"`
		} `json:"button_reply"`
		ListReply *struct {
			ID string `json:"id"`
		} `json:"list_reply"`
		NfmReply *struct {
			ResponseJSON string `json:"response_json"`
		} `json:"nfm_reply"`
	} `json:"interactive"`
	Document *struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
	} `json:"document"`
	Button *struct {
		Payload string `json:"payload"`
	} `json:"button"`
}

// ParseWebhook converts a raw Cloud API webhook body into zero or more
// normalized events. Status updates (delivered, read) are skipped.
func ParseWebhook(body []byte) ([]Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("webhook payload: %w", err)
	}

	var events []Event
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, status := range change.Value.Statuses {
				logger.WA.Debug("status update skipped",
					slog.String("event", "wa.status"),
					slog.String("status", status.Status),
					slog.String("msg_id", status.ID),
				)
			}
			for _, msg := range change.Value.Messages {
				events = append(events, normalizeMessage(msg))
			}
		}
	}
	return events, nil
}

func normalizeMessage(msg rawMessage) Event {
	ev := Event{
		RequestID: uuid.NewString(),
		Sender:    msg.From,
		Kind:      KindUnknown,
		Timestamp: parseTimestamp(msg.Timestamp),
	}

	switch msg.Type {
	case "text":
		if msg.Text != nil {
			ev.Kind = KindText
			ev.Text = msg.Text.Body
		}
	case "interactive":
		if msg.Interactive == nil {
			break
		}
		switch msg.Interactive.Type {
		case "button_reply":
			if msg.Interactive.ButtonReply != nil {
				ev.Kind = KindButtonReply
				ev.ButtonID = msg.Interactive.ButtonReply.ID
			}
		case "list_reply":
			if msg.Interactive.ListReply != nil {
				ev.Kind = KindListReply
				ev.ListRowID = msg.Interactive.ListReply.ID
			}
		case "nfm_reply":
			if msg.Interactive.NfmReply != nil {
				ev.Kind = KindFlowCompletion
				ev.Fields = decodeFlowFields(msg.Interactive.NfmReply.ResponseJSON)
			}
		}
	case "document":
		if msg.Document != nil {
			ev.Kind = KindMedia
			ev.MediaID = msg.Document.ID
			ev.MimeType = msg.Document.MimeType
		}
	case "button":
		if msg.Button != nil {
			ev.Kind = KindButtonReply
			ev.ButtonID = msg.Button.Payload
			if mapped, ok := templateButtonIDs[msg.Button.Payload]; ok {
				ev.ButtonID = mapped
			}
		}
	}

	return ev
}

// decodeFlowFields flattens the flow-builder response into string fields.
// Non-string values are kept via their JSON rendering.
func decodeFlowFields(responseJSON string) map[string]string {
	fields := make(map[string]string)
	if responseJSON == "" {
		return fields
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(responseJSON), &raw); err != nil {
		logger.WA.Warn("flow response not decodable",
			slog.String("event", "wa.flow_reply"),
			slog.String("err", err.Error()),
		)
		return fields
	}
	for key, val := range raw {
		switch v := val.(type) {
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			if encoded, err := json.Marshal(v); err == nil {
				fields[key] = string(encoded)
			}
		}
	}
	return fields
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
