package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func wrapMessage(msg string) []byte {
	return []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [` + msg + `]
				}
			}]
		}]
	}`)
}

func TestParseWebhookText(t *testing.T) {
	events, err := ParseWebhook(wrapMessage(`{
		"from": "15550001",
		"type": "text",
		"timestamp": "1700000000",
		"text": {"body": "hello"}
	}`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	require.Equal(t, KindText, ev.Kind)
	require.Equal(t, "15550001", ev.Sender)
	require.Equal(t, "hello", ev.Text)
	require.Equal(t, int64(1700000000), ev.Timestamp.Unix())
	require.NotEmpty(t, ev.RequestID)
}

func TestParseWebhookButtonReply(t *testing.T) {
	events, err := ParseWebhook(wrapMessage(`{
		"from": "15550001",
		"type": "interactive",
		"interactive": {
			"type": "button_reply",
			"button_reply": {"id": "btn_post_vacancy"}
		}
	}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, KindButtonReply, events[0].Kind)
	require.Equal(t, "btn_post_vacancy", events[0].ButtonID)
}

func TestParseWebhookTemplateButtonMapped(t *testing.T) {
	events, err := ParseWebhook(wrapMessage(`{
		"from": "15550001",
		"type": "button",
		"button": {"payload": "Post Vacancy"}
	}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, KindButtonReply, events[0].Kind)
	require.Equal(t, "btn_post_vacancy", events[0].ButtonID)
}

func TestParseWebhookFlowCompletion(t *testing.T) {
	events, err := ParseWebhook(wrapMessage(`{
		"from": "15550001",
		"type": "interactive",
		"interactive": {
			"type": "nfm_reply",
			"nfm_reply": {"response_json": "{\"name\":\"Arun\",\"age\":30,\"remote\":true}"}
		}
	}`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	require.Equal(t, KindFlowCompletion, ev.Kind)
	require.Equal(t, "Arun", ev.Fields["name"])
	require.Equal(t, "30", ev.Fields["age"])
	require.Equal(t, "true", ev.Fields["remote"])
}

func TestParseWebhookDocument(t *testing.T) {
	events, err := ParseWebhook(wrapMessage(`{
		"from": "15550001",
		"type": "document",
		"document": {"id": "media-1", "mime_type": "application/pdf"}
	}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, KindMedia, events[0].Kind)
	require.Equal(t, "media-1", events[0].MediaID)
	require.Equal(t, "application/pdf", events[0].MimeType)
}

func TestParseWebhookUnknownTypeAndStatuses(t *testing.T) {
	events, err := ParseWebhook([]byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"statuses": [{"id": "wamid.1", "status": "delivered"}],
					"messages": [{"from": "15550001", "type": "sticker"}]
				}
			}]
		}]
	}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, KindUnknown, events[0].Kind)
}

func TestParseWebhookRejectsGarbage(t *testing.T) {
	_, err := ParseWebhook([]byte(`not json`))
	require.Error(t, err)
}
