package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jobinfo/wabot/core/logger"
)

// Dispatcher handles one normalized event and returns the outbound messages
// produced by the conversation engine.
type Dispatcher interface {
	Handle(ctx context.Context, ev Event) ([]Message, error)
}

// WebhookHandler terminates the Cloud API webhook: the GET verification
// handshake and the POST event feed. Signature verification lives here;
// the dispatcher receives only authenticated events.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	dispatcher  Dispatcher
	sender      Sender
}

// NewWebhookHandler wires the webhook boundary.
func NewWebhookHandler(verifyToken, appSecret string, dispatcher Dispatcher, sender Sender) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		dispatcher:  dispatcher,
		sender:      sender,
	}
}

// Register mounts the webhook routes on the router.
func (h *WebhookHandler) Register(r *mux.Router) {
	r.HandleFunc("/webhook", h.verify).Methods(http.MethodGet)
	r.HandleFunc("/webhook", h.receive).Methods(http.MethodPost)
}

// verify answers Meta's subscription handshake by echoing hub.challenge.
func (h *WebhookHandler) verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		logger.WA.Info("webhook verified", slog.String("event", "wa.verify"))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge))
		return
	}
	http.Error(w, "verification token mismatch", http.StatusForbidden)
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	// Skip signature enforcement when no secret is configured (dev mode).
	if h.appSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !ValidSignature(h.appSecret, body, sig) {
			logger.WA.Warn("invalid webhook signature", slog.String("event", "wa.signature"))
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	events, err := ParseWebhook(body)
	if err != nil {
		logger.WA.Warn("unexpected payload structure",
			slog.String("event", "wa.parse"),
			slog.String("err", err.Error()),
		)
		// Still 200 so Meta does not retry an unparseable body.
		writeOK(w)
		return
	}

	for _, ev := range events {
		h.process(r.Context(), ev)
	}
	writeOK(w)
}

// process runs one event through the engine and attempts delivery of every
// outbound message before the webhook returns. State commit and message
// emission are treated as one unit from the caller's perspective.
func (h *WebhookHandler) process(ctx context.Context, ev Event) {
	messages, err := h.dispatcher.Handle(ctx, ev)
	if err != nil {
		logger.WA.Error("dispatch failed",
			slog.String("event", "wa.dispatch"),
			slog.String("rid", ev.RequestID),
			slog.String("sender", ev.Sender),
			slog.String("err", err.Error()),
		)
		return
	}
	for _, msg := range messages {
		if err := h.sender.Send(ctx, msg); err != nil {
			logger.WA.Error("outbound send failed",
				slog.String("event", "wa.send"),
				slog.String("rid", ev.RequestID),
				slog.String("to", msg.To),
				slog.String("err", err.Error()),
			)
		}
	}
}

// ValidSignature checks the X-Hub-Signature-256 HMAC header against the body.
func ValidSignature(appSecret string, body []byte, header string) bool {
	expected := strings.TrimPrefix(header, "sha256=")
	if expected == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(expected))
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
