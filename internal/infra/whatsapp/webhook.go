// internal/infra/whatsapp/webhook.go
package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"lecture_coordinator_bot/internal/domain/event"
	"lecture_coordinator_bot/internal/infra/logger"
)

// EventHandler consumes inbound events lifted out of the webhook envelope.
type EventHandler interface {
	HandleInbound(ctx context.Context, ev *event.Inbound)
}

// webhookPayload mirrors the Cloud API webhook envelope down to the parts we
// consume. Everything else (statuses, contacts, metadata) is ignored.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Type    string `json:"type"`
	Context *struct {
		ID string `json:"id"`
	} `json:"context"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Button *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		NfmReply *struct {
			ResponseJSON string `json:"response_json"`
		} `json:"nfm_reply"`
	} `json:"interactive"`
	Document *struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		MimeType string `json:"mime_type"`
		Caption  string `json:"caption"`
	} `json:"document"`
}

// WebhookHandler terminates the Cloud API webhook: GET verification plus
// POST event delivery. It always answers POSTs with 200 so the transport
// never re-delivers because of our own processing failures.
type WebhookHandler struct {
	verifyToken string
	handler     EventHandler
}

func NewWebhookHandler(verifyToken string, handler EventHandler) *WebhookHandler {
	return &WebhookHandler{verifyToken: verifyToken, handler: handler}
}

// Register mounts the webhook routes on the given router.
func (h *WebhookHandler) Register(r *gin.Engine) {
	r.GET("/webhook", h.verify)
	r.POST("/webhook", h.receive)
}

func (h *WebhookHandler) verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

func (h *WebhookHandler) receive(c *gin.Context) {
	var payload webhookPayload
	if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
		logger.Log.Warn("Failed to decode webhook payload: ", err)
		c.Status(http.StatusOK)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for i := range change.Value.Messages {
				ev := liftInbound(&change.Value.Messages[i])
				if ev == nil {
					continue
				}
				h.handler.HandleInbound(c.Request.Context(), ev)
			}
		}
	}
	c.Status(http.StatusOK)
}

// liftInbound maps one raw webhook message to a domain event, or nil for
// message types the coordinator does not consume.
func liftInbound(m *inboundMessage) *event.Inbound {
	ev := &event.Inbound{
		ID:   m.ID,
		From: m.From,
	}
	if m.Context != nil {
		ev.ReplyTo = m.Context.ID
	}

	switch m.Type {
	case "text":
		if m.Text == nil {
			return nil
		}
		ev.Kind = event.KindText
		ev.Text = m.Text.Body
	case "button":
		if m.Button == nil {
			return nil
		}
		ev.Kind = event.KindButton
		ev.ButtonTitle = m.Button.Text
		ev.ButtonID = m.Button.Payload
	case "interactive":
		if m.Interactive == nil {
			return nil
		}
		switch {
		case m.Interactive.ButtonReply != nil:
			ev.Kind = event.KindInteractiveButton
			ev.ButtonTitle = m.Interactive.ButtonReply.Title
			ev.ButtonID = m.Interactive.ButtonReply.ID
		case m.Interactive.NfmReply != nil:
			ev.Kind = event.KindFormReply
			ev.FormJSON = m.Interactive.NfmReply.ResponseJSON
		default:
			return nil
		}
	case "document":
		if m.Document == nil {
			return nil
		}
		ev.Kind = event.KindDocument
		ev.Document = &event.DocumentMeta{
			MediaID:  m.Document.ID,
			FileName: m.Document.Filename,
			MimeType: m.Document.MimeType,
			Caption:  m.Document.Caption,
		}
	default:
		return nil
	}
	return ev
}
