// internal/domain/whatsapp/client.go
package whatsapp

import "context"

// Button is a quick-reply button attached to an outbound text message.
type Button struct {
	ID    string
	Title string
}

// Client defines an interface for sending messages over the WhatsApp
// Business transport. This decouples the application logic from the Cloud
// API HTTP client. Every method returns the provider-assigned message id,
// which callers record for reply correlation.
type Client interface {
	SendText(ctx context.Context, to, body string, buttons ...Button) (string, error)
	SendTemplate(ctx context.Context, to, templateName string, params []string) (string, error)
	SendDocument(ctx context.Context, to, mediaID, filename, caption string) (string, error)
}
