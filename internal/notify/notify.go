package notify

import (
	"context"

	"github.com/kjstillabower/weather-platform/internal/models"
)

// Message is a rendered alert ready for transport.
type Message struct {
	Subject string
	Body    string
}

// Notifier dispatches alert messages to subscribers. Callers treat delivery
// as fire-and-forget: an error is logged by the caller and never retried.
type Notifier interface {
	SendAlert(ctx context.Context, sub models.Subscription, msg Message) error
}
