// Package chat delivers rendered messages to a channel webhook.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/harborlab/leasealert/internal/channel"
)

// Sender POSTs chat payloads to a webhook URL.
type Sender struct {
	webhookURL string
	client     *http.Client
}

// New creates a chat sender. The timeout bounds the full round trip; a
// timed-out send surfaces as a retryable error.
func New(webhookURL string, timeout time.Duration) *Sender {
	return &Sender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Sender) Name() string { return "chat" }

// Send performs one webhook POST per payload.
func (s *Sender) Send(ctx context.Context, p channel.Payload) error {
	msg, ok := p.(channel.ChatPayload)
	if !ok {
		return &channel.FatalError{Channel: s.Name(), Reason: fmt.Sprintf("unexpected payload type %T", p)}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return &channel.FatalError{Channel: s.Name(), Reason: fmt.Sprintf("encode payload: %s", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return &channel.FatalError{Channel: s.Name(), Reason: fmt.Sprintf("build request: %s", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return channel.TransportError(s.Name(), err)
	}
	defer resp.Body.Close()

	return channel.ErrorFromStatus(s.Name(), resp.StatusCode)
}
