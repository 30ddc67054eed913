// Package email delivers transactional template sends via the mail
// provider's HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/harborlab/leasealert/internal/channel"
)

// apiRequest is the provider's template-send body: a template identifier
// and a flat key/value personalization map.
type apiRequest struct {
	TemplateID      string            `json:"template_id"`
	To              string            `json:"to"`
	Personalization map[string]string `json:"personalization"`
}

// Sender calls the transactional email API.
type Sender struct {
	baseURL string
	apiKey  string
	// fallback recipient for events whose account has no owner email
	// on record (degraded enrichment).
	defaultRecipient string
	client           *http.Client
}

func New(baseURL, apiKey, defaultRecipient string, timeout time.Duration) *Sender {
	return &Sender{
		baseURL:          baseURL,
		apiKey:           apiKey,
		defaultRecipient: defaultRecipient,
		client:           &http.Client{Timeout: timeout},
	}
}

func (s *Sender) Name() string { return "email" }

// Send performs one template-send call per payload.
func (s *Sender) Send(ctx context.Context, p channel.Payload) error {
	msg, ok := p.(channel.EmailPayload)
	if !ok {
		return &channel.FatalError{Channel: s.Name(), Reason: fmt.Sprintf("unexpected payload type %T", p)}
	}

	to := msg.Recipient
	if to == "" {
		to = s.defaultRecipient
	}
	if to == "" {
		return &channel.FatalError{Channel: s.Name(), Reason: "no recipient and no default configured"}
	}

	body, err := json.Marshal(apiRequest{
		TemplateID:      msg.TemplateID,
		To:              to,
		Personalization: msg.Personalization,
	})
	if err != nil {
		return &channel.FatalError{Channel: s.Name(), Reason: fmt.Sprintf("encode payload: %s", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/mail/template", bytes.NewReader(body))
	if err != nil {
		return &channel.FatalError{Channel: s.Name(), Reason: fmt.Sprintf("build request: %s", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return channel.TransportError(s.Name(), err)
	}
	defer resp.Body.Close()

	return channel.ErrorFromStatus(s.Name(), resp.StatusCode)
}
