// Package render builds channel payloads from enriched events. Renderers
// are pure: no I/O, no clocks, independently testable offline.
package render

import (
	"fmt"
	"strings"

	"github.com/harborlab/leasealert/internal/channel"
	"github.com/harborlab/leasealert/internal/classify"
	"github.com/harborlab/leasealert/internal/enrich"
	"github.com/harborlab/leasealert/internal/event"
)

// Mention is the broadcast marker prepended to critical chat messages.
const Mention = "<!channel>"

// templates maps event types to their transactional email template. A type
// absent here yields no email payload, which is not an error.
var templates = map[string]string{
	"LeaseApproved":      "lease-approved",
	"LeaseDenied":        "lease-denied",
	"LeaseExpiring":      "lease-expiring",
	"BudgetExceeded":     "budget-exceeded",
	"AccountQuarantined": "account-quarantined",
}

// Chat renders the chat message for an event. The mention marker is
// prepended exactly once when the classification asks for it, and is
// otherwise entirely absent.
func Chat(env *event.Envelope, ec enrich.Context, cls classify.Classification) channel.ChatPayload {
	var b strings.Builder
	if cls.MentionAll {
		b.WriteString(Mention)
		b.WriteString(" ")
	}
	b.WriteString(summary(env, ec))

	if ec.BudgetUsed != enrich.Placeholder && ec.BudgetLimit != enrich.Placeholder {
		fmt.Fprintf(&b, " Budget: %s/%s USD.", ec.BudgetUsed, ec.BudgetLimit)
	}
	if ec.Degraded {
		b.WriteString(" (partial context)")
	}
	return channel.ChatPayload{Text: b.String()}
}

// Email renders the transactional email for an event, or reports false
// when the event type has no mapped template.
func Email(env *event.Envelope, ec enrich.Context, cls classify.Classification) (channel.EmailPayload, bool) {
	tmpl, ok := templates[env.Type]
	if !ok {
		return channel.EmailPayload{}, false
	}
	return channel.EmailPayload{
		TemplateID: tmpl,
		Recipient:  ec.OwnerEmail,
		Personalization: map[string]string{
			"event_type":    env.Type,
			"account_id":    ec.AccountID,
			"account_label": ec.AccountLabel,
			"lease_id":      ec.LeaseID,
			"lease_owner":   ec.LeaseOwner,
			"budget_used":   ec.BudgetUsed,
			"budget_limit":  ec.BudgetLimit,
			"occurred_at":   env.OccurredAt.Format("2006-01-02 15:04:05 MST"),
			"priority":      string(cls.Priority),
		},
	}, true
}

// summary is the one-line human description of the event.
func summary(env *event.Envelope, ec enrich.Context) string {
	account := ec.AccountLabel
	if account == enrich.Placeholder {
		account = ec.AccountID
	}
	switch env.Type {
	case "LeaseRequested":
		return fmt.Sprintf("Sandbox lease %s requested by account %s.", ec.LeaseID, account)
	case "LeaseApproved":
		return fmt.Sprintf("Sandbox lease %s approved for account %s.", ec.LeaseID, account)
	case "LeaseDenied":
		return fmt.Sprintf("Sandbox lease %s denied for account %s: %s.", ec.LeaseID, account, detailOr(env, "reason"))
	case "LeaseExpiring":
		return fmt.Sprintf("Sandbox lease %s for account %s expires at %s.", ec.LeaseID, account, detailOr(env, "expiresAt"))
	case "LeaseExpired":
		return fmt.Sprintf("Sandbox lease %s for account %s has expired.", ec.LeaseID, account)
	case "BudgetThresholdReached":
		return fmt.Sprintf("Account %s passed a budget threshold.", account)
	case "BudgetExceeded":
		return fmt.Sprintf("Account %s exceeded its budget.", account)
	case "AccountQuarantined":
		return fmt.Sprintf("Account %s has been quarantined: %s.", account, detailOr(env, "reason"))
	case "SandboxProvisionFailed":
		return fmt.Sprintf("Provisioning failed for lease %s (account %s): %s.", ec.LeaseID, account, detailOr(env, "errorCode"))
	default:
		return fmt.Sprintf("Event %s for account %s.", env.Type, account)
	}
}

func detailOr(env *event.Envelope, field string) string {
	if v := env.Field(field); v != "" {
		return v
	}
	return enrich.Placeholder
}
