package render_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/harborlab/leasealert/internal/classify"
	"github.com/harborlab/leasealert/internal/enrich"
	"github.com/harborlab/leasealert/internal/event"
	"github.com/harborlab/leasealert/internal/render"
)

func makeEnvelope(typ, detail string) *event.Envelope {
	return &event.Envelope{ID: "evt-1", Type: typ, Detail: json.RawMessage(detail)}
}

func fullContext() enrich.Context {
	return enrich.Context{
		AccountID:    "A1",
		AccountLabel: "research-team",
		OwnerEmail:   "sam@example.com",
		LeaseID:      "L1",
		LeaseOwner:   "sam",
		BudgetUsed:   "42",
		BudgetLimit:  "100",
	}
}

// The mention marker must appear exactly once for mention-all
// classifications and not at all otherwise.
func TestChatMentionMarker(t *testing.T) {
	env := makeEnvelope("AccountQuarantined", `{"accountId": "A1", "reason": "abuse"}`)
	ec := fullContext()

	critical := render.Chat(env, ec, classify.Classify("AccountQuarantined"))
	if !strings.HasPrefix(critical.Text, render.Mention+" ") {
		t.Errorf("critical text does not start with mention: %q", critical.Text)
	}
	if strings.Count(critical.Text, render.Mention) != 1 {
		t.Errorf("mention appears %d times, want 1", strings.Count(critical.Text, render.Mention))
	}

	routine := render.Chat(makeEnvelope("LeaseApproved", `{"accountId": "A1", "leaseId": "L1"}`), ec, classify.Classify("LeaseApproved"))
	if strings.Contains(routine.Text, render.Mention) {
		t.Errorf("routine text contains mention: %q", routine.Text)
	}
}

// Every critical type broadcasts exactly once; every routine type stays
// quiet. Keyed off priority so a table entry cannot silently decouple the
// two.
func TestChatMentionForAllKnownTypes(t *testing.T) {
	ec := fullContext()
	for _, typ := range classify.Types() {
		cls := classify.Classify(typ)
		p := render.Chat(makeEnvelope(typ, `{"accountId": "A1"}`), ec, cls)
		count := strings.Count(p.Text, render.Mention)
		if cls.Priority == classify.Critical && count != 1 {
			t.Errorf("critical type %s: mention count = %d, want 1 (text=%q)", typ, count, p.Text)
		}
		if cls.Priority == classify.Routine && count != 0 {
			t.Errorf("routine type %s: mention count = %d, want 0 (text=%q)", typ, count, p.Text)
		}
	}
}

func TestChatDegradedContextUsesPlaceholders(t *testing.T) {
	ec := enrich.Context{
		AccountID:    "A1",
		AccountLabel: enrich.Placeholder,
		LeaseID:      "L1",
		LeaseOwner:   enrich.Placeholder,
		BudgetUsed:   enrich.Placeholder,
		BudgetLimit:  enrich.Placeholder,
		Degraded:     true,
	}
	p := render.Chat(makeEnvelope("LeaseExpired", `{"accountId": "A1", "leaseId": "L1"}`), ec, classify.Classify("LeaseExpired"))
	if !strings.Contains(p.Text, "A1") {
		t.Errorf("degraded text should fall back to the account id: %q", p.Text)
	}
	if !strings.Contains(p.Text, "(partial context)") {
		t.Errorf("degraded text should be flagged: %q", p.Text)
	}
	if strings.Contains(p.Text, "Budget:") {
		t.Errorf("unknown budget must not be rendered: %q", p.Text)
	}
}

func TestEmailMappedTemplate(t *testing.T) {
	env := makeEnvelope("LeaseApproved", `{"accountId": "A1", "leaseId": "L1"}`)
	p, ok := render.Email(env, fullContext(), classify.Classify("LeaseApproved"))
	if !ok {
		t.Fatal("LeaseApproved should have an email template")
	}
	if p.TemplateID != "lease-approved" {
		t.Errorf("TemplateID = %q", p.TemplateID)
	}
	if p.Recipient != "sam@example.com" {
		t.Errorf("Recipient = %q", p.Recipient)
	}
	if p.Personalization["account_label"] != "research-team" {
		t.Errorf("account_label = %q", p.Personalization["account_label"])
	}
	if p.Personalization["lease_id"] != "L1" {
		t.Errorf("lease_id = %q", p.Personalization["lease_id"])
	}
}

func TestEmailUnmappedTypeYieldsNothing(t *testing.T) {
	env := makeEnvelope("LeaseExpired", `{"accountId": "A1", "leaseId": "L1"}`)
	if _, ok := render.Email(env, fullContext(), classify.Classify("LeaseExpired")); ok {
		t.Fatal("LeaseExpired has no template; Email should report false")
	}
}

// Scenario from the operational runbook: quarantine is critical and starts
// with the broadcast mention.
func TestScenarioAccountQuarantined(t *testing.T) {
	env := makeEnvelope("AccountQuarantined", `{"accountId": "A1"}`)
	cls := classify.Classify("AccountQuarantined")
	if cls.Priority != classify.Critical || !cls.MentionAll {
		t.Fatalf("classification = %+v", cls)
	}
	p := render.Chat(env, fullContext(), cls)
	if !strings.HasPrefix(p.Text, render.Mention) {
		t.Errorf("text = %q, want mention prefix", p.Text)
	}
}

func TestScenarioLeaseApproved(t *testing.T) {
	env := makeEnvelope("LeaseApproved", `{"accountId": "A1", "leaseId": "L1"}`)
	cls := classify.Classify("LeaseApproved")
	if cls.Priority != classify.Routine || cls.MentionAll {
		t.Fatalf("classification = %+v", cls)
	}
	p := render.Chat(env, fullContext(), cls)
	if strings.Contains(p.Text, render.Mention) {
		t.Errorf("text = %q, want no mention", p.Text)
	}
}
