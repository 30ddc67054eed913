package digest_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/harborlab/leasealert/internal/channel"
	"github.com/harborlab/leasealert/internal/digest"
	"github.com/harborlab/leasealert/internal/dlq"
)

type fakeStore struct {
	entries   []dlq.Entry
	watermark string
	readErr   error
}

func (f *fakeStore) Watermark(_ context.Context) (string, error) {
	return f.watermark, nil
}

func (f *fakeStore) ReadSince(_ context.Context, wm string, limit int64) ([]dlq.Entry, string, error) {
	if f.readErr != nil {
		return nil, wm, f.readErr
	}
	if len(f.entries) == 0 {
		return nil, wm, nil
	}
	n := int64(len(f.entries))
	if n > limit {
		n = limit
	}
	return f.entries[:n], fmt.Sprintf("wm-%d", n), nil
}

func (f *fakeStore) SetWatermark(_ context.Context, wm string) error {
	f.watermark = wm
	return nil
}

type fakeChat struct {
	sent []channel.ChatPayload
	err  error
}

func (f *fakeChat) Name() string { return "chat" }

func (f *fakeChat) Send(_ context.Context, p channel.Payload) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p.(channel.ChatPayload))
	return nil
}

func sameReasonEntries(n int) []dlq.Entry {
	entries := make([]dlq.Entry, n)
	for i := range entries {
		entries[i] = dlq.Entry{
			EventID:       fmt.Sprintf("evt-%d", i),
			EventType:     "AccountQuarantined",
			FailureReason: "chat delivery failed (retryable): endpoint returned 503",
			FirstFailedAt: time.Now(),
			Attempts:      3,
		}
	}
	return entries
}

// Ten accumulated failures of the same reason produce exactly one message
// referencing a count of ten.
func TestRunAggregatesIntoOneMessage(t *testing.T) {
	store := &fakeStore{entries: sameReasonEntries(10)}
	chat := &fakeChat{}
	j := digest.New(store, chat, 100)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chat.sent) != 1 {
		t.Fatalf("sent %d messages, want exactly 1", len(chat.sent))
	}
	text := chat.sent[0].Text
	if !strings.Contains(text, "10 failed deliveries") {
		t.Errorf("summary does not reference the total: %q", text)
	}
	if !strings.Contains(text, "AccountQuarantined") || !strings.Contains(text, ": 10") {
		t.Errorf("summary missing group count: %q", text)
	}
	if store.watermark == "" {
		t.Error("watermark not advanced after send")
	}
}

func TestRunEmptyWindowSendsNothing(t *testing.T) {
	store := &fakeStore{watermark: "wm-old"}
	chat := &fakeChat{}
	j := digest.New(store, chat, 100)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chat.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(chat.sent))
	}
	if store.watermark != "wm-old" {
		t.Errorf("watermark moved on empty run: %q", store.watermark)
	}
}

// A failed summary send must not advance the watermark: the same window
// is retried on the next run.
func TestRunFailedSendKeepsWatermark(t *testing.T) {
	store := &fakeStore{entries: sameReasonEntries(3), watermark: "wm-old"}
	chat := &fakeChat{err: &channel.RetryableError{Channel: "chat", Reason: "endpoint returned 503"}}
	j := digest.New(store, chat, 100)

	if err := j.Run(context.Background()); err == nil {
		t.Fatal("Run should report the failed send")
	}
	if store.watermark != "wm-old" {
		t.Errorf("watermark advanced past an undelivered window: %q", store.watermark)
	}
}

func TestRunReadErrorPropagates(t *testing.T) {
	store := &fakeStore{readErr: errors.New("redis: connection refused")}
	j := digest.New(store, &fakeChat{}, 100)
	if err := j.Run(context.Background()); err == nil {
		t.Fatal("Run should propagate read errors")
	}
}

func TestSummaryGroups(t *testing.T) {
	entries := []dlq.Entry{
		{EventType: "AccountQuarantined", FailureReason: "endpoint returned 503"},
		{EventType: "AccountQuarantined", FailureReason: "endpoint returned 503"},
		{EventType: "BudgetExceeded", FailureReason: "request failed"},
	}
	p := digest.Summary(entries)
	if !strings.Contains(p.Text, "3 failed deliveries") {
		t.Errorf("total missing: %q", p.Text)
	}
	if !strings.Contains(p.Text, "AccountQuarantined - endpoint returned 503: 2") {
		t.Errorf("group line missing: %q", p.Text)
	}
	if !strings.Contains(p.Text, "BudgetExceeded - request failed: 1") {
		t.Errorf("group line missing: %q", p.Text)
	}
	// Larger groups come first.
	if strings.Index(p.Text, "AccountQuarantined") > strings.Index(p.Text, "BudgetExceeded") {
		t.Errorf("groups not ordered by count: %q", p.Text)
	}
}
