package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/harborlab/leasealert/internal/channel"
	"github.com/harborlab/leasealert/internal/dlq"
	"github.com/harborlab/leasealert/internal/pipeline"
	"github.com/harborlab/leasealert/internal/runner"
)

type scriptedHandler struct {
	mu       sync.Mutex
	failures int // invocations that fail before one succeeds; -1 = always fail
	calls    int
	done     chan struct{} // closed on first terminal outcome
	once     sync.Once
}

func (h *scriptedHandler) Handle(_ context.Context, _ []byte) (*pipeline.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	res := &pipeline.Result{EventID: "evt-1", EventType: "LeaseExpired"}
	if h.failures == -1 || h.calls <= h.failures {
		res.State = pipeline.StateFailed
		return res, &channel.RetryableError{Channel: "chat", Reason: "endpoint returned 503"}
	}
	res.State = pipeline.StateCompleted
	h.once.Do(func() { close(h.done) })
	return res, nil
}

type recordingDLQ struct {
	mu      sync.Mutex
	entries []dlq.Entry
	done    chan struct{}
}

func (d *recordingDLQ) Append(_ context.Context, e dlq.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, e)
	close(d.done)
	return nil
}

func testConfig() runner.Config {
	return runner.Config{
		Workers:           2,
		QueueDepth:        16,
		InvocationTimeout: time.Second,
		PlatformAttempts:  3,
		RedeliveryDelay:   time.Millisecond,
	}
}

func TestRunnerRedeliversUntilSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := &scriptedHandler{failures: 2, done: make(chan struct{})}
	d := &recordingDLQ{done: make(chan struct{})}
	r := runner.New(ctx, h, d, testConfig())

	if !r.Submit([]byte(`{"id": "evt-1", "type": "LeaseExpired", "detail": {}}`)) {
		t.Fatal("Submit rejected")
	}

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never succeeded")
	}
	r.Drain()

	if h.calls != 3 {
		t.Errorf("handler calls = %d, want 3", h.calls)
	}
	if len(d.entries) != 0 {
		t.Errorf("dead letters = %d, want 0", len(d.entries))
	}
}

func TestRunnerDeadLettersOnExhaustion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := &scriptedHandler{failures: -1, done: make(chan struct{})}
	d := &recordingDLQ{done: make(chan struct{})}
	r := runner.New(ctx, h, d, testConfig())

	r.Submit([]byte(`{"id": "evt-1", "type": "LeaseExpired", "detail": {}}`))

	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was never dead-lettered")
	}
	r.Drain()

	if len(d.entries) != 1 {
		t.Fatalf("dead letters = %d, want exactly 1", len(d.entries))
	}
	e := d.entries[0]
	if e.EventID != "evt-1" || e.EventType != "LeaseExpired" {
		t.Errorf("entry identity = %s/%s", e.EventID, e.EventType)
	}
	if e.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", e.Attempts)
	}
	if e.FirstFailedAt.IsZero() {
		t.Error("FirstFailedAt not set")
	}
	if e.FailureReason == "" {
		t.Error("FailureReason empty")
	}
}

func TestRunnerQueueFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	h := &blockingHandler{block: block}
	conf := runner.Config{
		Workers:           1,
		QueueDepth:        1,
		InvocationTimeout: time.Second,
		PlatformAttempts:  1,
		RedeliveryDelay:   time.Millisecond,
	}
	r := runner.New(ctx, h, &recordingDLQ{done: make(chan struct{})}, conf)

	// First submit is picked up by the worker (and blocks), second fills
	// the queue, third must be rejected.
	r.Submit([]byte(`{}`))
	h.wait()
	r.Submit([]byte(`{}`))
	if r.Submit([]byte(`{}`)) {
		t.Error("Submit should reject when the queue is full")
	}
	if r.QueueUtilization() != 1 {
		t.Errorf("QueueUtilization = %v, want 1", r.QueueUtilization())
	}

	close(block)
	r.Drain()
}

type blockingHandler struct {
	block chan struct{}
}

func (h *blockingHandler) Handle(_ context.Context, _ []byte) (*pipeline.Result, error) {
	<-h.block
	return &pipeline.Result{State: pipeline.StateCompleted}, nil
}

func (h *blockingHandler) wait() {
	// Give the single worker a beat to dequeue the first event.
	time.Sleep(50 * time.Millisecond)
}
