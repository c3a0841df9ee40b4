package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/providers/kontext"
	"server/internal/stream"
)

type fakeJobClient struct {
	submit func(context.Context, []byte, string) (string, error)
	poll   func(context.Context, string) (*kontext.PollResult, error)

	submits int
	polls   int
}

func (f *fakeJobClient) Submit(ctx context.Context, image []byte, prompt string) (string, error) {
	f.submits++
	if f.submit != nil {
		return f.submit(ctx, image, prompt)
	}
	return "job-1", nil
}

func (f *fakeJobClient) Poll(ctx context.Context, id string) (*kontext.PollResult, error) {
	f.polls++
	if f.poll != nil {
		return f.poll(ctx, id)
	}
	return &kontext.PollResult{Status: kontext.StatusReady, Sample: "https://cdn.example/out.jpg"}, nil
}

func noWait(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func newTestOrchestrator(client JobClient) *Orchestrator {
	return New(Options{Client: client, MaxAttempts: 60, PollInterval: time.Millisecond, Wait: noWait})
}

func pendingThenReady(pending int) func(context.Context, string) (*kontext.PollResult, error) {
	calls := 0
	return func(ctx context.Context, id string) (*kontext.PollResult, error) {
		calls++
		if calls <= pending {
			return &kontext.PollResult{Status: kontext.StatusPending}, nil
		}
		return &kontext.PollResult{Status: kontext.StatusReady, Sample: "https://cdn.example/out.jpg"}, nil
	}
}

func TestRunReturnsOneResultPerPromptInOrder(t *testing.T) {
	client := &fakeJobClient{}
	sink := &stream.MemorySink{}
	prompts := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}

	results := newTestOrchestrator(client).Run(context.Background(), []byte("img"), prompts, sink)

	if len(results) != 8 {
		t.Fatalf("result count = %d, want 8", len(results))
	}
	for i, r := range results {
		if r.Iteration != i+1 {
			t.Fatalf("results[%d].Iteration = %d, want %d", i, r.Iteration, i+1)
		}
		if r.Prompt != prompts[i] {
			t.Fatalf("results[%d].Prompt = %q, want %q", i, r.Prompt, prompts[i])
		}
		if r.Status != domain.IterationCompleted {
			t.Fatalf("results[%d].Status = %q", i, r.Status)
		}
	}
}

func TestRunEventOrdering(t *testing.T) {
	client := &fakeJobClient{}
	sink := &stream.MemorySink{}

	newTestOrchestrator(client).Run(context.Background(), []byte("img"), []string{"p1", "p2"}, sink)

	events := sink.Events()
	if len(events) != 4 {
		t.Fatalf("event count = %d: %+v", len(events), events)
	}
	wantTypes := []stream.EventType{
		stream.EventIterationStart,
		stream.EventIterationComplete,
		stream.EventIterationStart,
		stream.EventIterationComplete,
	}
	wantIterations := []int{1, 1, 2, 2}
	for i, ev := range events {
		if ev.Type != wantTypes[i] || ev.Iteration != wantIterations[i] {
			t.Fatalf("events[%d] = %+v, want type %q iteration %d", i, ev, wantTypes[i], wantIterations[i])
		}
	}
}

func TestPollBoundaryLastAttemptCompletes(t *testing.T) {
	client := &fakeJobClient{poll: pendingThenReady(59)}

	results := newTestOrchestrator(client).Run(context.Background(), []byte("img"), []string{"p"}, nil)

	if results[0].Status != domain.IterationCompleted {
		t.Fatalf("status = %q, want completed (message %q)", results[0].Status, results[0].Message)
	}
	if client.polls != 60 {
		t.Fatalf("poll count = %d, want 60", client.polls)
	}
}

func TestPollBoundaryExhaustionTimesOut(t *testing.T) {
	client := &fakeJobClient{poll: pendingThenReady(60)}

	results := newTestOrchestrator(client).Run(context.Background(), []byte("img"), []string{"p"}, nil)

	if results[0].Status != domain.IterationError {
		t.Fatalf("status = %q, want error", results[0].Status)
	}
	if !strings.Contains(results[0].Message, domain.ErrPollTimeout.Error()) {
		t.Fatalf("message = %q, want timeout message", results[0].Message)
	}
	if client.polls != 60 {
		t.Fatalf("poll count = %d, want 60", client.polls)
	}
}

func TestSubmitFailureSkipsPolling(t *testing.T) {
	client := &fakeJobClient{
		submit: func(ctx context.Context, image []byte, prompt string) (string, error) {
			return "", errors.New("bad request")
		},
	}
	sink := &stream.MemorySink{}

	results := newTestOrchestrator(client).Run(context.Background(), []byte("img"), []string{"p1", "p2"}, sink)

	if client.polls != 0 {
		t.Fatalf("poll count = %d, want 0", client.polls)
	}
	if client.submits != 2 {
		t.Fatalf("submit count = %d, want 2 (batch must continue)", client.submits)
	}
	for i, r := range results {
		if r.Status != domain.IterationError {
			t.Fatalf("results[%d].Status = %q, want error", i, r.Status)
		}
	}
}

func TestModerationIsTerminalWithoutRetry(t *testing.T) {
	client := &fakeJobClient{
		poll: func(ctx context.Context, id string) (*kontext.PollResult, error) {
			return &kontext.PollResult{Status: kontext.StatusModerated, Detail: "Content Moderated"}, nil
		},
	}
	sink := &stream.MemorySink{}

	results := newTestOrchestrator(client).Run(context.Background(), []byte("img"), []string{"p"}, sink)

	if results[0].Status != domain.IterationModerated {
		t.Fatalf("status = %q, want moderated", results[0].Status)
	}
	if client.submits != 1 || client.polls != 1 {
		t.Fatalf("submit/poll counts = %d/%d, want 1/1", client.submits, client.polls)
	}
	events := sink.Events()
	if events[len(events)-1].Type != stream.EventIterationModerated {
		t.Fatalf("terminal event = %+v", events[len(events)-1])
	}
}

func TestProviderErrorIsIterationLocal(t *testing.T) {
	calls := 0
	client := &fakeJobClient{
		poll: func(ctx context.Context, id string) (*kontext.PollResult, error) {
			calls++
			if calls == 1 {
				return &kontext.PollResult{Status: kontext.StatusError, Detail: "internal failure"}, nil
			}
			return &kontext.PollResult{Status: kontext.StatusReady, Sample: "https://cdn.example/out.jpg"}, nil
		},
	}

	results := newTestOrchestrator(client).Run(context.Background(), []byte("img"), []string{"p1", "p2"}, nil)

	if results[0].Status != domain.IterationError {
		t.Fatalf("results[0].Status = %q, want error", results[0].Status)
	}
	if !strings.Contains(results[0].Message, "internal failure") {
		t.Fatalf("results[0].Message = %q", results[0].Message)
	}
	if results[1].Status != domain.IterationCompleted {
		t.Fatalf("results[1].Status = %q, want completed", results[1].Status)
	}
}

func TestPollTransportFailureIsIterationLocal(t *testing.T) {
	client := &fakeJobClient{
		poll: func(ctx context.Context, id string) (*kontext.PollResult, error) {
			return nil, errors.New("connection reset")
		},
	}

	results := newTestOrchestrator(client).Run(context.Background(), []byte("img"), []string{"p1", "p2"}, nil)

	if len(results) != 2 {
		t.Fatalf("result count = %d, want 2", len(results))
	}
	for i, r := range results {
		if r.Status != domain.IterationError {
			t.Fatalf("results[%d].Status = %q, want error", i, r.Status)
		}
	}
	// One poll per iteration: transport failures are terminal, not retried.
	if client.polls != 2 {
		t.Fatalf("poll count = %d, want 2", client.polls)
	}
}
