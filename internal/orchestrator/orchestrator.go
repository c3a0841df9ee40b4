// Package orchestrator drives the transformation pipeline for one session:
// one external job per prompt, run strictly in order, each polled to a
// terminal state. A bad iteration never takes the rest of the batch down
// with it; moderation and provider errors are recorded and the run moves on.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/kontext"
	"server/internal/stream"
)

// JobClient is the subset of the kontext client the orchestrator depends on.
type JobClient interface {
	Submit(ctx context.Context, image []byte, prompt string) (string, error)
	Poll(ctx context.Context, id string) (*kontext.PollResult, error)
}

// Options configures an Orchestrator.
type Options struct {
	Client       JobClient
	PollInterval time.Duration
	MaxAttempts  int
	Logger       *infra.Logger
	// Wait overrides the inter-poll delay, letting tests run the loop
	// without real sleeps.
	Wait func(ctx context.Context, d time.Duration) error
}

// Orchestrator runs prompt batches against the transformation provider.
type Orchestrator struct {
	client   JobClient
	interval time.Duration
	attempts int
	logger   infra.Logger
	wait     func(ctx context.Context, d time.Duration) error
}

// New wires an Orchestrator with defaults matching the provider's pacing:
// a 5 second inter-poll delay bounded at 60 attempts.
func New(opts Options) *Orchestrator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 60
	}
	var logger infra.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = zerolog.New(io.Discard)
	}
	wait := opts.Wait
	if wait == nil {
		wait = sleep
	}
	return &Orchestrator{
		client:   opts.Client,
		interval: interval,
		attempts: attempts,
		logger:   logger,
		wait:     wait,
	}
}

// Run executes one iteration per prompt, sequentially, always against the
// original image. Every iteration reaches exactly one terminal state and
// emits exactly one terminal event after its start event; the returned slice
// has one entry per prompt in iteration order.
func (o *Orchestrator) Run(ctx context.Context, image []byte, prompts []string, sink stream.Sink) []domain.IterationResult {
	results := make([]domain.IterationResult, 0, len(prompts))
	for i, prompt := range prompts {
		iteration := i + 1
		o.emit(sink, stream.Event{Type: stream.EventIterationStart, Iteration: iteration})

		result := o.runIteration(ctx, iteration, image, prompt)
		results = append(results, result)

		switch result.Status {
		case domain.IterationCompleted:
			o.logger.Info().Int("iteration", iteration).Msg("orchestrator: iteration completed")
			o.emit(sink, stream.Event{
				Type:      stream.EventIterationComplete,
				Iteration: iteration,
				Image:     result.ImageURL,
				Prompt:    result.Prompt,
			})
		case domain.IterationModerated:
			o.logger.Info().Int("iteration", iteration).Msg("orchestrator: iteration moderated, moving on")
			o.emit(sink, stream.Event{
				Type:      stream.EventIterationModerated,
				Iteration: iteration,
				Prompt:    result.Prompt,
				Message:   result.Message,
			})
		default:
			o.logger.Warn().Int("iteration", iteration).Str("reason", result.Message).Msg("orchestrator: iteration failed, moving on")
			o.emit(sink, stream.Event{
				Type:      stream.EventIterationError,
				Iteration: iteration,
				Prompt:    result.Prompt,
				Message:   result.Message,
			})
		}
	}
	return results
}

// runIteration walks one prompt through submit and the bounded poll loop.
// All failures terminate this iteration only.
func (o *Orchestrator) runIteration(ctx context.Context, iteration int, image []byte, prompt string) domain.IterationResult {
	result := domain.IterationResult{Iteration: iteration, Prompt: prompt}

	jobID, err := o.client.Submit(ctx, image, prompt)
	if err != nil {
		result.Status = domain.IterationError
		result.Message = fmt.Sprintf("submit failed: %v", err)
		return result
	}

	for attempt := 1; attempt <= o.attempts; attempt++ {
		if err := o.wait(ctx, o.interval); err != nil {
			result.Status = domain.IterationError
			result.Message = fmt.Sprintf("wait interrupted: %v", err)
			return result
		}
		poll, err := o.client.Poll(ctx, jobID)
		if err != nil {
			result.Status = domain.IterationError
			result.Message = fmt.Sprintf("poll failed: %v", err)
			return result
		}
		switch poll.Status {
		case kontext.StatusReady:
			result.Status = domain.IterationCompleted
			result.ImageURL = poll.Sample
			return result
		case kontext.StatusModerated:
			result.Status = domain.IterationModerated
			result.Message = "Content was moderated, moving to next iteration"
			return result
		case kontext.StatusError:
			result.Status = domain.IterationError
			result.Message = providerErrorMessage(poll.Detail)
			return result
		}
	}

	result.Status = domain.IterationError
	result.Message = fmt.Sprintf("%v after %d poll attempts", domain.ErrPollTimeout, o.attempts)
	return result
}

func (o *Orchestrator) emit(sink stream.Sink, event stream.Event) {
	if sink == nil {
		return
	}
	if err := sink.Send(event); err != nil {
		// The consumer disconnected; provider work continues regardless.
		o.logger.Debug().Err(err).Str("event", string(event.Type)).Msg("orchestrator: dropping progress event")
	}
}

func providerErrorMessage(detail string) string {
	if detail == "" {
		return "provider reported an error"
	}
	return fmt.Sprintf("provider reported an error: %s", detail)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
