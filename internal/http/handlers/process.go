package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/prompts"
	"server/internal/stream"
)

// Process accepts one uploaded image and streams a full orchestration run
// back as server-sent events: subject analysis, prompt generation, one
// iteration per prompt, then a final complete event carrying the persisted
// session id and its share URL.
func (a *App) Process(w http.ResponseWriter, r *http.Request) {
	image, err := a.readUpload(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	sink, err := stream.NewSSEWriter(w)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	// A disconnecting consumer must not cancel in-flight provider work,
	// so the run detaches from the request's cancellation.
	ctx := context.WithoutCancel(r.Context())
	logger := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	logger.Info().Int("bytes", len(image)).Msg("process: starting orchestration run")

	a.send(sink, stream.Event{Type: stream.EventProcessingStart})

	pronoun := a.Prompts.Subject(ctx, image)
	a.send(sink, stream.Event{Type: stream.EventAnalysisComplete})

	a.send(sink, stream.Event{Type: stream.EventPromptsGenerating})
	batch := a.Prompts.Batch(ctx, image, a.Config.IterationCount)
	for i, prompt := range batch {
		batch[i] = prompts.RewriteForSubject(prompt, pronoun)
	}
	a.send(sink, stream.Event{Type: stream.EventPromptsGenerated})

	results := a.Runner.Run(ctx, image, batch, sink)

	a.materializeResults(ctx, logger, results)

	session := &domain.Session{Original: image, Results: results}
	if err := a.Sessions.Save(ctx, session); err != nil {
		logger.Error().Err(err).Msg("process: failed to persist session")
		a.send(sink, stream.Event{Type: stream.EventError, Message: "failed to save session"})
		return
	}

	logger.Info().Str("session_id", session.ID).Msg("process: run complete")
	a.send(sink, stream.Event{
		Type:      stream.EventComplete,
		SessionID: session.ID,
		ShareURL:  fmt.Sprintf("%s/v1/sessions/%s", a.Config.PublicBaseURL, session.ID),
	})
}

func (a *App) readUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, a.Config.MaxUploadBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		if isTooLarge(err) {
			return nil, fmt.Errorf("uploaded image exceeds the %d byte limit", a.Config.MaxUploadBytes)
		}
		return nil, fmt.Errorf("image file is required")
	}
	defer func() {
		_ = file.Close()
	}()
	image, err := io.ReadAll(file)
	if err != nil {
		if isTooLarge(err) {
			return nil, fmt.Errorf("uploaded image exceeds the %d byte limit", a.Config.MaxUploadBytes)
		}
		return nil, fmt.Errorf("failed to read upload")
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("uploaded image is empty")
	}
	return image, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// materializeResults downloads each completed result once so stored sessions
// do not depend on the provider's URL lifetime. A failed download keeps the
// URL reference; the iteration outcome is already terminal.
func (a *App) materializeResults(ctx context.Context, logger infra.Logger, results []domain.IterationResult) {
	for i := range results {
		result := &results[i]
		if result.Status != domain.IterationCompleted || result.ImageURL == "" {
			continue
		}
		data, err := a.fetchImage(ctx, result.ImageURL)
		if err != nil {
			logger.Warn().Err(err).Int("iteration", result.Iteration).Msg("process: failed to materialize result image")
			continue
		}
		result.Image = data
	}
}

func (a *App) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, a.Config.MaxUploadBytes))
}

func (a *App) send(sink stream.Sink, event stream.Event) {
	if err := sink.Send(event); err != nil {
		a.Logger.Debug().Err(err).Str("event", string(event.Type)).Msg("process: client gone, event dropped")
	}
}
