package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/orchestrator"
	"server/internal/prompts"
)

// App bundles the dependencies shared by all handlers.
type App struct {
	Config   *infra.Config
	Logger   infra.Logger
	Sessions domain.SessionRepository
	Prompts  *prompts.Generator
	Runner   *orchestrator.Orchestrator
	// HTTPClient fetches completed result images for persistence.
	HTTPClient *http.Client
}

// NewApp constructs the handler container.
func NewApp(cfg *infra.Config, logger infra.Logger, sessions domain.SessionRepository, generator *prompts.Generator, runner *orchestrator.Orchestrator) *App {
	return &App{
		Config:     cfg,
		Logger:     logger,
		Sessions:   sessions,
		Prompts:    generator,
		Runner:     runner,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
