package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/pkg/zip"
)

type sessionResponse struct {
	ID        string                     `json:"id"`
	CreatedAt time.Time                  `json:"created_at"`
	Caption   string                     `json:"caption,omitempty"`
	Concepts  []string                   `json:"concepts,omitempty"`
	Original  string                     `json:"original"`
	Results   []sessionIterationResponse `json:"results"`
}

type sessionIterationResponse struct {
	Iteration int    `json:"iteration"`
	Prompt    string `json:"prompt"`
	Status    string `json:"status"`
	Image     string `json:"image,omitempty"`
	Message   string `json:"message,omitempty"`
}

// GetSession returns the persisted record for a session id. Image binaries
// are exposed as links into the image endpoint rather than inlined.
func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := a.loadSession(w, r)
	if !ok {
		return
	}

	resp := sessionResponse{
		ID:        session.ID,
		CreatedAt: session.CreatedAt,
		Caption:   session.Caption,
		Concepts:  session.Concepts,
		Original:  a.imageLink(session.ID, 0),
		Results:   make([]sessionIterationResponse, 0, len(session.Results)),
	}
	for _, result := range session.Results {
		item := sessionIterationResponse{
			Iteration: result.Iteration,
			Prompt:    result.Prompt,
			Status:    string(result.Status),
			Message:   result.Message,
		}
		if result.Status == domain.IterationCompleted {
			if len(result.Image) > 0 {
				item.Image = a.imageLink(session.ID, result.Iteration)
			} else {
				item.Image = result.ImageURL
			}
		}
		resp.Results = append(resp.Results, item)
	}
	a.json(w, http.StatusOK, resp)
}

// SessionImage serves a session's stored binaries: index 0 is the original
// upload, index N is iteration N's result.
func (a *App) SessionImage(w http.ResponseWriter, r *http.Request) {
	session, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid image index")
		return
	}

	var data []byte
	if index == 0 {
		data = session.Original
	} else {
		for _, result := range session.Results {
			if result.Iteration == index {
				data = result.Image
				break
			}
		}
	}
	if len(data) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "image not found")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SessionArchive bundles the original plus every stored result image into a
// zip download.
func (a *App) SessionArchive(w http.ResponseWriter, r *http.Request) {
	session, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	assets := []zip.Asset{{Filename: "original.jpg", MIME: "image/jpeg", Data: session.Original}}
	for _, result := range session.Results {
		if len(result.Image) == 0 {
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("result_%d.jpg", result.Iteration),
			MIME:     "image/jpeg",
			Data:     result.Image,
		})
	}
	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=session-%s.zip", session.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) loadSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session id required")
		return nil, false
	}
	session, err := a.Sessions.Load(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "session not found")
		case errors.Is(err, domain.ErrCorrupted):
			a.Logger.Error().Err(err).Str("session_id", id).Msg("sessions: stored record is corrupted")
			a.error(w, http.StatusInternalServerError, "corrupted", "session record is corrupted")
		default:
			a.Logger.Error().Err(err).Str("session_id", id).Msg("sessions: load failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load session")
		}
		return nil, false
	}
	return session, true
}

func (a *App) imageLink(sessionID string, index int) string {
	return fmt.Sprintf("%s/v1/sessions/%s/images/%d", a.Config.PublicBaseURL, sessionID, index)
}
