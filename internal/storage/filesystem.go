// Package storage persists sessions onto the local filesystem. It is the
// default backend for development and single-node deployments where a
// database is not available; each session becomes a directory holding a
// JSON record plus the raw image files.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

const recordFilename = "session.json"

// SessionStore implements domain.SessionRepository on a local directory.
type SessionStore struct {
	basePath string
}

// NewSessionStore initializes a SessionStore rooted at basePath.
func NewSessionStore(basePath string) (*SessionStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &SessionStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *SessionStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

type sessionRecord struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Caption   string            `json:"caption,omitempty"`
	Concepts  []string          `json:"concepts,omitempty"`
	Results   []iterationRecord `json:"results"`
}

type iterationRecord struct {
	Iteration int    `json:"iteration"`
	Prompt    string `json:"prompt"`
	Status    string `json:"status"`
	ImageURL  string `json:"image_url,omitempty"`
	ImageFile string `json:"image_file,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Save writes the full session under its own directory, replacing any
// previous record for the same id.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	if s == nil {
		return errors.New("storage: no store configured")
	}
	if session == nil {
		return errors.New("storage: session is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	dir, err := s.sessionDir(session.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: ensure session directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "original.jpg"), session.Original, 0o644); err != nil {
		return fmt.Errorf("storage: write original image: %w", err)
	}

	record := sessionRecord{
		ID:        session.ID,
		CreatedAt: session.CreatedAt,
		Caption:   session.Caption,
		Concepts:  session.Concepts,
		Results:   make([]iterationRecord, 0, len(session.Results)),
	}
	for _, result := range session.Results {
		item := iterationRecord{
			Iteration: result.Iteration,
			Prompt:    result.Prompt,
			Status:    string(result.Status),
			ImageURL:  result.ImageURL,
			Message:   result.Message,
		}
		if len(result.Image) > 0 {
			item.ImageFile = fmt.Sprintf("result_%d.jpg", result.Iteration)
			if err := os.WriteFile(filepath.Join(dir, item.ImageFile), result.Image, 0o644); err != nil {
				return fmt.Errorf("storage: write result image %d: %w", result.Iteration, err)
			}
		}
		record.Results = append(record.Results, item)
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, recordFilename), payload, 0o644); err != nil {
		return fmt.Errorf("storage: write record: %w", err)
	}
	return nil
}

// Load reads a session back. Missing directories map to domain.ErrNotFound;
// undecodable records and missing referenced files map to domain.ErrCorrupted.
func (s *SessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.sessionDir(id)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(filepath.Join(dir, recordFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: read record: %w", err)
	}
	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("storage: decode record: %w", domain.ErrCorrupted)
	}

	original, err := os.ReadFile(filepath.Join(dir, "original.jpg"))
	if err != nil {
		return nil, fmt.Errorf("storage: original image missing: %w", domain.ErrCorrupted)
	}

	session := &domain.Session{
		ID:        record.ID,
		CreatedAt: record.CreatedAt,
		Original:  original,
		Caption:   record.Caption,
		Concepts:  record.Concepts,
	}
	for _, item := range record.Results {
		result := domain.IterationResult{
			Iteration: item.Iteration,
			Prompt:    item.Prompt,
			Status:    domain.IterationStatus(item.Status),
			ImageURL:  item.ImageURL,
			Message:   item.Message,
		}
		if !domain.ValidIterationStatus(result.Status) {
			return nil, fmt.Errorf("storage: iteration %d has status %q: %w", item.Iteration, item.Status, domain.ErrCorrupted)
		}
		if item.ImageFile != "" {
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(item.ImageFile)))
			if err != nil {
				return nil, fmt.Errorf("storage: result image %d missing: %w", item.Iteration, domain.ErrCorrupted)
			}
			result.Image = data
		}
		session.Results = append(session.Results, result)
	}
	return session, nil
}

// sessionDir resolves a session id to its directory, rejecting ids that
// would escape the storage root.
func (s *SessionStore) sessionDir(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("storage: session id is required")
	}
	cleaned := filepath.Clean(strings.ReplaceAll(id, "\\", "/"))
	if cleaned != id || strings.ContainsRune(cleaned, '/') || cleaned == "." || cleaned == ".." {
		return "", errors.New("storage: invalid session id")
	}
	return filepath.Join(s.basePath, cleaned), nil
}

var _ domain.SessionRepository = (*SessionStore)(nil)
