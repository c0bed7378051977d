package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/avermeer/docbrief/internal/models"
	"github.com/google/uuid"
)

// AIToolStore persists AI tool definitions in a single JSON array file.
type AIToolStore struct {
	path string
	mu   sync.Mutex
}

// NewAIToolStore opens a tool store backed by the given file path.
func NewAIToolStore(path string) (*AIToolStore, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	return &AIToolStore{path: path}, nil
}

// Create builds a new active tool and persists it.
func (s *AIToolStore) Create(name, description, endpointURL string) (*models.AITool, error) {
	now := time.Now().UTC()
	t := &models.AITool{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		EndpointURL: endpointURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Save(*t); err != nil {
		return nil, err
	}
	return t, nil
}

// FindByID returns the tool with the given id, or ErrNotFound. Disabled
// tools resolve normally: disabling only blocks new project bindings.
func (s *AIToolStore) FindByID(id string) (*models.AITool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tools, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range tools {
		if tools[i].ID == id {
			t := tools[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("tool %s: %w", id, ErrNotFound)
}

// FindAll returns every tool in file order, disabled ones included.
func (s *AIToolStore) FindAll() ([]models.AITool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// FindActive returns the tools that may be offered for new projects.
func (s *AIToolStore) FindActive() ([]models.AITool, error) {
	tools, err := s.FindAll()
	if err != nil {
		return nil, err
	}
	active := tools[:0]
	for _, t := range tools {
		if t.Active() {
			active = append(active, t)
		}
	}
	return active, nil
}

// Save upserts a tool by id and rewrites the whole collection.
func (s *AIToolStore) Save(t models.AITool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(t)
}

// Enable clears the disabled marker on a tool.
func (s *AIToolStore) Enable(id string) (*models.AITool, error) {
	return s.setDisabled(id, nil)
}

// Disable marks a tool as unavailable for new project bindings.
func (s *AIToolStore) Disable(id string) (*models.AITool, error) {
	now := time.Now().UTC()
	return s.setDisabled(id, &now)
}

func (s *AIToolStore) setDisabled(id string, at *time.Time) (*models.AITool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tools, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range tools {
		if tools[i].ID == id {
			tools[i].DisabledAt = at
			tools[i].UpdatedAt = time.Now().UTC()
			if err := writeCollection(s.path, tools); err != nil {
				return nil, err
			}
			t := tools[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("tool %s: %w", id, ErrNotFound)
}

func (s *AIToolStore) save(t models.AITool) error {
	tools, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range tools {
		if tools[i].ID == t.ID {
			tools[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		tools = append(tools, t)
	}
	return writeCollection(s.path, tools)
}

func (s *AIToolStore) load() ([]models.AITool, error) {
	tools := []models.AITool{}
	if err := readCollection(s.path, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}
