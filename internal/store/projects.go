package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/avermeer/docbrief/internal/models"
	"github.com/google/uuid"
)

// ProjectStore persists projects in a single JSON array file.
type ProjectStore struct {
	path string
	mu   sync.Mutex
}

// NewProjectStore opens a project store backed by the given file path.
func NewProjectStore(path string) (*ProjectStore, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	return &ProjectStore{path: path}, nil
}

// Create builds a new pending project and persists it.
func (s *ProjectStore) Create(name, source, tool string) (*models.Project, error) {
	p := &models.Project{
		ID:        uuid.New().String(),
		Name:      name,
		Source:    source,
		Tool:      tool,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Save(*p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindByID returns the project with the given id, or ErrNotFound.
func (s *ProjectStore) FindByID(id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == id {
			p := projects[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
}

// FindAll returns every project in file order.
func (s *ProjectStore) FindAll() ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save upserts a project by id and rewrites the whole collection.
func (s *ProjectStore) Save(p models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range projects {
		if projects[i].ID == p.ID {
			projects[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		projects = append(projects, p)
	}
	return writeCollection(s.path, projects)
}

func (s *ProjectStore) load() ([]models.Project, error) {
	projects := []models.Project{}
	if err := readCollection(s.path, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}
