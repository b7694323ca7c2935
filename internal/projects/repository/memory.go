package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

// MemoryRepository is an in-process store with the same semantics as ProjectRepository.
// It backs headless worker runs and tests; nothing survives the process.
type MemoryRepository struct {
	mu        sync.RWMutex
	projects  map[string]*domain.Project
	order     []string
	artifacts []domain.Artifact
	messages  []domain.AgentMessage
	now       func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[string]*domain.Project),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) CreateProject(_ context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	p := &domain.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Mode:        req.Mode,
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.projects[p.ID] = p
	r.order = append(r.order, p.ID)
	out := *p
	return &out, nil
}

func (r *MemoryRepository) ListProjects(_ context.Context) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Project, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.projects[r.order[i]])
	}
	return out, nil
}

func (r *MemoryRepository) GetProject(_ context.Context, id string) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *MemoryRepository) SetProjectStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) SaveArtifact(_ context.Context, projectID, artifactType, content string) (*domain.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[projectID]; !ok {
		return nil, domain.ErrNotFound
	}
	a := domain.Artifact{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		ArtifactType: artifactType,
		Content:      content,
		CreatedAt:    r.now(),
	}
	r.artifacts = append(r.artifacts, a)
	return &a, nil
}

func (r *MemoryRepository) ListArtifacts(_ context.Context, projectID string) ([]domain.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.projects[projectID]; !ok {
		return nil, domain.ErrNotFound
	}
	out := []domain.Artifact{}
	for _, a := range r.artifacts {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) LatestArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error) {
	all, err := r.ListArtifacts(ctx, projectID)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]int, 3)
	for i, a := range all {
		latest[a.ArtifactType] = i
	}
	idx := make([]int, 0, len(latest))
	for _, i := range latest {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	out := make([]domain.Artifact, 0, len(idx))
	for _, i := range idx {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *MemoryRepository) GetArtifact(_ context.Context, projectID, artifactID string) (*domain.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.artifacts {
		if a.ProjectID == projectID && a.ID == artifactID {
			out := a
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryRepository) SaveMessage(_ context.Context, req domain.SaveMessageRequest) (*domain.AgentMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[req.ProjectID]; !ok {
		return nil, domain.ErrNotFound
	}
	m := domain.AgentMessage{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		AgentRole:   req.AgentRole,
		AgentName:   req.AgentName,
		Message:     req.Message,
		MessageType: req.MessageType,
		Timestamp:   r.now(),
	}
	r.messages = append(r.messages, m)
	return &m, nil
}

func (r *MemoryRepository) ListMessages(_ context.Context, projectID string) ([]domain.AgentMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.projects[projectID]; !ok {
		return nil, domain.ErrNotFound
	}
	out := []domain.AgentMessage{}
	for _, m := range r.messages {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}
