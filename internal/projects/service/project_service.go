package service

import (
	"context"
	"strings"

	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

// Repository is the persistence contract of the artifact store. Both the Postgres
// repository and the in-memory repository satisfy it.
type Repository interface {
	CreateProject(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	SetProjectStatus(ctx context.Context, id, status string) error
	SaveArtifact(ctx context.Context, projectID, artifactType, content string) (*domain.Artifact, error)
	ListArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error)
	LatestArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error)
	GetArtifact(ctx context.Context, projectID, artifactID string) (*domain.Artifact, error)
	SaveMessage(ctx context.Context, req domain.SaveMessageRequest) (*domain.AgentMessage, error)
	ListMessages(ctx context.Context, projectID string) ([]domain.AgentMessage, error)
}

// ProjectService validates input and delegates to the repository. It is the only owner
// of persisted state; orchestration and relays go through it.
type ProjectService struct {
	repo Repository
}

// NewProjectService creates a new project service
func NewProjectService(repo Repository) *ProjectService {
	return &ProjectService{
		repo: repo,
	}
}

// CreateProject creates a new project. An empty mode defaults to text.
func (s *ProjectService) CreateProject(ctx context.Context, name, description, mode string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = domain.ModeText
	}
	if !domain.ValidMode(mode) {
		return nil, domain.ErrInvalidMode
	}
	return s.repo.CreateProject(ctx, domain.CreateProjectRequest{
		Name:        name,
		Description: description,
		Mode:        mode,
	})
}

// ListProjects returns every project
func (s *ProjectService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx)
}

// GetProject returns a project by id
func (s *ProjectService) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// MarkCompleted flips a project to the completed status.
func (s *ProjectService) MarkCompleted(ctx context.Context, id string) error {
	return s.repo.SetProjectStatus(ctx, id, domain.StatusCompleted)
}

// SaveArtifact appends an artifact; content is stored byte-for-byte.
func (s *ProjectService) SaveArtifact(ctx context.Context, projectID, artifactType, content string) (*domain.Artifact, error) {
	if !domain.ValidArtifactType(artifactType) {
		return nil, domain.ErrInvalidArtifactType
	}
	return s.repo.SaveArtifact(ctx, projectID, artifactType, content)
}

func (s *ProjectService) ListArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error) {
	return s.repo.ListArtifacts(ctx, projectID)
}

func (s *ProjectService) LatestArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error) {
	return s.repo.LatestArtifacts(ctx, projectID)
}

func (s *ProjectService) GetArtifact(ctx context.Context, projectID, artifactID string) (*domain.Artifact, error) {
	return s.repo.GetArtifact(ctx, projectID, artifactID)
}

// SaveMessage appends an agent message. An empty message type defaults to text.
func (s *ProjectService) SaveMessage(ctx context.Context, projectID, role, agentName, text, messageType string) (*domain.AgentMessage, error) {
	if !domain.ValidRole(role) {
		return nil, domain.ErrInvalidRole
	}
	if messageType == "" {
		messageType = domain.MessageText
	}
	return s.repo.SaveMessage(ctx, domain.SaveMessageRequest{
		ProjectID:   projectID,
		AgentRole:   role,
		AgentName:   agentName,
		Message:     text,
		MessageType: messageType,
	})
}

func (s *ProjectService) ListMessages(ctx context.Context, projectID string) ([]domain.AgentMessage, error) {
	return s.repo.ListMessages(ctx, projectID)
}
