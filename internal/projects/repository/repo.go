package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

// foreign_key_violation: the referenced project row does not exist.
const pqForeignKeyViolation = "23503"

// ProjectRepository persists projects, artifacts and agent messages in Postgres.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateProject inserts a new project.
func (r *ProjectRepository) CreateProject(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	const q = `
INSERT INTO projects (id, name, description, mode, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at;
`
	p := domain.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Mode:        req.Mode,
		Status:      domain.StatusActive,
	}
	err := r.db.QueryRowContext(ctx, q, p.ID, p.Name, p.Description, p.Mode, p.Status).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (r *ProjectRepository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	const q = `
SELECT id, name, description, mode, status, created_at, updated_at
FROM projects
ORDER BY created_at DESC, seq DESC;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Mode, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProject returns a single project or domain.ErrNotFound.
func (r *ProjectRepository) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	const q = `
SELECT id, name, description, mode, status, created_at, updated_at
FROM projects
WHERE id = $1;
`
	var p domain.Project
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Mode, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SetProjectStatus updates the project's status and bumps updated_at.
func (r *ProjectRepository) SetProjectStatus(ctx context.Context, id, status string) error {
	const q = `
UPDATE projects
SET status = $2, updated_at = now()
WHERE id = $1;
`
	result, err := r.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveArtifact appends an artifact to the project's history.
func (r *ProjectRepository) SaveArtifact(ctx context.Context, projectID, artifactType, content string) (*domain.Artifact, error) {
	const q = `
INSERT INTO artifacts (id, project_id, artifact_type, content)
VALUES ($1, $2, $3, $4)
RETURNING created_at;
`
	a := domain.Artifact{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		ArtifactType: artifactType,
		Content:      content,
	}
	err := r.db.QueryRowContext(ctx, q, a.ID, a.ProjectID, a.ArtifactType, a.Content).Scan(&a.CreatedAt)
	if err != nil {
		return nil, mapWriteErr("insert artifact", err)
	}
	return &a, nil
}

// ListArtifacts returns the project's full artifact history in creation order.
func (r *ProjectRepository) ListArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error) {
	if err := r.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}

	const q = `
SELECT id, project_id, artifact_type, content, created_at
FROM artifacts
WHERE project_id = $1
ORDER BY seq ASC;
`
	return r.queryArtifacts(ctx, q, projectID)
}

// LatestArtifacts returns the newest artifact of each type, in creation order.
func (r *ProjectRepository) LatestArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error) {
	if err := r.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}

	const q = `
SELECT id, project_id, artifact_type, content, created_at
FROM (
  SELECT DISTINCT ON (artifact_type) seq, id, project_id, artifact_type, content, created_at
  FROM artifacts
  WHERE project_id = $1
  ORDER BY artifact_type, seq DESC
) latest
ORDER BY seq ASC;
`
	return r.queryArtifacts(ctx, q, projectID)
}

// GetArtifact returns one artifact of a project.
func (r *ProjectRepository) GetArtifact(ctx context.Context, projectID, artifactID string) (*domain.Artifact, error) {
	const q = `
SELECT id, project_id, artifact_type, content, created_at
FROM artifacts
WHERE project_id = $1 AND id = $2;
`
	var a domain.Artifact
	err := r.db.QueryRowContext(ctx, q, projectID, artifactID).
		Scan(&a.ID, &a.ProjectID, &a.ArtifactType, &a.Content, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// SaveMessage appends an agent message to the audit trail.
func (r *ProjectRepository) SaveMessage(ctx context.Context, req domain.SaveMessageRequest) (*domain.AgentMessage, error) {
	const q = `
INSERT INTO agent_messages (id, project_id, agent_role, agent_name, message, message_type)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING timestamp;
`
	m := domain.AgentMessage{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		AgentRole:   req.AgentRole,
		AgentName:   req.AgentName,
		Message:     req.Message,
		MessageType: req.MessageType,
	}
	err := r.db.QueryRowContext(ctx, q, m.ID, m.ProjectID, m.AgentRole, m.AgentName, m.Message, m.MessageType).
		Scan(&m.Timestamp)
	if err != nil {
		return nil, mapWriteErr("insert agent message", err)
	}
	return &m, nil
}

// ListMessages returns the project's agent messages in creation order.
func (r *ProjectRepository) ListMessages(ctx context.Context, projectID string) ([]domain.AgentMessage, error) {
	if err := r.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}

	const q = `
SELECT id, project_id, agent_role, agent_name, message, message_type, timestamp
FROM agent_messages
WHERE project_id = $1
ORDER BY seq ASC;
`
	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.AgentMessage{}
	for rows.Next() {
		var m domain.AgentMessage
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.AgentRole, &m.AgentName, &m.Message, &m.MessageType, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ProjectRepository) ensureProject(ctx context.Context, id string) error {
	const q = `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1);`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) queryArtifacts(ctx context.Context, q string, args ...any) ([]domain.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Artifact{}
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.ArtifactType, &a.Content, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func mapWriteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
