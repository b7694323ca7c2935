package domain

import "time"

// Project modes.
const (
	ModeText  = "text"
	ModeVoice = "voice"
)

// Project statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Artifact types.
const (
	ArtifactVision    = "vision"
	ArtifactUseCases  = "usecases"
	ArtifactPrototype = "prototype"
)

// Agent roles, in pipeline order.
const (
	RolePM = "pm"
	RoleBA = "ba"
	RoleUX = "ux"
	RoleUI = "ui"
)

// Agent message types.
const (
	MessageText    = "text"
	MessageStatus  = "status"
	MessageHandoff = "handoff"
)

// Project is the unit of work seeded by a user brief.
// It is storage-agnostic and shared across repository, orchestration and HTTP layers.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Mode        string    `json:"mode"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Artifact is a generated document or code bundle. History is append-only: a later
// artifact of the same type supersedes earlier ones for display but does not replace them.
type Artifact struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	ArtifactType string    `json:"artifact_type"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// AgentMessage is one entry in the append-only orchestration audit trail.
type AgentMessage struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	AgentRole   string    `json:"agent_role"`
	AgentName   string    `json:"agent_name,omitempty"`
	Message     string    `json:"message"`
	MessageType string    `json:"message_type"`
	Timestamp   time.Time `json:"timestamp"`
}

// CreateProjectRequest carries the fields a caller may set on a new project.
type CreateProjectRequest struct {
	Name        string
	Description string
	Mode        string
}

// SaveMessageRequest carries a new AgentMessage.
type SaveMessageRequest struct {
	ProjectID   string
	AgentRole   string
	AgentName   string
	Message     string
	MessageType string
}

func ValidMode(mode string) bool {
	return mode == ModeText || mode == ModeVoice
}

func ValidArtifactType(t string) bool {
	switch t {
	case ArtifactVision, ArtifactUseCases, ArtifactPrototype:
		return true
	}
	return false
}

func ValidRole(role string) bool {
	switch role {
	case RolePM, RoleBA, RoleUX, RoleUI:
		return true
	}
	return false
}
