// Package events defines the workflow event frames and fans them out over Redis.
package events

// Event types sent to workflow observers.
const (
	TypeAgentStatus      = "agent_status"
	TypeAgentMessage     = "agent_message"
	TypeAgentDelta       = "agent_delta"
	TypeArtifactReady    = "artifact_ready"
	TypeHandoff          = "handoff"
	TypeWorkflowComplete = "workflow_complete"
	TypeError            = "error"
)

// Stage statuses. Pending is the implicit start state and is never sent.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Event is one outbound workflow frame. Only the fields relevant to Type are set.
type Event struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id,omitempty"`
	AgentRole    string `json:"agent_role,omitempty"`
	AgentName    string `json:"agent_name,omitempty"`
	Status       string `json:"status,omitempty"`
	Message      string `json:"message,omitempty"`
	Delta        string `json:"delta,omitempty"`
	ArtifactID   string `json:"artifact_id,omitempty"`
	ArtifactType string `json:"artifact_type,omitempty"`
	Content      string `json:"content,omitempty"`
	FromAgent    string `json:"from_agent,omitempty"`
	ToAgent      string `json:"to_agent,omitempty"`
}

// Terminal reports whether no further events follow in the same run.
func (e Event) Terminal() bool {
	return e.Type == TypeWorkflowComplete || e.Type == TypeError
}

func Status(role, status string) Event {
	return Event{Type: TypeAgentStatus, AgentRole: role, Status: status}
}

func Error(msg string) Event {
	return Event{Type: TypeError, Message: msg}
}
