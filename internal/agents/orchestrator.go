package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aicoe-genesis/genesis-backend/internal/events"
	"github.com/aicoe-genesis/genesis-backend/internal/llm"
	"github.com/aicoe-genesis/genesis-backend/internal/logging"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
	"github.com/aicoe-genesis/genesis-backend/internal/prototype"
)

// Store is the slice of the project service the orchestrator writes through.
type Store interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	SaveMessage(ctx context.Context, projectID, role, agentName, text, messageType string) (*domain.AgentMessage, error)
	SaveArtifact(ctx context.Context, projectID, artifactType, content string) (*domain.Artifact, error)
	MarkCompleted(ctx context.Context, id string) error
}

// Sink receives every event of a run in order. A sink error aborts the run.
type Sink func(ctx context.Context, ev events.Event) error

// StageState is the last known status of one pipeline stage.
type StageState struct {
	Role   string
	Status string
}

// RunResult summarizes a finished or aborted run.
type RunResult struct {
	Stages    []StageState
	Artifacts []domain.Artifact
}

// Orchestrator runs the PM -> BA -> UX -> UI pipeline for one brief.
type Orchestrator struct {
	catalog *Catalog
	gen     llm.Generator
	store   Store
}

func NewOrchestrator(catalog *Catalog, gen llm.Generator, store Store) *Orchestrator {
	return &Orchestrator{catalog: catalog, gen: gen, store: store}
}

// Run executes every stage sequentially. Each stage sees the brief plus the labelled
// output of all earlier stages. The first failure emits an error event and stops
// the pipeline; the error is also returned.
func (o *Orchestrator) Run(ctx context.Context, projectID, brief string, sink Sink) (*RunResult, error) {
	log := logging.New(ctx)

	res := &RunResult{Stages: make([]StageState, len(o.catalog.Agents))}
	for i, a := range o.catalog.Agents {
		res.Stages[i] = StageState{Role: a.Role, Status: events.StatusPending}
	}

	fail := func(i int, err error) (*RunResult, error) {
		if i >= 0 {
			res.Stages[i].Status = events.StatusFailed
		}
		log.Errorf("run_workflow", "project_id=%s error=%v", projectID, err)
		// the caller may already be gone; the run is over either way
		_ = sink(context.WithoutCancel(ctx), withProject(events.Error(err.Error()), projectID))
		return res, err
	}

	outputs := make([]string, 0, len(o.catalog.Agents))
	for i, a := range o.catalog.Agents {
		if err := ctx.Err(); err != nil {
			return fail(i, err)
		}

		res.Stages[i].Status = events.StatusInProgress
		if err := sink(ctx, withProject(events.Status(a.Role, events.StatusInProgress), projectID)); err != nil {
			return fail(i, err)
		}

		prompt := llm.Prompt{System: a.SystemPrompt, User: o.stageContext(i, brief, outputs)}
		text, err := o.gen.Stream(ctx, prompt, func(delta string) error {
			return sink(ctx, events.Event{Type: events.TypeAgentDelta, ProjectID: projectID, AgentRole: a.Role, Delta: delta})
		})
		if err != nil {
			return fail(i, err)
		}
		if a.ArtifactType == domain.ArtifactPrototype {
			text = prototype.TrimFences(text)
		}
		outputs = append(outputs, text)

		if _, err := o.store.SaveMessage(ctx, projectID, a.Role, a.Name, text, domain.MessageText); err != nil {
			return fail(i, fmt.Errorf("save %s message: %w", a.Role, err))
		}
		err = sink(ctx, events.Event{
			Type:      events.TypeAgentMessage,
			ProjectID: projectID,
			AgentRole: a.Role,
			AgentName: a.Name,
			Message:   text,
		})
		if err != nil {
			return fail(i, err)
		}

		if a.ArtifactType != "" {
			art, err := o.store.SaveArtifact(ctx, projectID, a.ArtifactType, text)
			if err != nil {
				return fail(i, fmt.Errorf("save %s artifact: %w", a.ArtifactType, err))
			}
			res.Artifacts = append(res.Artifacts, *art)
			err = sink(ctx, events.Event{
				Type:         events.TypeArtifactReady,
				ProjectID:    projectID,
				ArtifactID:   art.ID,
				ArtifactType: art.ArtifactType,
				Content:      art.Content,
			})
			if err != nil {
				return fail(i, err)
			}
		}

		res.Stages[i].Status = events.StatusCompleted
		if err := sink(ctx, withProject(events.Status(a.Role, events.StatusCompleted), projectID)); err != nil {
			return fail(i, err)
		}
		log.Infof("run_workflow", "project_id=%s stage=%s completed", projectID, a.Role)

		if i+1 < len(o.catalog.Agents) {
			next := o.catalog.Agents[i+1]
			err := sink(ctx, events.Event{Type: events.TypeHandoff, ProjectID: projectID, FromAgent: a.Role, ToAgent: next.Role})
			if err != nil {
				return fail(i, err)
			}
		}
	}

	if err := o.store.MarkCompleted(ctx, projectID); err != nil {
		return fail(-1, fmt.Errorf("complete project: %w", err))
	}
	if err := sink(ctx, events.Event{Type: events.TypeWorkflowComplete, ProjectID: projectID}); err != nil {
		return res, err
	}
	return res, nil
}

func (o *Orchestrator) stageContext(i int, brief string, outputs []string) string {
	var sb strings.Builder
	sb.WriteString("Project Brief: ")
	sb.WriteString(brief)
	for j, out := range outputs {
		label := o.catalog.Agents[j].OutputLabel
		if label == "" {
			label = o.catalog.Agents[j].Name
		}
		fmt.Fprintf(&sb, "\n\n%s:\n%s", label, out)
	}
	if instr := o.catalog.Agents[i].Instruction; instr != "" {
		sb.WriteString("\n\n")
		sb.WriteString(instr)
	}
	return sb.String()
}

// ErrNoAgent is returned when no agent produces the requested artifact type.
var ErrNoAgent = errors.New("no agent produces this artifact type")

// GenerateArtifact asks the agent that owns artifactType to produce it from free-form
// conversation context, then stores it. Used by voice mode.
func (o *Orchestrator) GenerateArtifact(ctx context.Context, projectID, artifactType, conversation string) (*domain.Artifact, error) {
	if !domain.ValidArtifactType(artifactType) {
		return nil, domain.ErrInvalidArtifactType
	}
	a, ok := o.catalog.ForArtifact(artifactType)
	if !ok {
		return nil, ErrNoAgent
	}
	if _, err := o.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	text, err := o.gen.Stream(ctx, llm.Prompt{System: a.SystemPrompt, User: conversation}, nil)
	if err != nil {
		return nil, err
	}
	if artifactType == domain.ArtifactPrototype {
		text = prototype.TrimFences(text)
	}

	art, err := o.store.SaveArtifact(ctx, projectID, artifactType, text)
	if err != nil {
		return nil, err
	}
	logging.New(ctx).Infof("generate_artifact", "project_id=%s artifact_type=%s agent=%s", projectID, artifactType, a.Role)
	return art, nil
}

func withProject(ev events.Event, projectID string) events.Event {
	ev.ProjectID = projectID
	return ev
}
