package workflow

// ActionStartWorkflow is the only command the workflow channel accepts.
const ActionStartWorkflow = "start_workflow"

// Command is an inbound frame on the workflow channel.
type Command struct {
	Action string `json:"action"`
	Brief  string `json:"brief"`
}

const msgBriefRequired = "Brief is required"
