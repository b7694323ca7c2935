package voice

// Inbound JSON frame types.
const inboundTextMessage = "text_message"

// Outbound JSON frame types.
const (
	frameSessionStarted = "session_started"
	frameTranscript     = "transcript"
	frameTurnComplete   = "turn_complete"
	frameError          = "error"
)

type inboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type outboundFrame struct {
	Type            string `json:"type"`
	SessionID       string `json:"session_id,omitempty"`
	Provider        string `json:"provider,omitempty"`
	InputSampleRate int    `json:"input_sample_rate,omitempty"`
	Role            string `json:"role,omitempty"`
	Text            string `json:"text,omitempty"`
	Message         string `json:"message,omitempty"`
}

const defaultInstructions = "You are the AICOE Genesis design assistant. Talk with the user about the software " +
	"product they want to build. Ask short clarifying questions about goals, users and key features, and " +
	"summarize decisions when asked so they can be turned into a vision document, use cases or a prototype."

type generateArtifactReq struct {
	ProjectID    string `json:"project_id"`
	ArtifactType string `json:"artifact_type"`
	Context      string `json:"context"`
}

type negotiateReq struct {
	SDP string `json:"sdp"`
}
