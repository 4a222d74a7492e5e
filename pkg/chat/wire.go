package chat

import (
	"encoding/json"
	"time"
)

// Wire roles visible to clients. Stored roles (tool-invocation, tool-result,
// instruction) never reach the wire; the projector strips them.
const (
	WireRoleUser     = "user"
	WireRoleModel    = "model"
	WireRoleMetadata = "metadata"
	WireRoleError    = "error"
)

// WireMessage is one newline-delimited JSON frame sent to the client.
// Content is a string for user/model frames and an object for metadata
// frames.
type WireMessage struct {
	Role           string      `json:"role"`
	ConversationID string      `json:"conversation_id"`
	Timestamp      string      `json:"timestamp"`
	Content        interface{} `json:"content"`
}

func wireTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

// SideChannel is the metadata payload attached to a batch and emitted as a
// metadata frame: web-search citations and knowledge-base results handed off
// through the correlation cache, plus the signals from the metadata pass.
type SideChannel struct {
	Sources                   json.RawMessage `json:"sources,omitempty"`
	KnowledgeResults          json.RawMessage `json:"knowledge_results,omitempty"`
	FollowUpQuestions         []string        `json:"follow_up_questions"`
	ProvideAppointmentBooking bool            `json:"provide_appointment_booking"`
	RecommendProduct          bool            `json:"recommend_product"`
}

// FrameWriter is the single consumer of the orchestrator's frame sequence.
// Writes happen in production order; implementations must not reorder.
type FrameWriter interface {
	WriteFrame(m WireMessage) error
}
