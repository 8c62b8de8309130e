package websocket

// Actions (client to server)

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the single inbound message shape. QuestionID and
// Selected are only set for autosave.
type RequestPayload struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id,omitempty"`
	Selected   string `json:"selected,omitempty"`
}

// Events (server to client)

type Event string

const (
	EventError   Event = "error"
	EventSaved   Event = "saved"
	EventTick    Event = "tick"
	EventExpired Event = "expired"
	EventGraded  Event = "graded"
	EventPong    Event = "pong"
)

// SavedResponse acknowledges one autosaved answer.
type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// TickResponse carries the server-computed countdown. The client renders
// this value instead of trusting its own clock.
type TickResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// GradedResponse is sent once the attempt is graded, whether by manual
// submit (EventGraded) or by the deadline (EventExpired).
type GradedResponse struct {
	Event       Event  `json:"event"`
	ResultID    string `json:"result_id"`
	Score       int    `json:"score"`
	TotalPoints int    `json:"total_points"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
