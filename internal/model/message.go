package model

// MessageType is the kind of an outbound message.
type MessageType string

const (
	MessageTypeProgressUpdate   MessageType = "progressUpdate"
	MessageTypeProgressComplete MessageType = "progressComplete"
)

// ProgressStatus qualifies a progress notice.
type ProgressStatus string

const (
	// ProgressStatusNone is a regular progress notice.
	ProgressStatusNone ProgressStatus = ""
	// ProgressStatusBusy tells the requester its request was dropped because a run is in flight.
	ProgressStatusBusy ProgressStatus = "busy"
)

// ProgressEvent is an entry of the ordered progress log of a run.
type ProgressEvent struct {
	Type     MessageType
	Progress string
	Status   ProgressStatus
}

// Message is the wire envelope exchanged over a channel in both directions.
type Message struct {
	// Inbound.
	Action   string `json:"action,omitempty"`
	TaskName string `json:"taskName,omitempty"`

	// Outbound.
	Type     MessageType         `json:"type,omitempty"`
	Progress string              `json:"progress,omitempty"`
	Status   ProgressStatus      `json:"status,omitempty"`
	Results  *CompletionEnvelope `json:"results,omitempty"`
}

// NewRequestMessage returns the inbound message for a task request.
func NewRequestMessage(req TaskRequest) Message {
	return Message{Action: req.Action, TaskName: req.TaskName}
}

// NewProgressMessage returns a progress update message.
func NewProgressMessage(progress string) Message {
	return Message{Type: MessageTypeProgressUpdate, Progress: progress}
}

// NewCompleteMessage returns the terminal message of a run.
func NewCompleteMessage(env CompletionEnvelope) Message {
	return Message{Type: MessageTypeProgressComplete, Results: &env}
}

// TaskRequest returns the request carried by an inbound message.
func (m Message) TaskRequest() TaskRequest {
	return TaskRequest{Action: m.Action, TaskName: m.TaskName}
}

// ProgressEvent returns the progress event carried by a progress message.
func (m Message) ProgressEvent() ProgressEvent {
	return ProgressEvent{Type: m.Type, Progress: m.Progress, Status: m.Status}
}

// IsTerminal returns true for the message that ends a run.
func (m Message) IsTerminal() bool { return m.Type == MessageTypeProgressComplete }
