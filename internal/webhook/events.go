package webhook

// EventType is the closed set of provider events the gateway handles.
type EventType string

const (
	EventAssistantRequest EventType = "assistant-request"
	EventToolCalls        EventType = "tool-calls"
	EventStatusUpdate     EventType = "status-update"
	EventEndOfCallReport  EventType = "end-of-call-report"
	EventSpeechUpdate     EventType = "speech-update"
	EventTranscript       EventType = "transcript"
)

// KnownEvents lists every EventType; the gateway registers a handler for each.
var KnownEvents = []EventType{
	EventAssistantRequest,
	EventToolCalls,
	EventStatusUpdate,
	EventEndOfCallReport,
	EventSpeechUpdate,
	EventTranscript,
}

// Ack acknowledges an event that needs no answer.
type Ack struct {
	Received bool `json:"received"`
}

var ack = Ack{Received: true}
