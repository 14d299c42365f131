package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrBadEnvelope is the only error the gateway reports to the provider.
var ErrBadEnvelope = errors.New("webhook: bad envelope")

// Envelope is the provider's POST body.
type Envelope struct {
	Message *Message `json:"message"`
}

// Message carries one event. Which fields are present depends on Type.
//
// Only type is structural. Any other field that does not decode is left
// zero and named in Invalid, so one odd field never rejects the event.
type Message struct {
	Type EventType `json:"type"`
	// Timestamp is the provider's per-message timestamp, as sent.
	Timestamp string `json:"timestamp,omitempty"`

	Call        *CallInfo    `json:"call,omitempty"`
	PhoneNumber *PhoneNumber `json:"phoneNumber,omitempty"`
	Customer    *Customer    `json:"customer,omitempty"`
	Assistant   *Assistant   `json:"assistant,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`

	// status-update
	Status      string `json:"status,omitempty"`
	EndedReason string `json:"endedReason,omitempty"`

	// tool-calls
	ToolCallList []ToolCall `json:"toolCallList,omitempty"`
	ToolCalls    []ToolCall `json:"toolCalls,omitempty"`

	// transcript and end-of-call-report
	Transcript     string `json:"transcript,omitempty"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Role           string `json:"role,omitempty"`

	// end-of-call-report
	Summary         string          `json:"summary,omitempty"`
	Analysis        json.RawMessage `json:"analysis,omitempty"`
	Artifact        *Artifact       `json:"artifact,omitempty"`
	RecordingURL    string          `json:"recordingUrl,omitempty"`
	DurationSeconds *float64        `json:"durationSeconds,omitempty"`
	Cost            *float64        `json:"cost,omitempty"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`

	Invalid []string `json:"-"`
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var typ string
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &typ); err != nil {
			return fmt.Errorf("message.type: %w", err)
		}
	}
	*m = Message{Type: EventType(strings.TrimSpace(typ))}

	fields := map[string]any{
		"call":           &m.Call,
		"phoneNumber":    &m.PhoneNumber,
		"customer":       &m.Customer,
		"assistant":      &m.Assistant,
		"metadata":       &m.Metadata,
		"status":         &m.Status,
		"endedReason":    &m.EndedReason,
		"toolCallList":   &m.ToolCallList,
		"toolCalls":      &m.ToolCalls,
		"transcript":     &m.Transcript,
		"transcriptType": &m.TranscriptType,
		"role":           &m.Role,
		"summary":        &m.Summary,
		"artifact":       &m.Artifact,
		"recordingUrl":   &m.RecordingURL,
	}
	for key, dst := range fields {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			m.Invalid = append(m.Invalid, key)
		}
	}
	if v, ok := raw["analysis"]; ok {
		m.Analysis = append(json.RawMessage(nil), v...)
	}

	var ok bool
	if m.Timestamp, ok = scalarString(raw["timestamp"]); !ok {
		m.Invalid = append(m.Invalid, "timestamp")
	}
	if m.DurationSeconds, ok = flexFloat(raw["durationSeconds"]); !ok {
		m.Invalid = append(m.Invalid, "durationSeconds")
	}
	if m.Cost, ok = flexFloat(raw["cost"]); !ok {
		m.Invalid = append(m.Invalid, "cost")
	}
	if m.StartedAt, ok = flexTime(raw["startedAt"]); !ok {
		m.Invalid = append(m.Invalid, "startedAt")
	}
	if m.EndedAt, ok = flexTime(raw["endedAt"]); !ok {
		m.Invalid = append(m.Invalid, "endedAt")
	}
	sort.Strings(m.Invalid)
	return nil
}

func isAbsent(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// scalarString renders a JSON string or number as text.
func scalarString(v json.RawMessage) (string, bool) {
	if isAbsent(v) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// flexFloat accepts a JSON number or a numeric string.
func flexFloat(v json.RawMessage) (*float64, bool) {
	s, ok := scalarString(v)
	if !ok {
		return nil, false
	}
	if s == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}

// flexTime accepts RFC 3339 text or Unix epoch seconds or milliseconds.
func flexTime(v json.RawMessage) (*time.Time, bool) {
	s, ok := scalarString(v)
	if !ok {
		return nil, false
	}
	if s == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		return &t, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	var t time.Time
	if f >= 1e12 {
		t = time.UnixMilli(int64(f)).UTC()
	} else {
		t = time.Unix(int64(f), 0).UTC()
	}
	return &t, true
}

type CallInfo struct {
	ID            string    `json:"id"`
	AssistantID   string    `json:"assistantId,omitempty"`
	PhoneNumberID string    `json:"phoneNumberId,omitempty"`
	Type          string    `json:"type,omitempty"`
	Status        string    `json:"status,omitempty"`
	Customer      *Customer `json:"customer,omitempty"`
	Metadata      Metadata  `json:"metadata,omitempty"`
}

type PhoneNumber struct {
	ID     string `json:"id,omitempty"`
	Number string `json:"number"`
}

type Customer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type Assistant struct {
	ID       string   `json:"id,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}

type Artifact struct {
	Transcript   string `json:"transcript,omitempty"`
	RecordingURL string `json:"recordingUrl,omitempty"`
}

// ToolCall is one requested function. The provider sends either the OpenAI
// shape ({function:{name,arguments}}) or a flat {name,arguments}.
type ToolCall struct {
	ID        string          `json:"id"`
	Type      string          `json:"type,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Function  *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	} `json:"function,omitempty"`
}

func (t ToolCall) FunctionName() string {
	if t.Function != nil && t.Function.Name != "" {
		return t.Function.Name
	}
	return t.Name
}

func (t ToolCall) FunctionArguments() json.RawMessage {
	if t.Function != nil && len(t.Function.Arguments) > 0 {
		return t.Function.Arguments
	}
	return t.Arguments
}

// Metadata is a string map that tolerates scalar values of any JSON type.
type Metadata map[string]string

func (m *Metadata) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = nil
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Metadata, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			enc, err := json.Marshal(t)
			if err != nil {
				return err
			}
			out[k] = string(enc)
		}
	}
	*m = out
	return nil
}

// Decode parses and structurally validates one envelope.
func Decode(body []byte) (*Message, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if env.Message == nil || strings.TrimSpace(string(env.Message.Type)) == "" {
		return nil, fmt.Errorf("%w: message.type is required", ErrBadEnvelope)
	}
	return env.Message, nil
}

// ProviderCallID returns the provider's id for the call, if present.
func (m *Message) ProviderCallID() string {
	if m.Call == nil {
		return ""
	}
	return strings.TrimSpace(m.Call.ID)
}

// AllMetadata merges assistant, call and message metadata; later sources win.
func (m *Message) AllMetadata() map[string]string {
	out := map[string]string{}
	if m.Assistant != nil {
		for k, v := range m.Assistant.Metadata {
			out[k] = v
		}
	}
	if m.Call != nil {
		for k, v := range m.Call.Metadata {
			out[k] = v
		}
	}
	for k, v := range m.Metadata {
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (m *Message) AgentID() string {
	if m.Call != nil && m.Call.AssistantID != "" {
		return m.Call.AssistantID
	}
	if m.Assistant != nil {
		return m.Assistant.ID
	}
	return ""
}

// DialedNumber is the organization's own number: the callee for inbound calls.
func (m *Message) DialedNumber() string {
	if m.PhoneNumber != nil {
		return m.PhoneNumber.Number
	}
	return ""
}

// CustomerNumber is the other party of the call.
func (m *Message) CustomerNumber() string {
	if m.Customer != nil && m.Customer.Number != "" {
		return m.Customer.Number
	}
	if m.Call != nil && m.Call.Customer != nil {
		return m.Call.Customer.Number
	}
	return ""
}

func (m *Message) Requests() []ToolCall {
	if len(m.ToolCallList) > 0 {
		return m.ToolCallList
	}
	return m.ToolCalls
}

// SuccessEvaluation extracts analysis.successEvaluation, or nil.
func (m *Message) SuccessEvaluation() any {
	if len(m.Analysis) == 0 {
		return nil
	}
	var a struct {
		SuccessEvaluation any `json:"successEvaluation"`
	}
	if err := json.Unmarshal(m.Analysis, &a); err != nil {
		return nil
	}
	return a.SuccessEvaluation
}

// AnalysisSummary extracts analysis.summary, or "".
func (m *Message) AnalysisSummary() string {
	if len(m.Analysis) == 0 {
		return ""
	}
	var a struct {
		Summary string `json:"summary"`
	}
	_ = json.Unmarshal(m.Analysis, &a)
	return a.Summary
}
