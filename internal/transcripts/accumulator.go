package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"voice-campaigns/internal/calls"
)

var ErrEmptyFragment = errors.New("transcripts: empty fragment")

// Reconciler is the subset of calls.Reconciler used here.
type Reconciler interface {
	Apply(ctx context.Context, u calls.Update) (calls.Result, error)
}

// Fragment is one transcript line as delivered by the provider.
type Fragment struct {
	OrganizationID string
	CorrelationID  string
	ProviderCallID string

	Role string
	Text string
	// Partial fragments are interim recognitions that a later final fragment supersedes.
	Partial bool

	// Timestamp is the provider's per-message timestamp. When set, a redelivered
	// fragment is recognised and not appended again.
	Timestamp string
}

// Report is the end-of-call payload committed in one write.
type Report struct {
	OrganizationID string
	CorrelationID  string
	ProviderCallID string

	// Transcript, when set, supersedes the accumulated fragments.
	Transcript   string
	Summary      string
	Analysis     json.RawMessage
	RecordingURL string

	DurationSeconds *float64
	Cost            *float64
	StartedAt       *time.Time
	EndedAt         *time.Time

	// Status defaults to completed.
	Status  calls.Status
	Outcome *calls.Outcome
}

// Accumulator appends transcript fragments and commits final call reports
// through the call reconciler, so both follow the same merge rules.
type Accumulator struct {
	rec Reconciler
}

func NewAccumulator(rec Reconciler) *Accumulator { return &Accumulator{rec: rec} }

// Append adds a final fragment in arrival order. Partial fragments are skipped.
func (a *Accumulator) Append(ctx context.Context, f Fragment) (calls.Result, error) {
	if f.Partial {
		return calls.Result{}, nil
	}
	line := FormatLine(f.Role, f.Text)
	if line == "" {
		return calls.Result{}, ErrEmptyFragment
	}
	return a.rec.Apply(ctx, calls.Update{
		OrganizationID: f.OrganizationID,
		CorrelationID:  f.CorrelationID,
		Patch: calls.Patch{
			ProviderCallID:     f.ProviderCallID,
			TranscriptFragment: line,
			FragmentKey:        f.key(),
		},
	})
}

func (f Fragment) key() string {
	ts := strings.TrimSpace(f.Timestamp)
	if ts == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(f.Role)) + "@" + ts
}

// Commit writes the end-of-call report atomically.
func (a *Accumulator) Commit(ctx context.Context, r Report) (calls.Result, error) {
	status := r.Status
	if status == "" {
		status = calls.StatusCompleted
	}
	return a.rec.Apply(ctx, calls.Update{
		OrganizationID: r.OrganizationID,
		CorrelationID:  r.CorrelationID,
		Patch: calls.Patch{
			ProviderCallID:  r.ProviderCallID,
			Status:          status,
			Outcome:         r.Outcome,
			DurationSeconds: r.DurationSeconds,
			Cost:            r.Cost,
			Transcript:      strings.TrimSpace(r.Transcript),
			Summary:         strings.TrimSpace(r.Summary),
			Analysis:        r.Analysis,
			RecordingURL:    r.RecordingURL,
			StartedAt:       r.StartedAt,
			EndedAt:         r.EndedAt,
			Final:           true,
		},
	})
}

// FormatLine renders a fragment as "Role: text". Provider roles "assistant"
// and "bot" render as AI.
func FormatLine(role, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "bot", "ai":
		return "AI: " + text
	case "user", "customer":
		return "User: " + text
	case "":
		return text
	default:
		return role + ": " + text
	}
}
