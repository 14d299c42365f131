package calls

import (
	"encoding/json"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func baseCall() Call {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return Call{
		ID:             "c1",
		OrganizationID: "org1",
		Status:         StatusPending,
		Metadata:       map[string]string{MetaCallID: "c1"},
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestMerge_AbsentFieldsDoNotErase(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)
	c := baseCall()
	c.Summary = "left a message"
	c.RecordingURL = "https://rec/1"
	c.Cost = 0.42

	next, changed := Merge(c, Patch{Status: StatusInProgress}, now)
	if !changed {
		t.Fatalf("expected change")
	}
	if next.Summary != "left a message" || next.RecordingURL != "https://rec/1" || next.Cost != 0.42 {
		t.Fatalf("absent fields erased: %+v", next)
	}
	if next.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", next.Status)
	}
	if !next.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at bumped")
	}
}

func TestMerge_IsIdempotent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	p := Patch{
		Status:          StatusInProgress,
		DurationSeconds: f64(30),
		Cost:            f64(0.1),
		Metadata:        map[string]string{"k": "v"},
	}

	once, _ := Merge(baseCall(), p, now)
	twice, changed := Merge(once, p, later)
	if changed {
		t.Fatalf("second application must be a no-op")
	}
	if twice.DurationSeconds != 30 || twice.Cost != 0.1 {
		t.Fatalf("values accumulated: %+v", twice)
	}
	if !twice.UpdatedAt.Equal(once.UpdatedAt) {
		t.Fatalf("updated_at moved on a no-op")
	}
}

func TestMerge_TerminalIsWriteOnce(t *testing.T) {
	now := time.Now()
	c := baseCall()
	c.Status = StatusCompleted

	for _, s := range []Status{StatusInProgress, StatusFailed, StatusPending, StatusCancelled} {
		next, changed := Merge(c, Patch{Status: s, Cost: f64(9)}, now)
		if changed || next.Status != StatusCompleted || next.Cost != 0 {
			t.Fatalf("terminal call changed by %s: %+v", s, next)
		}
	}
}

func TestMerge_NoRegressionBeforeTerminal(t *testing.T) {
	c := baseCall()
	c.Status = StatusInProgress
	next, changed := Merge(c, Patch{Status: StatusPending}, time.Now())
	if changed || next.Status != StatusInProgress {
		t.Fatalf("status regressed to %s", next.Status)
	}
}

func TestMerge_FinalPatchAppliesToTerminalCallButKeepsStatus(t *testing.T) {
	c := baseCall()
	c.Status = StatusFailed
	analysis := json.RawMessage(`{"successEvaluation":false}`)

	next, changed := Merge(c, Patch{
		Final:      true,
		Status:     StatusCompleted,
		Summary:    "no interest",
		Transcript: "AI: hi\nUser: no thanks",
		Analysis:   analysis,
	}, time.Now())
	if !changed {
		t.Fatalf("expected final commit to apply")
	}
	if next.Status != StatusFailed {
		t.Fatalf("first terminal status must win, got %s", next.Status)
	}
	if next.Summary != "no interest" || next.Transcript != "AI: hi\nUser: no thanks" || string(next.Analysis) != string(analysis) {
		t.Fatalf("final fields not committed: %+v", next)
	}
}

func TestMerge_ProviderCallIDIsWriteOnce(t *testing.T) {
	c := baseCall()
	c.ProviderCallID = "p1"
	next, _ := Merge(c, Patch{ProviderCallID: "p2", Status: StatusInProgress}, time.Now())
	if next.ProviderCallID != "p1" {
		t.Fatalf("provider call id overwritten: %s", next.ProviderCallID)
	}
}

func TestMerge_TranscriptFragmentsAppendInArrivalOrder(t *testing.T) {
	c := baseCall()
	now := time.Now()
	c, _ = Merge(c, Patch{TranscriptFragment: "User: hello"}, now)
	c, _ = Merge(c, Patch{TranscriptFragment: "AI: hi there"}, now)
	c, changed := Merge(c, Patch{TranscriptFragment: "AI: hi there"}, now)
	if changed {
		t.Fatalf("immediate redelivery should not append")
	}
	if c.Transcript != "User: hello\nAI: hi there" {
		t.Fatalf("unexpected transcript %q", c.Transcript)
	}

	c, _ = Merge(c, Patch{Transcript: "full text"}, now)
	if c.Transcript != "full text" {
		t.Fatalf("final transcript should supersede fragments, got %q", c.Transcript)
	}
}

func TestMerge_KeyedFragmentsAppendOncePerKey(t *testing.T) {
	c := baseCall()
	now := time.Now()
	c, _ = Merge(c, Patch{TranscriptFragment: "AI: Hi.", FragmentKey: "assistant@100"}, now)
	c, _ = Merge(c, Patch{TranscriptFragment: "User: Hello.", FragmentKey: "user@200"}, now)
	before := c

	c, changed := Merge(c, Patch{TranscriptFragment: "AI: Hi.", FragmentKey: "assistant@100"}, now)
	if changed {
		t.Fatalf("redelivered fragment should not append")
	}
	if c.Transcript != "AI: Hi.\nUser: Hello." || c.Metadata[MetaTranscriptKeys] != before.Metadata[MetaTranscriptKeys] {
		t.Fatalf("unexpected record after redelivery: %q keys=%q", c.Transcript, c.Metadata[MetaTranscriptKeys])
	}

	// A repeated line under a new key is a new utterance.
	c, _ = Merge(c, Patch{TranscriptFragment: "User: Hello.", FragmentKey: "user@300"}, now)
	if c.Transcript != "AI: Hi.\nUser: Hello.\nUser: Hello." {
		t.Fatalf("unexpected transcript %q", c.Transcript)
	}

	// Keys only come from fragments, never from event metadata.
	c, changed = Merge(c, Patch{Metadata: map[string]string{MetaTranscriptKeys: "x"}}, now)
	if changed || c.Metadata[MetaTranscriptKeys] != "assistant@100 user@200 user@300" {
		t.Fatalf("transcript keys overwritten: %q", c.Metadata[MetaTranscriptKeys])
	}
}

func TestMerge_DoesNotMutateExisting(t *testing.T) {
	c := baseCall()
	_, _ = Merge(c, Patch{Metadata: map[string]string{"extra": "1"}}, time.Now())
	if _, ok := c.Metadata["extra"]; ok {
		t.Fatalf("merge mutated input metadata")
	}
}

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]Status{
		"queued":      StatusPending,
		"ringing":     StatusPending,
		"in-progress": StatusInProgress,
		"forwarded":   StatusCompleted,
		"ended":       StatusCompleted,
		"busy":        StatusFailed,
		"no-answer":   StatusFailed,
		"failed":      StatusFailed,
		"canceled":    StatusCancelled,
	}
	for in, want := range cases {
		got, ok := MapProviderStatus(in)
		if !ok || got != want {
			t.Fatalf("%s: expected %s, got %s (ok=%v)", in, want, got, ok)
		}
	}
	if _, ok := MapProviderStatus("teleporting"); ok {
		t.Fatalf("unknown status must not map")
	}
}

func TestDeriveOutcome(t *testing.T) {
	if o := DeriveOutcome(true, "voicemail"); o == nil || *o != OutcomeSuccess {
		t.Fatalf("success evaluation should win over ended reason")
	}
	if o := DeriveOutcome("false", ""); o == nil || *o != OutcomeUnsuccessful {
		t.Fatalf("expected unsuccessful")
	}
	if o := DeriveOutcome(nil, "voicemail"); o == nil || *o != OutcomeVoicemail {
		t.Fatalf("expected voicemail")
	}
	if o := DeriveOutcome(nil, "customer-ended-call"); o != nil {
		t.Fatalf("expected no outcome, got %s", *o)
	}
}
