package transcripts

import (
	"context"
	"encoding/json"
	"testing"

	"voice-campaigns/internal/calls"
)

func TestAccumulator_AppendsFinalFragmentsAndCommitsReport(t *testing.T) {
	ctx := context.Background()
	repo := calls.NewMemoryRepo()
	acc := NewAccumulator(calls.NewReconciler(repo))

	frags := []Fragment{
		{OrganizationID: "org1", ProviderCallID: "p1", Role: "assistant", Text: "Hello, this is Ava."},
		{OrganizationID: "org1", ProviderCallID: "p1", Role: "user", Text: "Hi", Partial: true},
		{OrganizationID: "org1", ProviderCallID: "p1", Role: "user", Text: "Hi there"},
	}
	var last calls.Result
	for _, f := range frags {
		res, err := acc.Append(ctx, f)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if !f.Partial {
			last = res
		}
	}
	if want := "AI: Hello, this is Ava.\nUser: Hi there"; last.Call.Transcript != want {
		t.Fatalf("expected %q, got %q", want, last.Call.Transcript)
	}

	dur := 42.0
	res, err := acc.Commit(ctx, Report{
		OrganizationID:  "org1",
		ProviderCallID:  "p1",
		Transcript:      "AI: Hello, this is Ava.\nUser: Hi there\nAI: Bye",
		Summary:         "Short greeting.",
		Analysis:        json.RawMessage(`{"successEvaluation":true}`),
		DurationSeconds: &dur,
		Outcome:         calls.OutcomePtr(calls.OutcomeSuccess),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Call.Status != calls.StatusCompleted || !res.BecameTerminal {
		t.Fatalf("expected completed terminal transition, got %+v", res)
	}
	if res.Call.Transcript != "AI: Hello, this is Ava.\nUser: Hi there\nAI: Bye" {
		t.Fatalf("final transcript should supersede fragments, got %q", res.Call.Transcript)
	}
	if res.Call.DurationSeconds != 42 || res.Call.Summary != "Short greeting." {
		t.Fatalf("report fields not committed: %+v", res.Call)
	}

	// Fragments arriving after the call ended are ignored.
	late, err := acc.Append(ctx, Fragment{OrganizationID: "org1", ProviderCallID: "p1", Role: "user", Text: "wait"})
	if err != nil {
		t.Fatalf("late append: %v", err)
	}
	if late.Changed {
		t.Fatalf("terminal call must not accept fragments")
	}
}

func TestAccumulator_RejectsEmptyFragment(t *testing.T) {
	acc := NewAccumulator(calls.NewReconciler(calls.NewMemoryRepo()))
	if _, err := acc.Append(context.Background(), Fragment{OrganizationID: "org1", ProviderCallID: "p1", Text: "  "}); err != ErrEmptyFragment {
		t.Fatalf("expected ErrEmptyFragment, got %v", err)
	}
}

func TestFormatLine(t *testing.T) {
	if got := FormatLine("bot", " ok "); got != "AI: ok" {
		t.Fatalf("unexpected %q", got)
	}
	if got := FormatLine("", "raw"); got != "raw" {
		t.Fatalf("unexpected %q", got)
	}
}
