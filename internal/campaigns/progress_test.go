package campaigns

import (
	"testing"
	"time"

	"voice-campaigns/internal/calls"
)

func callRow(id string, st calls.Status, outcome *calls.Outcome, dur, cost float64, updated time.Time) calls.Call {
	return calls.Call{
		ID:              id,
		OrganizationID:  "org1",
		CampaignID:      "camp1",
		Status:          st,
		Outcome:         outcome,
		DurationSeconds: dur,
		Cost:            cost,
		UpdatedAt:       updated,
	}
}

func TestComputeMetrics_RatesAreDerivedFromCallRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []calls.Call{
		callRow("a", calls.StatusCompleted, calls.OutcomePtr(calls.OutcomeSuccess), 60, 0.10, now),
		callRow("b", calls.StatusCompleted, calls.OutcomePtr(calls.OutcomeSuccess), 120, 0.20, now),
		callRow("c", calls.StatusCompleted, calls.OutcomePtr(calls.OutcomeUnsuccessful), 30, 0.05, now),
		callRow("d", calls.StatusFailed, calls.OutcomePtr(calls.OutcomeNoAnswer), 0, 0, now),
		callRow("e", calls.StatusPending, nil, 0, 0, now),
	}

	m := ComputeMetrics(StatusRunning, rows, now, 30*time.Second)

	if m.TotalCalls != 5 || m.CompletedCalls != 4 || m.SuccessfulCalls != 2 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if m.SuccessRate != 50 {
		t.Fatalf("expected successRate 50, got %d", m.SuccessRate)
	}
	if m.ProgressPercentage != 80 {
		t.Fatalf("expected progressPercentage 80, got %d", m.ProgressPercentage)
	}
	if m.PendingCalls != 1 || m.FailedCalls != 1 || m.ActiveCalls != 0 {
		t.Fatalf("unexpected status breakdown %+v", m)
	}
	if m.TotalDuration != 210 || m.AverageDuration != 52.5 {
		t.Fatalf("unexpected durations %+v", m)
	}
	// 1 pending * (52.5s + 30s)
	want := now.Add(82500 * time.Millisecond)
	if m.EstimatedCompletion == nil || !m.EstimatedCompletion.Equal(want) {
		t.Fatalf("expected eta %v, got %v", want, m.EstimatedCompletion)
	}
}

func TestComputeMetrics_CompletedWithoutOutcomeCountsAsSuccess(t *testing.T) {
	now := time.Now()
	rows := []calls.Call{
		callRow("a", calls.StatusCompleted, nil, 10, 0, now),
		callRow("b", calls.StatusCancelled, nil, 0, 0, now),
	}
	m := ComputeMetrics(StatusCompleted, rows, now, 0)
	if m.SuccessfulCalls != 1 || m.SuccessRate != 50 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if m.EstimatedCompletion != nil {
		t.Fatalf("no estimate outside running")
	}
}

func TestComputeMetrics_EmptyCampaignHasZeroRates(t *testing.T) {
	m := ComputeMetrics(StatusRunning, nil, time.Now(), time.Minute)
	if m.SuccessRate != 0 || m.ProgressPercentage != 0 || m.AverageDuration != 0 || m.EstimatedCompletion != nil {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestAllowedActions(t *testing.T) {
	cases := map[Status]Actions{
		StatusDraft:     {CanStart: true},
		StatusScheduled: {},
		StatusRunning:   {CanPause: true, CanStop: true},
		StatusPaused:    {CanResume: true, CanStop: true},
		StatusCompleted: {},
		StatusCancelled: {},
	}
	for st, want := range cases {
		if got := AllowedActions(st, 3); got != want {
			t.Fatalf("%s: got %+v want %+v", st, got, want)
		}
	}
	if AllowedActions(StatusDraft, 0).CanStart {
		t.Fatalf("an empty draft cannot start")
	}
}

func TestComputeProgress_FillsCountsAndRecentActivity(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []calls.Call{
		callRow("old", calls.StatusCompleted, nil, 10, 0, base),
		callRow("new", calls.StatusInProgress, nil, 0, 0, base.Add(2*time.Minute)),
		callRow("mid", calls.StatusPending, nil, 0, 0, base.Add(time.Minute)),
	}
	p := ComputeProgress(Campaign{ID: "camp1", Status: StatusRunning}, rows, base, time.Second, 2)

	if p.Campaign.TotalCalls != 3 || p.Campaign.CompletedCalls != 1 || p.Campaign.SuccessfulCalls != 1 {
		t.Fatalf("campaign counts not filled: %+v", p.Campaign)
	}
	if len(p.RecentActivity) != 2 || p.RecentActivity[0].CallID != "new" || p.RecentActivity[1].CallID != "mid" {
		t.Fatalf("unexpected activity %+v", p.RecentActivity)
	}
	if !p.Status.CanPause {
		t.Fatalf("expected running campaign to be pausable")
	}
}
