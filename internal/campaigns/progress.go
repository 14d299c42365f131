package campaigns

import (
	"math"
	"sort"
	"time"

	"voice-campaigns/internal/calls"
)

// Metrics are derived from a campaign's call rows on every read.
type Metrics struct {
	TotalCalls      int `json:"totalCalls"`
	CompletedCalls  int `json:"completedCalls"`
	SuccessfulCalls int `json:"successfulCalls"`
	ActiveCalls     int `json:"activeCalls"`
	PendingCalls    int `json:"pendingCalls"`
	FailedCalls     int `json:"failedCalls"`

	TotalCost       float64 `json:"totalCost"`
	TotalDuration   float64 `json:"totalDuration"`
	AverageDuration float64 `json:"averageDuration"`

	SuccessRate         int        `json:"successRate"`
	ProgressPercentage  int        `json:"progressPercentage"`
	EstimatedCompletion *time.Time `json:"estimatedCompletion,omitempty"`
}

// Actions are the operations the campaign's current status allows.
type Actions struct {
	CanStart  bool `json:"canStart"`
	CanPause  bool `json:"canPause"`
	CanResume bool `json:"canResume"`
	CanStop   bool `json:"canStop"`
}

// Activity is one row of the recent call feed.
type Activity struct {
	CallID       string         `json:"callId"`
	ContactPhone string         `json:"contactPhone,omitempty"`
	Status       calls.Status   `json:"status"`
	Outcome      *calls.Outcome `json:"outcome,omitempty"`
	Duration     float64        `json:"duration"`
	Cost         float64        `json:"cost"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	EndedAt      *time.Time     `json:"endedAt,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Progress is the campaign query response.
type Progress struct {
	Campaign       Campaign   `json:"campaign"`
	Metrics        Metrics    `json:"metrics"`
	Status         Actions    `json:"status"`
	RecentActivity []Activity `json:"recentActivity"`
}

// ComputeMetrics aggregates rows. gap is the fixed pause between two dials and
// only feeds the completion estimate.
func ComputeMetrics(status Status, rows []calls.Call, now time.Time, gap time.Duration) Metrics {
	var m Metrics
	for _, c := range rows {
		m.TotalCalls++
		m.TotalCost += c.Cost
		m.TotalDuration += c.DurationSeconds

		if c.Status.IsTerminal() {
			m.CompletedCalls++
		}
		if isSuccessful(c) {
			m.SuccessfulCalls++
		}
		switch c.Status {
		case calls.StatusInProgress:
			m.ActiveCalls++
		case calls.StatusPending:
			m.PendingCalls++
		case calls.StatusFailed:
			m.FailedCalls++
		}
	}

	if m.CompletedCalls > 0 {
		m.AverageDuration = m.TotalDuration / float64(m.CompletedCalls)
		m.SuccessRate = percent(m.SuccessfulCalls, m.CompletedCalls)
	}
	if m.TotalCalls > 0 {
		m.ProgressPercentage = percent(m.CompletedCalls, m.TotalCalls)
	}

	if status == StatusRunning && m.CompletedCalls > 0 && m.PendingCalls > 0 {
		perCall := time.Duration(m.AverageDuration*float64(time.Second)) + gap
		eta := now.UTC().Add(time.Duration(m.PendingCalls) * perCall)
		m.EstimatedCompletion = &eta
	}
	return m
}

// isSuccessful counts an explicit success outcome, or a completed call whose
// outcome was never evaluated.
func isSuccessful(c calls.Call) bool {
	if c.Outcome != nil {
		return *c.Outcome == calls.OutcomeSuccess
	}
	return c.Status == calls.StatusCompleted
}

func percent(part, whole int) int {
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// AllowedActions derives action flags from the status alone.
func AllowedActions(status Status, totalCalls int) Actions {
	return Actions{
		CanStart:  status == StatusDraft && totalCalls > 0,
		CanPause:  status == StatusRunning,
		CanResume: status == StatusPaused,
		CanStop:   status == StatusRunning || status == StatusPaused,
	}
}

// RecentActivity returns the n most recently updated calls, newest first.
func RecentActivity(rows []calls.Call, n int) []Activity {
	sorted := make([]calls.Call, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt) })
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]Activity, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, Activity{
			CallID:       c.ID,
			ContactPhone: c.ContactPhone,
			Status:       c.Status,
			Outcome:      c.Outcome,
			Duration:     c.DurationSeconds,
			Cost:         c.Cost,
			StartedAt:    c.StartedAt,
			EndedAt:      c.EndedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return out
}

// ComputeProgress assembles the full query response for c.
func ComputeProgress(c Campaign, rows []calls.Call, now time.Time, gap time.Duration, recent int) Progress {
	m := ComputeMetrics(c.Status, rows, now, gap)
	c.TotalCalls = m.TotalCalls
	c.CompletedCalls = m.CompletedCalls
	c.SuccessfulCalls = m.SuccessfulCalls
	return Progress{
		Campaign:       c,
		Metrics:        m,
		Status:         AllowedActions(c.Status, m.TotalCalls),
		RecentActivity: RecentActivity(rows, recent),
	}
}
