package calls

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Patch is a partial update derived from one inbound event.
// Zero values (empty strings, nil pointers, nil maps) mean "absent" and never erase stored data.
type Patch struct {
	ProviderCallID string
	CampaignID     string
	AgentID        string
	ContactPhone   string

	Status  Status
	Outcome *Outcome

	DurationSeconds *float64
	Cost            *float64

	// TranscriptFragment is appended to the accumulated transcript.
	TranscriptFragment string
	// FragmentKey identifies TranscriptFragment across redeliveries. A keyed
	// fragment is appended at most once per call.
	FragmentKey string
	// Transcript replaces the accumulated transcript when non-empty.
	Transcript   string
	Summary      string
	Analysis     json.RawMessage
	RecordingURL string

	StartedAt *time.Time
	EndedAt   *time.Time

	Metadata map[string]string

	// Final marks an end-of-call commit. It is the only patch allowed to
	// write fields onto a call that is already terminal.
	Final bool
}

// IsEmpty reports whether the patch carries nothing to merge.
func (p Patch) IsEmpty() bool {
	return p.ProviderCallID == "" && p.CampaignID == "" && p.AgentID == "" && p.ContactPhone == "" &&
		p.Status == "" && p.Outcome == nil && p.DurationSeconds == nil && p.Cost == nil &&
		p.TranscriptFragment == "" && p.Transcript == "" && p.Summary == "" && len(p.Analysis) == 0 &&
		p.RecordingURL == "" && p.StartedAt == nil && p.EndedAt == nil && len(p.Metadata) == 0
}

// Merge applies p over existing and returns the resulting record. existing is not modified.
//
// Rules:
//   - absent patch fields never erase stored fields; present ones win
//   - ProviderCallID and CampaignID are write-once
//   - status never moves backwards; the first terminal status wins
//   - a terminal call only accepts Final patches, and those never touch status
//
// changed is false when the result equals existing, in which case UpdatedAt is kept.
func Merge(existing Call, p Patch, now time.Time) (Call, bool) {
	next := existing
	next.Metadata = cloneMetadata(existing.Metadata)

	if existing.Status.IsTerminal() && !p.Final {
		return existing, false
	}

	changed := false
	setString := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	setOnce := func(dst *string, v string) {
		if v != "" && *dst == "" {
			*dst = v
			changed = true
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setTime := func(dst **time.Time, v *time.Time) {
		if v == nil {
			return
		}
		if *dst == nil || !(*dst).Equal(*v) {
			t := v.UTC()
			*dst = &t
			changed = true
		}
	}

	setOnce(&next.ProviderCallID, p.ProviderCallID)
	setOnce(&next.CampaignID, p.CampaignID)
	setString(&next.AgentID, p.AgentID)
	setString(&next.ContactPhone, p.ContactPhone)

	if p.Status != "" && p.Status.Valid() && !existing.Status.IsTerminal() && p.Status.rank() > existing.Status.rank() {
		next.Status = p.Status
		changed = true
	}

	if p.Outcome != nil && *p.Outcome != "" && (next.Outcome == nil || *next.Outcome != *p.Outcome) {
		o := *p.Outcome
		next.Outcome = &o
		changed = true
	}

	setFloat(&next.DurationSeconds, p.DurationSeconds)
	setFloat(&next.Cost, p.Cost)

	if p.Transcript != "" {
		setString(&next.Transcript, p.Transcript)
	} else if frag := strings.TrimSpace(p.TranscriptFragment); frag != "" {
		key := fragmentKey(p.FragmentKey)
		switch {
		case key != "":
			if keys, ok := addKey(next.Metadata[MetaTranscriptKeys], key); ok {
				if next.Metadata == nil {
					next.Metadata = map[string]string{}
				}
				next.Metadata[MetaTranscriptKeys] = keys
				next.Transcript = joinLine(next.Transcript, frag)
				changed = true
			}
		default:
			if appended, ok := appendFragment(next.Transcript, frag); ok {
				next.Transcript = appended
				changed = true
			}
		}
	}
	setString(&next.Summary, p.Summary)
	if hasJSON(p.Analysis) && !bytes.Equal(next.Analysis, p.Analysis) {
		next.Analysis = append(json.RawMessage(nil), p.Analysis...)
		changed = true
	}
	setString(&next.RecordingURL, p.RecordingURL)

	setTime(&next.StartedAt, p.StartedAt)
	setTime(&next.EndedAt, p.EndedAt)

	for k, v := range p.Metadata {
		if k == "" || v == "" || k == MetaTranscriptKeys {
			continue
		}
		if next.Metadata == nil {
			next.Metadata = map[string]string{}
		}
		if next.Metadata[k] != v {
			next.Metadata[k] = v
			changed = true
		}
	}

	if !changed {
		return existing, false
	}
	next.UpdatedAt = now.UTC()
	return next, true
}

// appendFragment adds an unkeyed frag as a new line unless it repeats the
// last line, which is what an immediate redelivery looks like.
func appendFragment(transcript, frag string) (string, bool) {
	last := transcript
	if i := strings.LastIndexByte(transcript, '\n'); i >= 0 {
		last = transcript[i+1:]
	}
	if transcript != "" && last == frag {
		return transcript, false
	}
	return joinLine(transcript, frag), true
}

func joinLine(transcript, line string) string {
	if transcript == "" {
		return line
	}
	return transcript + "\n" + line
}

// fragmentKey makes k safe to store in the space separated key list.
func fragmentKey(k string) string {
	return strings.Join(strings.Fields(k), "_")
}

// addKey appends key to the list unless it is already present.
func addKey(list, key string) (string, bool) {
	for _, k := range strings.Fields(list) {
		if k == key {
			return list, false
		}
	}
	if list == "" {
		return key, true
	}
	return list + " " + key, true
}

func hasJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
