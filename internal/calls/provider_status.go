package calls

import "strings"

// providerStatuses maps the provider's call status vocabulary onto Status.
var providerStatuses = map[string]Status{
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

// MapProviderStatus translates a provider status. Unknown values report ok=false
// and must leave the stored status untouched.
func MapProviderStatus(v string) (Status, bool) {
	s, ok := providerStatuses[strings.ToLower(strings.TrimSpace(v))]
	return s, ok
}

// endedReasonOutcomes maps provider ended reasons onto an Outcome when the
// analysis carries no success evaluation.
var endedReasonOutcomes = map[string]Outcome{
	"voicemail":               OutcomeVoicemail,
	"customer-did-not-answer": OutcomeNoAnswer,
	"no-answer":               OutcomeNoAnswer,
	"customer-busy":           OutcomeBusy,
	"busy":                    OutcomeBusy,
	"failed":                  OutcomeFailed,
	"pipeline-error":          OutcomeFailed,
	"assistant-error":         OutcomeFailed,
}

// DeriveOutcome picks an outcome from a success evaluation first and the ended
// reason second. A nil result means "no information".
func DeriveOutcome(successEvaluation any, endedReason string) *Outcome {
	switch v := successEvaluation.(type) {
	case bool:
		if v {
			return OutcomePtr(OutcomeSuccess)
		}
		return OutcomePtr(OutcomeUnsuccessful)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "pass", "success", "yes":
			return OutcomePtr(OutcomeSuccess)
		case "false", "fail", "failed", "no":
			return OutcomePtr(OutcomeUnsuccessful)
		}
	case float64:
		if v > 0 {
			return OutcomePtr(OutcomeSuccess)
		}
		return OutcomePtr(OutcomeUnsuccessful)
	}

	reason := strings.ToLower(strings.TrimSpace(endedReason))
	if reason == "" {
		return nil
	}
	if o, ok := endedReasonOutcomes[reason]; ok {
		return OutcomePtr(o)
	}
	if strings.Contains(reason, "voicemail") {
		return OutcomePtr(OutcomeVoicemail)
	}
	if strings.Contains(reason, "error") || strings.Contains(reason, "failed") {
		return OutcomePtr(OutcomeFailed)
	}
	return nil
}
