package webhook

import (
	"context"
	"errors"
	"log/slog"

	"voice-campaigns/internal/calls"
	"voice-campaigns/internal/tenancy"
	"voice-campaigns/internal/toolcalls"
	"voice-campaigns/internal/transcripts"
	"voice-campaigns/pkg/logger"
	"voice-campaigns/pkg/utils"
)

// Resolver is the organization lookup used by the gateway.
type Resolver interface {
	Resolve(ctx context.Context, h tenancy.Hints) (tenancy.Resolution, error)
	Assignment(ctx context.Context, phone string) (tenancy.PhoneAssignment, bool, error)
}

type Reconciler interface {
	Apply(ctx context.Context, u calls.Update) (calls.Result, error)
}

type Accumulator interface {
	Append(ctx context.Context, f transcripts.Fragment) (calls.Result, error)
	Commit(ctx context.Context, r transcripts.Report) (calls.Result, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, cc toolcalls.CallContext, reqs []toolcalls.Request) []toolcalls.Result
}

// ToolResults answers a tool-calls event, one entry per request.
type ToolResults struct {
	Results []toolcalls.Result `json:"results"`
}

// AssistantResponse answers an assistant-request with the agent to use.
type AssistantResponse struct {
	AssistantID string `json:"assistantId"`
}

// event is one decoded message bound to its organization.
type event struct {
	msg *Message
	org string
}

type handlerFunc func(ctx context.Context, ev event) any

// Gateway routes provider events to the reconciler, the transcript
// accumulator and the tool dispatcher. Apart from ErrBadEnvelope it never
// fails: downstream errors are logged and acknowledged.
type Gateway struct {
	resolver    Resolver
	reconciler  Reconciler
	transcripts Accumulator
	tools       Dispatcher
	region      string

	handlers map[EventType]handlerFunc
}

func NewGateway(resolver Resolver, rec Reconciler, acc Accumulator, tools Dispatcher, defaultRegion string) *Gateway {
	g := &Gateway{
		resolver:    resolver,
		reconciler:  rec,
		transcripts: acc,
		tools:       tools,
		region:      defaultRegion,
	}
	g.handlers = map[EventType]handlerFunc{
		EventAssistantRequest: g.onAssistantRequest,
		EventToolCalls:        g.onToolCalls,
		EventStatusUpdate:     g.onStatusUpdate,
		EventEndOfCallReport:  g.onEndOfCallReport,
		EventSpeechUpdate:     g.onSpeechUpdate,
		EventTranscript:       g.onTranscript,
	}
	return g
}

// Handle processes one raw envelope and returns the response body.
func (g *Gateway) Handle(ctx context.Context, body []byte) (any, error) {
	msg, err := Decode(body)
	if err != nil {
		return nil, err
	}

	log := logger.From(ctx).With("event_type", msg.Type, "provider_call_id", msg.ProviderCallID())
	ctx = logger.With(ctx, log)

	h, ok := g.handlers[msg.Type]
	if !ok {
		log.Debug("ignoring unsupported event type")
		return ack, nil
	}
	if len(msg.Invalid) > 0 {
		log.Warn("ignoring malformed event fields", "fields", msg.Invalid)
	}

	res, err := g.resolver.Resolve(ctx, tenancy.Hints{
		OrganizationID: msg.AllMetadata()[calls.MetaOrganizationID],
		AgentID:        msg.AgentID(),
		Phones:         []string{msg.DialedNumber(), msg.CustomerNumber()},
	})
	if err != nil {
		log.Error("organization lookup failed; event dropped", "err", err)
		return g.unresolved(msg, "organization lookup failed"), nil
	}
	if !res.Resolved() {
		log.Warn("organization unresolved; event dropped")
		return g.unresolved(msg, "organization unresolved"), nil
	}

	ctx = logger.With(ctx, log.With("organization_id", res.OrganizationID, "resolved_by", res.Source))
	return h(ctx, event{msg: msg, org: res.OrganizationID}), nil
}

// unresolved keeps a tool-call batch complete even when the event is dropped.
func (g *Gateway) unresolved(msg *Message, reason string) any {
	if msg.Type == EventToolCalls {
		return ToolResults{Results: toolcalls.Reject(toolRequests(msg), reason)}
	}
	return ack
}

// identity is the patch every event contributes: who and what the call is.
func (g *Gateway) identity(ev event) calls.Patch {
	meta := ev.msg.AllMetadata()
	return calls.Patch{
		ProviderCallID: ev.msg.ProviderCallID(),
		CampaignID:     meta[calls.MetaCampaignID],
		AgentID:        ev.msg.AgentID(),
		ContactPhone:   utils.NormalizeE164(ev.msg.CustomerNumber(), g.region),
		Metadata:       meta,
	}
}

func correlationID(msg *Message) string {
	return msg.AllMetadata()[calls.MetaCallID]
}

func (g *Gateway) reconcile(ctx context.Context, ev event, p calls.Patch) (calls.Result, bool) {
	res, err := g.reconciler.Apply(ctx, calls.Update{
		OrganizationID: ev.org,
		CorrelationID:  correlationID(ev.msg),
		Patch:          p,
	})
	logReconcileError(logger.From(ctx), err)
	return res, err == nil
}

func logReconcileError(log *slog.Logger, err error) {
	switch {
	case err == nil:
	case errors.Is(err, calls.ErrNoCallKey):
		log.Debug("event does not identify a call")
	case errors.Is(err, calls.ErrProviderCallIDMismatch), errors.Is(err, calls.ErrOrganizationMismatch):
		log.Warn("event not relevant to stored call; ignored", "err", err)
	default:
		log.Error("call reconciliation failed", "err", err)
	}
}

func (g *Gateway) onStatusUpdate(ctx context.Context, ev event) any {
	p := g.identity(ev)
	raw := ev.msg.Status
	if raw == "" && ev.msg.Call != nil {
		raw = ev.msg.Call.Status
	}
	if st, ok := calls.MapProviderStatus(raw); ok {
		p.Status = st
	} else if raw != "" {
		logger.From(ctx).Warn("unknown provider status", "status", raw)
	}
	if ev.msg.EndedReason != "" {
		p.Outcome = calls.DeriveOutcome(nil, ev.msg.EndedReason)
	}
	g.reconcile(ctx, ev, p)
	return ack
}

func (g *Gateway) onSpeechUpdate(ctx context.Context, ev event) any {
	p := g.identity(ev)
	p.Status = calls.StatusInProgress
	g.reconcile(ctx, ev, p)
	return ack
}

func (g *Gateway) onTranscript(ctx context.Context, ev event) any {
	_, err := g.transcripts.Append(ctx, transcripts.Fragment{
		OrganizationID: ev.org,
		CorrelationID:  correlationID(ev.msg),
		ProviderCallID: ev.msg.ProviderCallID(),
		Role:           ev.msg.Role,
		Text:           ev.msg.Transcript,
		Partial:        ev.msg.TranscriptType == "partial",
		Timestamp:      ev.msg.Timestamp,
	})
	if errors.Is(err, transcripts.ErrEmptyFragment) {
		return ack
	}
	logReconcileError(logger.From(ctx), err)
	return ack
}

func (g *Gateway) onEndOfCallReport(ctx context.Context, ev event) any {
	m := ev.msg
	r := transcripts.Report{
		OrganizationID:  ev.org,
		CorrelationID:   correlationID(m),
		ProviderCallID:  m.ProviderCallID(),
		Transcript:      m.Transcript,
		Summary:         m.Summary,
		Analysis:        m.Analysis,
		RecordingURL:    m.RecordingURL,
		DurationSeconds: m.DurationSeconds,
		Cost:            m.Cost,
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		Outcome:         calls.DeriveOutcome(m.SuccessEvaluation(), m.EndedReason),
	}
	if m.Artifact != nil {
		if r.Transcript == "" {
			r.Transcript = m.Artifact.Transcript
		}
		if r.RecordingURL == "" {
			r.RecordingURL = m.Artifact.RecordingURL
		}
	}
	if r.Summary == "" {
		r.Summary = m.AnalysisSummary()
	}

	// Identity first so inbound calls seen only at report time still get their
	// agent and contact; the report itself is one final write.
	if _, ok := g.reconcile(ctx, ev, g.identity(ev)); !ok {
		return ack
	}
	_, err := g.transcripts.Commit(ctx, r)
	logReconcileError(logger.From(ctx), err)
	return ack
}

func (g *Gateway) onToolCalls(ctx context.Context, ev event) any {
	reqs := toolRequests(ev.msg)
	cc := toolcalls.CallContext{
		OrganizationID: ev.org,
		ProviderCallID: ev.msg.ProviderCallID(),
		CustomerPhone:  utils.NormalizeE164(ev.msg.CustomerNumber(), g.region),
	}
	if res, ok := g.reconcile(ctx, ev, g.identity(ev)); ok {
		cc.CallID = res.Call.ID
		if cc.CustomerPhone == "" {
			cc.CustomerPhone = res.Call.ContactPhone
		}
	}
	return ToolResults{Results: g.tools.Dispatch(ctx, cc, reqs)}
}

func (g *Gateway) onAssistantRequest(ctx context.Context, ev event) any {
	g.reconcile(ctx, ev, g.identity(ev))

	a, ok, err := g.resolver.Assignment(ctx, ev.msg.DialedNumber())
	if err != nil {
		logger.From(ctx).Error("phone assignment lookup failed", "err", err)
		return ack
	}
	if !ok || a.AgentID == "" || a.OrganizationID != ev.org {
		return ack
	}
	return AssistantResponse{AssistantID: a.AgentID}
}

func toolRequests(msg *Message) []toolcalls.Request {
	list := msg.Requests()
	out := make([]toolcalls.Request, len(list))
	for i, tc := range list {
		out[i] = toolcalls.Request{ID: tc.ID, Name: tc.FunctionName(), Arguments: tc.FunctionArguments()}
	}
	return out
}
