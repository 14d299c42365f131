package toolcalls

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"voice-campaigns/pkg/logger"
)

// ToolName is the closed set of tools an agent may call.
type ToolName string

const (
	ToolLookupContact       ToolName = "lookup_contact"
	ToolScheduleAppointment ToolName = "schedule_appointment"
	ToolUpdateContactInfo   ToolName = "update_contact_info"
	ToolTransferToHuman     ToolName = "transfer_to_human"
	ToolEndCall             ToolName = "end_call"
)

// AllTools lists every ToolName; a Registry is complete when it covers all of them.
var AllTools = []ToolName{
	ToolLookupContact,
	ToolScheduleAppointment,
	ToolUpdateContactInfo,
	ToolTransferToHuman,
	ToolEndCall,
}

// Request is one tool invocation requested mid-call.
type Request struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Result is returned to the provider. Result holds a JSON document as a string.
type Result struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

// CallContext identifies the live call a batch belongs to.
type CallContext struct {
	OrganizationID string
	CallID         string
	ProviderCallID string
	// CustomerPhone is the other party, already E.164 when known.
	CustomerPhone string
}

// HandlerFunc executes one tool. The returned value is JSON encoded into Result.
type HandlerFunc func(ctx context.Context, cc CallContext, args json.RawMessage) (any, error)

// Registry maps each tool to its handler.
type Registry map[ToolName]HandlerFunc

const (
	defaultTimeout     = 3 * time.Second
	defaultConcurrency = 8
)

// Dispatcher runs a batch of tool calls concurrently, each under its own deadline.
// It always returns exactly one result per request, in request order.
type Dispatcher struct {
	registry    Registry
	timeout     time.Duration
	concurrency int
}

func NewDispatcher(registry Registry, timeout time.Duration, concurrency int) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Dispatcher{registry: registry, timeout: timeout, concurrency: concurrency}
}

func (d *Dispatcher) Dispatch(ctx context.Context, cc CallContext, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = d.run(ctx, cc, req)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Reject answers every request with the same failure, keeping the batch complete.
func Reject(reqs []Request, reason string) []Result {
	out := make([]Result, len(reqs))
	for i, req := range reqs {
		out[i] = failure(req.ID, reason)
	}
	return out
}

type handlerOutcome struct {
	value any
	err   error
}

func (d *Dispatcher) run(ctx context.Context, cc CallContext, req Request) Result {
	log := logger.From(ctx).With("tool", req.Name, "tool_call_id", req.ID)

	h, ok := d.registry[ToolName(req.Name)]
	if !ok || h == nil {
		log.Warn("tool not implemented")
		return failure(req.ID, fmt.Sprintf("tool %q is not implemented", req.Name))
	}

	hctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- handlerOutcome{err: fmt.Errorf("handler panic: %v", p)}
			}
		}()
		v, err := h(hctx, cc, req.Arguments)
		done <- handlerOutcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			log.Warn("tool failed", "err", o.err, "duration_ms", time.Since(start).Milliseconds())
			return failure(req.ID, o.err.Error())
		}
		log.Info("tool completed", "duration_ms", time.Since(start).Milliseconds())
		return success(req.ID, o.value)
	case <-hctx.Done():
		log.Warn("tool timed out", "timeout", d.timeout.String())
		return failure(req.ID, "tool timed out")
	}
}

func success(id string, v any) Result {
	b, err := json.Marshal(v)
	if err != nil {
		return failure(id, "result could not be encoded")
	}
	return Result{ToolCallID: id, Result: string(b)}
}

func failure(id, msg string) Result {
	b, _ := json.Marshal(map[string]any{"success": false, "error": msg})
	return Result{ToolCallID: id, Result: string(b)}
}
