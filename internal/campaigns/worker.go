package campaigns

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"voice-campaigns/pkg/logger"
)

// WorkerConfig configures the asynq server that runs campaign tasks.
type WorkerConfig struct {
	Queue       string
	Concurrency int
	// InterCallGap delays a dial that found every slot busy.
	InterCallGap time.Duration
}

// Worker consumes start and dial tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	service   *Service
	dialer    *Dialer
	scheduler Scheduler
	gap       time.Duration
	log       *slog.Logger
}

func NewWorker(opt asynq.RedisConnOpt, cfg WorkerConfig, svc *Service, dialer *Dialer, scheduler Scheduler, log *slog.Logger) *Worker {
	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 10
	}
	gap := cfg.InterCallGap
	if gap <= 0 {
		gap = 30 * time.Second
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		service:   svc,
		dialer:    dialer,
		scheduler: scheduler,
		gap:       gap,
		log:       log,
	}
	mux.HandleFunc(TaskStartCampaign, w.handleStart)
	mux.HandleFunc(TaskDialCall, w.handleDial)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("campaign worker stopped", "err", err)
	}
}

func (w *Worker) handleStart(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseStartPayload(task)
	if err != nil {
		return err
	}
	ctx = logger.With(ctx, w.log.With("task", TaskStartCampaign, "campaign_id", payload.CampaignID))
	return w.service.StartScheduled(ctx, payload)
}

func (w *Worker) handleDial(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDialPayload(task)
	if err != nil {
		return err
	}
	ctx = logger.With(ctx, w.log.With("task", TaskDialCall))
	return runDial(ctx, w.dialer, w.scheduler, payload, w.gap)
}

// runDial dials once and re-enqueues the call when no slot was free.
func runDial(ctx context.Context, d *Dialer, scheduler Scheduler, p DialPayload, gap time.Duration) error {
	res, err := d.Dial(ctx, p)
	if err != nil {
		return err
	}
	if res == DialDeferred {
		return scheduler.DeferDial(ctx, p, gap)
	}
	return nil
}
