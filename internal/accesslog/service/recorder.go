package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billingportal/internal/accesslog/domain"
	"github.com/smallbiznis/billingportal/internal/clock"
	obscontext "github.com/smallbiznis/billingportal/internal/observability/context"
	"github.com/smallbiznis/billingportal/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dropReasonQueueFull = "queue_full"
	dropReasonStopped   = "stopped"
	dropReasonInvalid   = "invalid"
	dropReasonWrite     = "write_failed"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Config  Config                 `optional:"true"`
	Clock   clock.Clock            `optional:"true"`
	Metrics *metrics.Metrics       `optional:"true"`
	Portal  *metrics.PortalMetrics `optional:"true"`
}

// Recorder buffers access events and writes them from background workers.
// A full queue drops the event; write failures are logged and counted,
// never retried.
type Recorder struct {
	writer  *Writer
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Metrics
	portal  *metrics.PortalMetrics

	mu      sync.RWMutex
	queue   chan domain.Event
	stopped bool
	wg      sync.WaitGroup
	pending atomic.Int64
}

func NewRecorder(p Params) *Recorder {
	cfg := p.Config.withDefaults()
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{
		writer:  NewWriter(p.DB, p.Repo, clk),
		log:     p.Log.Named("accesslog.recorder"),
		cfg:     cfg,
		clock:   clk,
		metrics: p.Metrics,
		portal:  p.Portal,
		queue:   make(chan domain.Event, cfg.QueueSize),
	}
}

// Record enqueues the event and returns immediately.
func (r *Recorder) Record(ctx context.Context, userID snowflake.ID, documentID string, accessType domain.AccessType) {
	event := domain.Event{
		UserID:     userID,
		DocumentID: strings.TrimSpace(documentID),
		AccessType: accessType,
		Metadata:   metadataFromContext(ctx),
		OccurredAt: r.clock.Now(),
	}
	if err := validateEvent(event); err != nil {
		r.drop(ctx, event, dropReasonInvalid, err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		r.drop(ctx, event, dropReasonStopped, nil)
		return
	}

	r.pending.Add(1)
	select {
	case r.queue <- event:
		r.portal.SetQueueDepth(len(r.queue))
	default:
		r.pending.Add(-1)
		r.drop(ctx, event, dropReasonQueueFull, nil)
	}
}

// Start launches the workers. Calling it twice starts another set.
func (r *Recorder) Start() {
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.run()
	}
}

// Stop rejects new events and drains the queue until ctx is done.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.log.Warn("access log queue not drained before shutdown",
			zap.Int64("pending", r.pending.Load()),
		)
		return ctx.Err()
	}
}

// Flush waits until every accepted event has been written or dropped.
func (r *Recorder) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for r.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for event := range r.queue {
		r.portal.SetQueueDepth(len(r.queue))
		r.write(event)
		r.pending.Add(-1)
	}
}

func (r *Recorder) write(event domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	entry, err := r.writer.Write(ctx, event)
	if err != nil {
		r.portal.IncAccessLogWrite("failed")
		r.drop(ctx, event, dropReasonWrite, err)
		return
	}
	r.portal.IncAccessLogWrite("ok")
	r.log.Debug("access event recorded",
		zap.String("access_log_id", entry.ID),
		zap.String("document_id", entry.DocumentID),
		zap.String("access_type", string(entry.AccessType)),
	)
}

func (r *Recorder) drop(ctx context.Context, event domain.Event, reason string, err error) {
	if reason != dropReasonWrite {
		r.portal.IncAccessLogWrite("dropped")
	}
	r.metrics.RecordAccessLogDropped(ctx, reason)

	fields := []zap.Field{
		zap.String("reason", reason),
		zap.String("user_id", event.UserID.String()),
		zap.String("document_id", event.DocumentID),
		zap.String("access_type", string(event.AccessType)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		if errors.Is(err, domain.ErrLogWriteFailed) {
			r.log.Warn("access log write failed", fields...)
			return
		}
	}
	r.log.Warn("access event dropped", fields...)
}

func metadataFromContext(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	metadata := map[string]any{}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}
	if ip := obscontext.IPAddressFromContext(ctx); ip != "" {
		metadata["ip_address"] = ip
	}
	if userAgent := obscontext.UserAgentFromContext(ctx); userAgent != "" {
		metadata["user_agent"] = userAgent
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}
