package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quailyquaily/deskbot/assistant"
	"github.com/quailyquaily/deskbot/internal/ratelimit"
	"github.com/quailyquaily/deskbot/internal/rundriver"
	"github.com/quailyquaily/deskbot/internal/threadmap"
	"github.com/quailyquaily/deskbot/internal/worker"
)

const (
	DefaultReplyLimit     = 1999
	DefaultRatePenalty    = 20 * time.Second
	DefaultMaxConcurrency = 3
	DefaultQueueSize      = 16
)

// User-visible notices, one per non-success outcome.
const (
	NoticeRateLimited = "I'm cooling down right now, please try again in a moment."
	NoticeFailed      = "Sorry, I couldn't get an answer for that. Please try again."
	NoticeAbandoned   = "That request was abandoned by the backend. Please send it again."
	NoticeTimedOut    = "That took too long to answer. Please try again."
)

// Inbound is one admitted platform message.
type Inbound struct {
	ConversationID string
	AuthorID       string
	Text           string
}

// Backend is the assistant API surface the dispatcher writes to. Polling goes
// through the run driver.
type Backend interface {
	AddMessage(ctx context.Context, threadID, role, content string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (assistant.Run, error)
}

// Driver drives one run to its outcome.
type Driver interface {
	Drive(ctx context.Context, threadID, runID string) (rundriver.Outcome, error)
}

// Sender delivers replies back to the originating conversation.
type Sender interface {
	SendReply(ctx context.Context, conversationID, text string) error
	// StartTyping shows a typing indicator until the returned stop func runs.
	StartTyping(ctx context.Context, conversationID string) (stop func())
}

// InteractionRecord is one request/response pair for the audit trail.
type InteractionRecord struct {
	ID             string
	ConversationID string
	UserID         string
	RequestText    string
	ResponseText   string
	CreatedAt      time.Time
}

// Recorder appends interaction records. Append-only, best effort: the
// dispatcher logs failures and moves on.
type Recorder interface {
	RecordInteraction(ctx context.Context, rec InteractionRecord) error
}

type Options struct {
	Backend     Backend
	Driver      Driver
	Threads     *threadmap.Registry
	Governor    *ratelimit.Governor
	Sender      Sender
	Recorder    Recorder // nil disables persistence
	Logger      *slog.Logger
	AssistantID string

	ReplyLimit     int
	RatePenalty    time.Duration
	MaxConcurrency int
	QueueSize      int
	Now            func() time.Time
}

type job struct {
	conversationKey string
	correlationID   string
	msg             Inbound
}

// Dispatcher ties the admission gate, thread registry and run driver together.
// Messages for the same conversation run strictly in order through one worker
// queue; different conversations only contend for the shared semaphore.
type Dispatcher struct {
	opts Options
	now  func() time.Time

	ctx context.Context
	sem chan struct{}

	mu     sync.Mutex
	queues map[string]*worker.Queue[job]
}

func New(ctx context.Context, opts Options) (*Dispatcher, error) {
	if opts.Backend == nil || opts.Driver == nil || opts.Threads == nil || opts.Governor == nil || opts.Sender == nil {
		return nil, fmt.Errorf("dispatch: backend, driver, threads, governor and sender are required")
	}
	if opts.AssistantID == "" {
		return nil, fmt.Errorf("dispatch: assistant id is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReplyLimit <= 0 {
		opts.ReplyLimit = DefaultReplyLimit
	}
	if opts.RatePenalty <= 0 {
		opts.RatePenalty = DefaultRatePenalty
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Dispatcher{
		opts:   opts,
		now:    now,
		ctx:    ctx,
		sem:    make(chan struct{}, opts.MaxConcurrency),
		queues: make(map[string]*worker.Queue[job]),
	}, nil
}

// Enqueue routes msg onto its conversation's queue. It blocks only when that
// queue's buffer is full.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Inbound) error {
	key, err := ConversationKey(msg.ConversationID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	q, ok := d.queues[key]
	if !ok {
		q = worker.StartQueue(d.ctx, d.opts.QueueSize, d.sem, d.handle)
		d.queues[key] = q
	}
	d.mu.Unlock()

	j := job{
		conversationKey: key,
		correlationID:   uuid.NewString(),
		msg:             msg,
	}
	d.opts.Logger.Info("dispatch_enqueued",
		"conversation_key", key,
		"correlation_id", j.correlationID,
		"author_id", msg.AuthorID,
		"text_len", len(msg.Text),
		"backlog", q.Backlog(),
	)
	return q.Enqueue(ctx, d.ctx, j)
}

func (d *Dispatcher) handle(ctx context.Context, j job) {
	logger := d.opts.Logger.With("conversation_key", j.conversationKey, "correlation_id", j.correlationID)

	now := d.now()
	if !d.opts.Governor.Admit(now) {
		logger.Info("dispatch_rate_denied", "retry_after", d.opts.Governor.RetryAfter(now).String())
		d.notify(ctx, j, NoticeRateLimited)
		return
	}

	stopTyping := d.opts.Sender.StartTyping(ctx, j.msg.ConversationID)
	defer stopTyping()

	threadID, err := d.opts.Threads.ResolveOrCreate(ctx, j.conversationKey)
	if err != nil {
		d.fail(ctx, logger, j, "resolve_thread", err)
		return
	}
	if err := d.opts.Backend.AddMessage(ctx, threadID, assistant.RoleUser, j.msg.Text); err != nil {
		d.fail(ctx, logger, j, "append_message", err)
		return
	}
	run, err := d.opts.Backend.CreateRun(ctx, threadID, d.opts.AssistantID)
	if err != nil {
		d.fail(ctx, logger, j, "create_run", err)
		return
	}

	outcome, err := d.opts.Driver.Drive(ctx, threadID, run.ID)
	if err != nil {
		d.fail(ctx, logger, j, "drive_run", err)
		return
	}

	switch outcome.State {
	case rundriver.StateCompleted:
		reply := Truncate(outcome.ReplyText, d.opts.ReplyLimit)
		if err := d.opts.Sender.SendReply(ctx, j.msg.ConversationID, reply); err != nil {
			logger.Warn("dispatch_send_error", "run_id", run.ID, "error", err.Error())
			return
		}
		d.record(ctx, logger, j, reply)
		logger.Info("dispatch_completed", "run_id", run.ID, "thread_id", threadID, "reply_len", len(reply))
	case rundriver.StateFailed:
		if outcome.ErrorCode == assistant.ErrCodeRateLimited {
			d.opts.Governor.Penalize(d.now(), d.opts.RatePenalty)
			logger.Warn("dispatch_rate_penalized", "run_id", run.ID, "penalty", d.opts.RatePenalty.String())
		}
		logger.Warn("dispatch_run_failed", "run_id", run.ID, "error_code", outcome.ErrorCode)
		d.notify(ctx, j, NoticeFailed)
	case rundriver.StateCancelled, rundriver.StateExpired:
		logger.Warn("dispatch_run_abandoned", "run_id", run.ID, "state", string(outcome.State))
		d.notify(ctx, j, NoticeAbandoned)
	case rundriver.StateTimedOut:
		logger.Warn("dispatch_run_timeout", "run_id", run.ID)
		d.notify(ctx, j, NoticeTimedOut)
	}
}

func (d *Dispatcher) fail(ctx context.Context, logger *slog.Logger, j job, stage string, err error) {
	if ctx.Err() != nil {
		return
	}
	logger.Warn("dispatch_error", "stage", stage, "error", err.Error())
	d.notify(ctx, j, NoticeFailed)
}

func (d *Dispatcher) notify(ctx context.Context, j job, text string) {
	if err := d.opts.Sender.SendReply(ctx, j.msg.ConversationID, text); err != nil {
		d.opts.Logger.Warn("dispatch_notice_error", "conversation_key", j.conversationKey, "error", err.Error())
	}
}

func (d *Dispatcher) record(ctx context.Context, logger *slog.Logger, j job, reply string) {
	if d.opts.Recorder == nil {
		return
	}
	rec := InteractionRecord{
		ID:             uuid.NewString(),
		ConversationID: j.msg.ConversationID,
		UserID:         j.msg.AuthorID,
		RequestText:    j.msg.Text,
		ResponseText:   reply,
		CreatedAt:      d.now().UTC(),
	}
	if err := d.opts.Recorder.RecordInteraction(ctx, rec); err != nil {
		logger.Warn("dispatch_record_error", "error", err.Error())
	}
}
