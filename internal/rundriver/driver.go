package rundriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quailyquaily/deskbot/assistant"
)

const (
	DefaultPollInterval = time.Second
	DefaultDeadline     = 5 * time.Minute
)

type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
	// StateTimedOut is driver-local: the backend never reached a terminal
	// status before the polling deadline.
	StateTimedOut State = "timed_out"
)

// Outcome is the single, immutable result of driving one run.
type Outcome struct {
	State     State
	ReplyText string
	ErrorCode string
}

// Backend is the slice of the assistant API the driver polls.
type Backend interface {
	GetRun(ctx context.Context, threadID, runID string) (assistant.Run, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]assistant.Message, error)
}

// Driver polls a backend run until it reaches a terminal status. Each Drive
// call sleeps between polls without holding any shared lock, so runs for
// different conversations proceed concurrently.
type Driver struct {
	backend  Backend
	logger   *slog.Logger
	interval time.Duration
	deadline time.Duration
}

func New(backend Backend, logger *slog.Logger, interval, deadline time.Duration) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Driver{backend: backend, logger: logger, interval: interval, deadline: deadline}
}

// Drive polls runID on threadID to completion. Transport failures propagate as
// errors; a run that outlives the deadline yields StateTimedOut rather than an
// error. Cancelling ctx aborts the poll with ctx's error.
func (d *Driver) Drive(ctx context.Context, threadID, runID string) (Outcome, error) {
	pollCtx, cancel := context.WithTimeout(ctx, d.deadline)
	defer cancel()

	polls := 0
	for {
		run, err := d.backend.GetRun(pollCtx, threadID, runID)
		if err != nil {
			if timedOut := d.deadlineHit(ctx, pollCtx); timedOut {
				d.logger.Warn("run_poll_deadline", "run_id", runID, "polls", polls)
				return Outcome{State: StateTimedOut}, nil
			}
			return Outcome{}, fmt.Errorf("poll run %s: %w", runID, err)
		}
		polls++

		switch run.Status {
		case assistant.RunStatusCompleted:
			reply, err := d.latestAssistantReply(pollCtx, threadID)
			if err != nil {
				return Outcome{}, fmt.Errorf("fetch reply for run %s: %w", runID, err)
			}
			d.logger.Debug("run_completed", "run_id", runID, "polls", polls, "reply_len", len(reply))
			return Outcome{State: StateCompleted, ReplyText: reply}, nil
		case assistant.RunStatusFailed:
			out := Outcome{State: StateFailed}
			if run.LastError != nil {
				out.ErrorCode = run.LastError.Code
			}
			d.logger.Warn("run_failed", "run_id", runID, "error_code", out.ErrorCode)
			return out, nil
		case assistant.RunStatusCancelled:
			return Outcome{State: StateCancelled}, nil
		case assistant.RunStatusExpired:
			return Outcome{State: StateExpired}, nil
		}

		select {
		case <-pollCtx.Done():
			if d.deadlineHit(ctx, pollCtx) {
				d.logger.Warn("run_poll_deadline", "run_id", runID, "polls", polls)
				return Outcome{State: StateTimedOut}, nil
			}
			return Outcome{}, pollCtx.Err()
		case <-time.After(d.interval):
		}
	}
}

// deadlineHit distinguishes the driver's own deadline from an outer cancel.
func (d *Driver) deadlineHit(ctx, pollCtx context.Context) bool {
	return ctx.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded)
}

func (d *Driver) latestAssistantReply(ctx context.Context, threadID string) (string, error) {
	msgs, err := d.backend.ListMessages(ctx, threadID, 8)
	if err != nil {
		return "", err
	}
	// Messages arrive newest first; the reply is the most recent assistant turn.
	for _, m := range msgs {
		if m.Role == assistant.RoleAssistant {
			return m.PlainText(), nil
		}
	}
	return "", fmt.Errorf("no assistant message in thread %s", threadID)
}
