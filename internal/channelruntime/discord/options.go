package discord

import (
	"strings"
	"time"

	"github.com/quailyquaily/deskbot/internal/dispatch"
	"github.com/quailyquaily/deskbot/internal/rundriver"
	"github.com/quailyquaily/deskbot/internal/session"
	"github.com/quailyquaily/deskbot/internal/threadmap"
	"github.com/quailyquaily/deskbot/internal/ticket"
)

type RunOptions struct {
	BotToken         string
	GuildID          string
	CommandChannelID string
	TicketCategoryID string
	AssistantID      string

	PollInterval   time.Duration
	RunDeadline    time.Duration
	SessionWindow  time.Duration
	TicketLifetime time.Duration
	RatePenalty    time.Duration
	ReplyLimit     int
	MaxConcurrency int
	QueueSize      int
	ThreadCacheCap int
}

func normalizeRunOptions(opts RunOptions) RunOptions {
	opts.BotToken = strings.TrimSpace(opts.BotToken)
	opts.GuildID = strings.TrimSpace(opts.GuildID)
	opts.CommandChannelID = strings.TrimSpace(opts.CommandChannelID)
	opts.TicketCategoryID = strings.TrimSpace(opts.TicketCategoryID)
	opts.AssistantID = strings.TrimSpace(opts.AssistantID)

	if opts.PollInterval <= 0 {
		opts.PollInterval = rundriver.DefaultPollInterval
	}
	if opts.RunDeadline <= 0 {
		opts.RunDeadline = rundriver.DefaultDeadline
	}
	if opts.SessionWindow <= 0 {
		opts.SessionWindow = session.DefaultWindow
	}
	if opts.TicketLifetime <= 0 {
		opts.TicketLifetime = ticket.DefaultLifetime
	}
	if opts.RatePenalty <= 0 {
		opts.RatePenalty = dispatch.DefaultRatePenalty
	}
	if opts.ReplyLimit <= 0 {
		opts.ReplyLimit = dispatch.DefaultReplyLimit
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = dispatch.DefaultMaxConcurrency
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = dispatch.DefaultQueueSize
	}
	if opts.ThreadCacheCap <= 0 {
		opts.ThreadCacheCap = threadmap.DefaultCap
	}
	return opts
}
