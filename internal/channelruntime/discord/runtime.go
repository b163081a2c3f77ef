package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/quailyquaily/deskbot/assistant"
	"github.com/quailyquaily/deskbot/internal/dispatch"
	"github.com/quailyquaily/deskbot/internal/ratelimit"
	"github.com/quailyquaily/deskbot/internal/rundriver"
	"github.com/quailyquaily/deskbot/internal/session"
	"github.com/quailyquaily/deskbot/internal/threadmap"
	"github.com/quailyquaily/deskbot/internal/ticket"
)

// Recorder is the optional persistence sink for the runtime. *db.Store
// satisfies it; a nil Recorder disables recording entirely.
type Recorder interface {
	dispatch.Recorder
	ticket.Recorder
}

type Dependencies struct {
	Logger   *slog.Logger
	Backend  *assistant.Client
	Recorder Recorder
}

type runtime struct {
	ctx     context.Context
	session *discordgo.Session
	logger  *slog.Logger
	opts    RunOptions

	sessions   *session.Manager
	tickets    *ticket.Manager
	dispatcher *dispatch.Dispatcher

	mu    sync.Mutex
	botID string
}

// Run connects to the Discord gateway and serves until ctx is canceled.
func Run(ctx context.Context, d Dependencies, opts RunOptions) error {
	opts = normalizeRunOptions(opts)
	if opts.BotToken == "" {
		return fmt.Errorf("missing discord bot token (set discord.bot_token or DESKBOT_DISCORD_BOT_TOKEN)")
	}
	if opts.GuildID == "" {
		return fmt.Errorf("missing discord guild id (set discord.guild_id)")
	}
	if opts.CommandChannelID == "" {
		return fmt.Errorf("missing discord command channel id (set discord.command_channel_id)")
	}
	if opts.AssistantID == "" {
		return fmt.Errorf("missing assistant id (set openai.assistant_id)")
	}
	if d.Backend == nil {
		return fmt.Errorf("assistant backend is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dg, err := discordgo.New("Bot " + opts.BotToken)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	rt := &runtime{
		ctx:      ctx,
		session:  dg,
		logger:   logger,
		opts:     opts,
		sessions: session.NewManager(opts.SessionWindow),
	}

	var ticketRecorder ticket.Recorder
	var interactionRecorder dispatch.Recorder
	if d.Recorder != nil {
		ticketRecorder = d.Recorder
		interactionRecorder = d.Recorder
	}
	rt.tickets = ticket.NewManager(rt, ticketRecorder, logger, opts.TicketLifetime)

	threads := threadmap.NewRegistry(opts.ThreadCacheCap, func(ctx context.Context) (string, error) {
		th, err := d.Backend.CreateThread(ctx)
		if err != nil {
			return "", err
		}
		return th.ID, nil
	})
	driver := rundriver.New(d.Backend, logger, opts.PollInterval, opts.RunDeadline)
	rt.dispatcher, err = dispatch.New(ctx, dispatch.Options{
		Backend:        d.Backend,
		Driver:         driver,
		Threads:        threads,
		Governor:       ratelimit.NewGovernor(),
		Sender:         rt,
		Recorder:       interactionRecorder,
		Logger:         logger,
		AssistantID:    opts.AssistantID,
		ReplyLimit:     opts.ReplyLimit,
		RatePenalty:    opts.RatePenalty,
		MaxConcurrency: opts.MaxConcurrency,
		QueueSize:      opts.QueueSize,
	})
	if err != nil {
		return err
	}

	dg.AddHandler(rt.onReady)
	dg.AddHandler(rt.onMessageCreate)
	dg.AddHandler(rt.onInteractionCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	defer func() { _ = dg.Close() }()

	logger.Info("discord_start",
		"guild_id", opts.GuildID,
		"command_channel_id", opts.CommandChannelID,
		"session_window", opts.SessionWindow.String(),
		"ticket_lifetime", opts.TicketLifetime.String(),
		"poll_interval", opts.PollInterval.String(),
		"reply_limit", opts.ReplyLimit,
	)

	<-ctx.Done()
	logger.Info("discord_stop", "reason", "context_canceled")
	return nil
}

func (rt *runtime) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	rt.mu.Lock()
	rt.botID = r.User.ID
	rt.mu.Unlock()
	rt.logger.Info("discord_ready", "bot_username", r.User.Username, "bot_id", r.User.ID)
}

func (rt *runtime) botUserID() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.botID
}

func (rt *runtime) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	msg := inboundMessage{
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Text:      m.Content,
		IsBot:     m.Author.Bot || m.Author.ID == rt.botUserID(),
		IsDM:      m.GuildID == "",
	}
	now := time.Now()

	switch classifyInbound(msg, rt.opts.CommandChannelID, rt.tickets.Tracked(msg.ChannelID)) {
	case routeStartSession:
		expiry := rt.sessions.Start(msg.AuthorID, now)
		rt.logger.Info("session_started", "user_id", msg.AuthorID, "expires_at", expiry.UTC().Format(time.RFC3339))
		rt.reply(msg.ChannelID, fmt.Sprintf("<@%s> you can DM me for the next %s.", msg.AuthorID, rt.sessions.Window()))
	case routeOpenTicket:
		channelID, err := rt.tickets.Open(rt.ctx, msg.AuthorID)
		if err != nil {
			rt.logger.Warn("ticket_open_error", "user_id", msg.AuthorID, "error", err.Error())
			rt.reply(msg.ChannelID, "Sorry, I couldn't open a ticket channel right now.")
			return
		}
		rt.reply(msg.ChannelID, fmt.Sprintf("<@%s> your private channel is ready: <#%s>", msg.AuthorID, channelID))
	case routeDM:
		if !rt.sessions.Admitted(msg.AuthorID, now) {
			rt.reply(msg.ChannelID, fmt.Sprintf("Your session has expired. Send %s in the command channel to open a new %s window.", cmdStartSession, rt.sessions.Window()))
			return
		}
		rt.enqueue(msg)
	case routeTicket:
		rt.enqueue(msg)
	}
}

func (rt *runtime) enqueue(msg inboundMessage) {
	err := rt.dispatcher.Enqueue(rt.ctx, dispatch.Inbound{
		ConversationID: msg.ChannelID,
		AuthorID:       msg.AuthorID,
		Text:           strings.TrimSpace(msg.Text),
	})
	if err != nil {
		rt.logger.Warn("dispatch_enqueue_error", "channel_id", msg.ChannelID, "error", err.Error())
	}
}

func (rt *runtime) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	if i.MessageComponentData().CustomID != closeTicketCustomID {
		return
	}
	// Ack first: the channel the interaction lives in is about to disappear.
	ack := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	if err := rt.session.InteractionRespond(i.Interaction, ack); err != nil {
		rt.logger.Debug("interaction_ack_error", "channel_id", i.ChannelID, "error", err.Error())
	}
	rt.tickets.CloseByUser(rt.ctx, i.ChannelID, interactionActorID(i))
}

func interactionActorID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (rt *runtime) reply(channelID, text string) {
	if _, err := rt.session.ChannelMessageSend(channelID, text, discordgo.WithContext(rt.ctx)); err != nil {
		rt.logger.Warn("discord_send_error", "channel_id", channelID, "error", err.Error())
	}
}
