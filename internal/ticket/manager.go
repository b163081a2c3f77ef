package ticket

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultLifetime = 10 * time.Minute

// Lifecycle event names persisted by the recorder.
const (
	EventCreated = "Created"
	EventDeleted = "Deleted"
)

// Platform is the slice of the chat platform the manager drives.
type Platform interface {
	CreateTicketChannel(ctx context.Context, ownerID string) (channelID string, err error)
	PostGreeting(ctx context.Context, channelID, ownerID string) error
	DeleteChannel(ctx context.Context, channelID string) error
}

// Recorder persists ticket lifecycle events. Append-only, best effort.
type Recorder interface {
	RecordTicketEvent(ctx context.Context, event, channelID, actorID string) error
}

type entry struct {
	ownerID   string
	createdAt time.Time
	timer     *time.Timer
}

// Manager owns the registry of open ticket channels. A ticket lives at most
// its configured lifetime; it dies earlier when the owner presses the close
// control. Whichever trigger fires first wins: the registry entry and its
// deletion timer are detached in one locked step, so the platform delete and
// the lifecycle record happen exactly once.
type Manager struct {
	platform Platform
	recorder Recorder
	logger   *slog.Logger
	lifetime time.Duration

	mu   sync.Mutex
	open map[string]*entry
}

func NewManager(platform Platform, recorder Recorder, logger *slog.Logger, lifetime time.Duration) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Manager{
		platform: platform,
		recorder: recorder,
		logger:   logger,
		lifetime: lifetime,
		open:     make(map[string]*entry),
	}
}

// Open creates a private channel for ownerID, registers it, arms the deletion
// timer, and posts the greeting. A greeting failure does not undo the ticket.
func (m *Manager) Open(ctx context.Context, ownerID string) (string, error) {
	channelID, err := m.platform.CreateTicketChannel(ctx, ownerID)
	if err != nil {
		return "", err
	}

	e := &entry{ownerID: ownerID, createdAt: time.Now()}
	m.mu.Lock()
	e.timer = time.AfterFunc(m.lifetime, func() { m.CloseByTimer(channelID) })
	m.open[channelID] = e
	m.mu.Unlock()

	if err := m.platform.PostGreeting(ctx, channelID, ownerID); err != nil {
		m.logger.Warn("ticket_greeting_error", "channel_id", channelID, "error", err.Error())
	}
	m.record(ctx, EventCreated, channelID, ownerID)
	m.logger.Info("ticket_opened", "channel_id", channelID, "owner_id", ownerID, "lifetime", m.lifetime.String())
	return channelID, nil
}

// CloseByTimer tears the ticket down after its lifetime elapsed. No-op when
// the owner already closed it.
func (m *Manager) CloseByTimer(channelID string) {
	m.close(context.Background(), channelID, "", "timer")
}

// CloseByUser tears the ticket down on the owner's close control. No-op when
// the timer already fired.
func (m *Manager) CloseByUser(ctx context.Context, channelID, actorID string) {
	m.close(ctx, channelID, actorID, "user")
}

// Tracked reports whether channelID is a live ticket.
func (m *Manager) Tracked(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[channelID]
	return ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

func (m *Manager) close(ctx context.Context, channelID, actorID, cause string) {
	e, ok := m.detach(channelID)
	if !ok {
		return
	}
	if err := m.platform.DeleteChannel(ctx, channelID); err != nil {
		// The entry is already gone; the orphaned platform channel is an
		// accepted leak needing manual cleanup.
		m.logger.Warn("ticket_delete_error", "channel_id", channelID, "cause", cause, "error", err.Error())
	}
	if actorID == "" {
		actorID = e.ownerID
	}
	m.record(ctx, EventDeleted, channelID, actorID)
	m.logger.Info("ticket_closed", "channel_id", channelID, "cause", cause, "age", time.Since(e.createdAt).Round(time.Second).String())
}

// detach removes the registry entry and stops its pending timer in one locked
// step. The caller that gets ok=true owns the deletion.
func (m *Manager) detach(channelID string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.open[channelID]
	if !ok {
		return nil, false
	}
	delete(m.open, channelID)
	if e.timer != nil {
		e.timer.Stop()
	}
	return e, true
}

func (m *Manager) record(ctx context.Context, event, channelID, actorID string) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordTicketEvent(ctx, event, channelID, actorID); err != nil {
		m.logger.Warn("ticket_record_error", "event", event, "channel_id", channelID, "error", err.Error())
	}
}
