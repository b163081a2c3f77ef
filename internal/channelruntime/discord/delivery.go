package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const closeTicketCustomID = "close_ticket"

// Discord drops the typing indicator after roughly ten seconds, so it gets
// refreshed a little faster than that while a run is in flight.
const typingRefreshInterval = 8 * time.Second

// SendReply posts text into the conversation channel.
func (rt *runtime) SendReply(ctx context.Context, conversationID, text string) error {
	_, err := rt.session.ChannelMessageSend(conversationID, text, discordgo.WithContext(ctx))
	return err
}

// StartTyping shows the typing indicator and keeps refreshing it until the
// returned stop function is called.
func (rt *runtime) StartTyping(ctx context.Context, conversationID string) func() {
	typingCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			if err := rt.session.ChannelTyping(conversationID, discordgo.WithContext(typingCtx)); err != nil {
				rt.logger.Debug("discord_typing_error", "channel_id", conversationID, "error", err.Error())
			}
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}

// CreateTicketChannel creates a text channel only the owner and the bot can
// see, parented under the configured ticket category.
func (rt *runtime) CreateTicketChannel(ctx context.Context, ownerID string) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			// The @everyone role shares the guild's id.
			ID:   rt.opts.GuildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    ownerID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		},
	}
	ch, err := rt.session.GuildChannelCreateComplex(rt.opts.GuildID, discordgo.GuildChannelCreateData{
		Name:                 ticketChannelName(ownerID),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             rt.opts.TicketCategoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create ticket channel: %w", err)
	}
	return ch.ID, nil
}

// PostGreeting posts the welcome message with the close button.
func (rt *runtime) PostGreeting(ctx context.Context, channelID, ownerID string) error {
	_, err := rt.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> this private channel is yours for the next %s. Ask me anything, and press the button when you're done.", ownerID, rt.opts.TicketLifetime),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Close ticket",
						Style:    discordgo.DangerButton,
						CustomID: closeTicketCustomID,
					},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	return err
}

// DeleteChannel removes the ticket channel from the guild.
func (rt *runtime) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := rt.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

func ticketChannelName(ownerID string) string {
	suffix := ownerID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "ticket-" + suffix
}
