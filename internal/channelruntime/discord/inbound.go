package discord

import "strings"

// Chat commands accepted in the command channel.
const (
	cmdStartSession = "!start"
	cmdOpenTicket   = "!ticket"
)

type route int

const (
	routeIgnore route = iota
	routeStartSession
	routeOpenTicket
	routeDM
	routeTicket
)

type inboundMessage struct {
	ChannelID string
	AuthorID  string
	Text      string
	IsBot     bool
	IsDM      bool
}

// classifyInbound decides what a gateway message means for the bot. Bot and
// empty messages are dropped; the command channel only reacts to known
// commands; everything posted in a live ticket channel or a DM is a prompt.
func classifyInbound(msg inboundMessage, commandChannelID string, ticketTracked bool) route {
	if msg.IsBot {
		return routeIgnore
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return routeIgnore
	}
	if !msg.IsDM && msg.ChannelID == commandChannelID {
		switch strings.ToLower(strings.Fields(text)[0]) {
		case cmdStartSession:
			return routeStartSession
		case cmdOpenTicket:
			return routeOpenTicket
		default:
			return routeIgnore
		}
	}
	if msg.IsDM {
		return routeDM
	}
	if ticketTracked {
		return routeTicket
	}
	return routeIgnore
}
