package models

import "time"

// TicketEvent records a lifecycle transition of an ephemeral ticket channel.
type TicketEvent struct {
	ID string `gorm:"primaryKey;type:text"`

	// Event is "Created" or "Deleted".
	Event     string `gorm:"type:text;not null;index"`
	ChannelID string `gorm:"type:text;not null;index"`
	ActorID   string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;index"`
}
