package models

import "time"

// Interaction is one relayed request/response pair. Audit trail only, never
// read on the reply path.
type Interaction struct {
	ID string `gorm:"primaryKey;type:text"`

	ConversationID string `gorm:"type:text;not null;index"`
	UserID         string `gorm:"type:text;not null;index"`

	RequestText  string `gorm:"type:text;not null"`
	ResponseText string `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null;index"`
}
