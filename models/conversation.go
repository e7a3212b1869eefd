package models

import "time"

const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

type Conversation struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Type          string        `gorm:"type:varchar(20);not null;index" json:"type"` // "direct" or "group"
	Name          *string       `gorm:"type:varchar(100)" json:"name"`               // group name; nil for direct
	PairKey       *string       `gorm:"type:varchar(64);uniqueIndex" json:"-"`       // canonical identity pair; direct only
	CreatedAt     time.Time     `json:"created_at"`
	LastMessageAt time.Time     `gorm:"index" json:"last_message_at"`
	Participants  []Participant `gorm:"constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	Messages      []Message     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationGroup
}
