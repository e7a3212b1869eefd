package models

import "time"

const (
	AttachmentImage = "image"
	AttachmentAudio = "audio"
)

type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index:ix_message_conversation_created,priority:1" json:"conversation_id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"` // participant id
	Text           *string   `json:"text"`
	AttachmentURL  *string   `json:"attachment_url"`
	AttachmentType *string   `gorm:"type:varchar(20)" json:"attachment_type"` // "image" or "audio"
	CreatedAt      time.Time `gorm:"index:ix_message_conversation_created,priority:2" json:"created_at"`
}

// HasContent reports whether the message carries text or an attachment.
// Every creation path enforces this; an empty message is never persisted.
func (m *Message) HasContent() bool {
	if m.Text != nil && *m.Text != "" {
		return true
	}
	return m.AttachmentURL != nil && *m.AttachmentURL != ""
}
