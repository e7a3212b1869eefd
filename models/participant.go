package models

import "time"

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Participant binds one identity to one conversation with a role. Exactly one
// of EmployeeID/EmployerID is set; the Identity accessor is the only way the
// rest of the code reads them back. Message.SenderID references the
// participant row, not the identity, so the same person is distinguishable
// per conversation.
type Participant struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index:ix_participant_conversation" json:"conversation_id"`
	EmployeeID     *uint     `gorm:"index" json:"employee_id,omitempty"`
	EmployerID     *uint     `gorm:"index" json:"employer_id,omitempty"`
	Role           string    `gorm:"type:varchar(20);default:'member'" json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}

func NewParticipant(conversationID uint, identity Identity, role string, joinedAt time.Time) Participant {
	p := Participant{
		ConversationID: conversationID,
		Role:           role,
		JoinedAt:       joinedAt,
	}
	id := identity.ID
	switch identity.Kind {
	case IdentityEmployer:
		p.EmployerID = &id
	default:
		p.EmployeeID = &id
	}
	return p
}

func (p *Participant) Identity() Identity {
	if p.EmployerID != nil {
		return Identity{Kind: IdentityEmployer, ID: *p.EmployerID}
	}
	if p.EmployeeID != nil {
		return Identity{Kind: IdentityEmployee, ID: *p.EmployeeID}
	}
	return Identity{}
}

func (p *Participant) Matches(identity Identity) bool {
	return p.Identity() == identity
}

func (p *Participant) IsAdmin() bool {
	return p.Role == RoleAdmin
}
