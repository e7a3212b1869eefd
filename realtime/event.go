package realtime

import "github.com/staffhive/teamchat/models"

const (
	EventTyping  = "typing"
	EventMessage = "message"
)

// Event is the wire format for the live channel, both directions.
type Event struct {
	Type        string           `json:"type"`
	Identity    *models.Identity `json:"identity,omitempty"`     // typing: who is typing
	DisplayName string           `json:"display_name,omitempty"` // typing: label to show
	Message     *models.Message  `json:"message,omitempty"`      // message: the persisted row
}
