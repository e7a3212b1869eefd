package db

import (
	"github.com/pkg/errors"
	"github.com/staffhive/teamchat/models"
	"gorm.io/gorm"
)

// ChatRepository owns all reads and writes for conversations, participants
// and messages. Multi-row writes run inside a transaction so a conversation
// never persists without its participants, and a message never persists
// without the matching last-activity bump.
type ChatRepository interface {
	CreateConversation(conv *models.Conversation, participants []models.Participant) error
	FindConversationByID(id uint) (*models.Conversation, error)
	FindDirectByPairKey(pairKey string) (*models.Conversation, error)
	ListConversationsForIdentity(identity models.Identity) ([]models.Conversation, error)
	UpdateConversationName(id uint, name string) error
	DeleteConversation(id uint) error
	ListParticipants(conversationID uint) ([]models.Participant, error)
	FindParticipant(conversationID uint, identity models.Identity) (*models.Participant, error)
	AddParticipants(participants []models.Participant) error
	RemoveParticipant(participantID uint) error
	UpdateParticipantRole(participantID uint, role string) error
	PromoteAndRemove(promoteID, removeID uint) error
	CreateMessage(msg *models.Message) error
	ListMessages(conversationID uint) ([]models.Message, error)
}

type chatRepo struct {
	DB *gorm.DB
}

func NewChatRepo(db *GormDB) ChatRepository {
	return &chatRepo{db.DB}
}

func (r *chatRepo) CreateConversation(conv *models.Conversation, participants []models.Participant) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for i := range participants {
			participants[i].ConversationID = conv.ID
		}
		if err := tx.Create(&participants).Error; err != nil {
			return errors.Wrap(err, "create participants")
		}
		conv.Participants = participants
		return nil
	})
}

func (r *chatRepo) FindConversationByID(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.DB.Preload("Participants").First(&conv, id).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepo) FindDirectByPairKey(pairKey string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.DB.Preload("Participants").
		Where("type = ? AND pair_key = ?", models.ConversationDirect, pairKey).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepo) ListConversationsForIdentity(identity models.Identity) ([]models.Conversation, error) {
	column := "participants.employee_id"
	if identity.Kind == models.IdentityEmployer {
		column = "participants.employer_id"
	}

	var convs []models.Conversation
	err := r.DB.
		Joins("JOIN participants ON participants.conversation_id = conversations.id").
		Where(column+" = ?", identity.ID).
		Order("conversations.last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	return convs, nil
}

func (r *chatRepo) UpdateConversationName(id uint, name string) error {
	return r.DB.Model(&models.Conversation{}).Where("id = ?", id).Update("name", name).Error
}

// DeleteConversation removes the conversation and everything it owns. The
// explicit child deletes keep the cascade honest even on databases migrated
// without the FK constraints.
func (r *chatRepo) DeleteConversation(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "delete messages")
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return errors.Wrap(err, "delete participants")
		}
		return tx.Delete(&models.Conversation{}, id).Error
	})
}

func (r *chatRepo) ListParticipants(conversationID uint) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.DB.Where("conversation_id = ?", conversationID).
		Order("joined_at ASC, id ASC").
		Find(&participants).Error
	if err != nil {
		return nil, errors.Wrap(err, "list participants")
	}
	return participants, nil
}

func (r *chatRepo) FindParticipant(conversationID uint, identity models.Identity) (*models.Participant, error) {
	column := "employee_id"
	if identity.Kind == models.IdentityEmployer {
		column = "employer_id"
	}

	var p models.Participant
	err := r.DB.Where("conversation_id = ? AND "+column+" = ?", conversationID, identity.ID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *chatRepo) AddParticipants(participants []models.Participant) error {
	return r.DB.Create(&participants).Error
}

func (r *chatRepo) RemoveParticipant(participantID uint) error {
	return r.DB.Delete(&models.Participant{}, participantID).Error
}

func (r *chatRepo) UpdateParticipantRole(participantID uint, role string) error {
	return r.DB.Model(&models.Participant{}).Where("id = ?", participantID).
		Update("role", role).Error
}

// PromoteAndRemove applies admin succession atomically: the successor is
// promoted and the leaver removed in one transaction, so the group is never
// observable without an admin.
func (r *chatRepo) PromoteAndRemove(promoteID, removeID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Participant{}).Where("id = ?", promoteID).
			Update("role", models.RoleAdmin).Error; err != nil {
			return errors.Wrap(err, "promote successor")
		}
		return tx.Delete(&models.Participant{}, removeID).Error
	})
}

func (r *chatRepo) CreateMessage(msg *models.Message) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return errors.Wrap(err, "create message")
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

func (r *chatRepo) ListMessages(conversationID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.DB.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return msgs, nil
}
