package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/staffhive/teamchat/db"
	errs "github.com/staffhive/teamchat/errors"
	"github.com/staffhive/teamchat/models"
	"gorm.io/gorm"
)

// Broadcaster is the live-channel seam. The store publishes through it after
// a write commits and never learns whether delivery worked; a broker-backed
// implementation can replace the in-process hub without touching this
// package.
type Broadcaster interface {
	PublishMessage(conversationID uint, msg *models.Message)
	DropConversation(conversationID uint)
}

// Attachment describes an uploaded file backing a message.
type Attachment struct {
	URL          string `json:"url"`
	Type         string `json:"type"` // "image" or "audio"
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type ChatService interface {
	CreateDirectConversation(a, b models.Identity) (*models.Conversation, error)
	CreateGroupConversation(name string, members []models.Identity) (*models.Conversation, error)
	RenameGroup(conversationID uint, requester models.Identity, newName string) (*models.Conversation, error)
	DeleteConversation(conversationID uint, requester models.Identity) error
	AppendMessage(conversationID uint, sender models.Identity, text string, attachment *Attachment) (*models.Message, error)
	ListMessages(conversationID uint) ([]models.Message, error)
	ListConversations(identity models.Identity) ([]models.Conversation, error)
	ListParticipants(conversationID uint) ([]models.Participant, error)
}

type chatService struct {
	chatRepo    db.ChatRepository
	broadcaster Broadcaster
}

func NewChatService(chatRepo db.ChatRepository, broadcaster Broadcaster) ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		broadcaster: broadcaster,
	}
}

// CreateDirectConversation finds or creates the single direct conversation
// for an unordered identity pair. Lookup is a point query on the canonical
// pair key; when two callers race past the lookup, the unique index rejects
// the second insert and it falls back to the winner's row, so both end up
// with the same conversation id.
func (s *chatService) CreateDirectConversation(a, b models.Identity) (*models.Conversation, error) {
	if a.Zero() || b.Zero() || a == b {
		return nil, errs.New("direct chat needs exactly two distinct identities", 400)
	}

	pairKey := models.DirectPairKey(a, b)
	conv, err := s.chatRepo.FindDirectByPairKey(pairKey)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	conv = &models.Conversation{
		Type:          models.ConversationDirect,
		PairKey:       &pairKey,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	participants := []models.Participant{
		models.NewParticipant(0, a, models.RoleMember, now),
		models.NewParticipant(0, b, models.RoleMember, now),
	}

	err = s.chatRepo.CreateConversation(conv, participants)
	if err == nil {
		return conv, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the creation race; the winner's conversation is the one.
		log.Printf("direct conversation race on %s, reusing existing", pairKey)
		if existing, lookupErr := s.chatRepo.FindDirectByPairKey(pairKey); lookupErr == nil {
			return existing, nil
		}
		return nil, errs.ErrDirectPairRaced
	}
	return nil, err
}

func (s *chatService) CreateGroupConversation(name string, members []models.Identity) (*models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.New("group chat requires a name", 400)
	}

	distinct := make([]models.Identity, 0, len(members))
	seen := make(map[models.Identity]bool)
	for _, m := range members {
		if m.Zero() || seen[m] {
			continue
		}
		seen[m] = true
		distinct = append(distinct, m)
	}
	if len(distinct) < 3 {
		return nil, errs.New("group chat needs 3+ distinct members", 400)
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		Type:          models.ConversationGroup,
		Name:          &name,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	participants := make([]models.Participant, 0, len(distinct))
	for i, m := range distinct {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleAdmin
		}
		participants = append(participants, models.NewParticipant(0, m, role, now))
	}

	if err := s.chatRepo.CreateConversation(conv, participants); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *chatService) RenameGroup(conversationID uint, requester models.Identity, newName string) (*models.Conversation, error) {
	conv, err := s.loadConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup() {
		return nil, errs.New("only group conversations can be renamed", 400)
	}
	if !s.isAdmin(conv, requester) {
		return nil, errs.ErrNotAdmin
	}

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, errs.New("group name cannot be empty", 400)
	}
	if err := s.chatRepo.UpdateConversationName(conversationID, newName); err != nil {
		return nil, err
	}
	conv.Name = &newName
	return conv, nil
}

// DeleteConversation removes a conversation and all it owns. Group deletion
// is admin-only; for a direct chat either side may delete. Any live channel
// for the conversation is dropped once the delete commits.
func (s *chatService) DeleteConversation(conversationID uint, requester models.Identity) error {
	conv, err := s.loadConversation(conversationID)
	if err != nil {
		return err
	}

	if conv.IsGroup() {
		if !s.isAdmin(conv, requester) {
			return errs.New("only a group admin can delete the conversation", 403)
		}
	} else {
		if !s.isParticipant(conv, requester) {
			return errs.New("only participants can delete this conversation", 403)
		}
	}

	if err := s.chatRepo.DeleteConversation(conversationID); err != nil {
		return err
	}
	s.broadcaster.DropConversation(conversationID)
	return nil
}

// AppendMessage persists a message from a current participant and bumps the
// conversation's last-activity stamp to the message's creation time. The
// broadcast afterwards is best-effort; a delivery failure never unwinds the
// persisted message.
func (s *chatService) AppendMessage(conversationID uint, sender models.Identity, text string, attachment *Attachment) (*models.Message, error) {
	conv, err := s.loadConversation(conversationID)
	if err != nil {
		return nil, err
	}

	participant, err := s.chatRepo.FindParticipant(conversationID, sender)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("only participants can send messages", 403)
		}
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       participant.ID,
		CreatedAt:      time.Now().UTC(),
	}
	if text != "" {
		msg.Text = &text
	}
	if attachment != nil {
		msg.AttachmentURL = &attachment.URL
		msg.AttachmentType = &attachment.Type
	}
	if !msg.HasContent() {
		return nil, errs.ErrEmptyMessage
	}

	if err := s.chatRepo.CreateMessage(msg); err != nil {
		return nil, err
	}
	s.broadcaster.PublishMessage(conversationID, msg)
	return msg, nil
}

func (s *chatService) ListMessages(conversationID uint) ([]models.Message, error) {
	if _, err := s.loadConversation(conversationID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListMessages(conversationID)
}

func (s *chatService) ListConversations(identity models.Identity) ([]models.Conversation, error) {
	return s.chatRepo.ListConversationsForIdentity(identity)
}

func (s *chatService) ListParticipants(conversationID uint) ([]models.Participant, error) {
	if _, err := s.loadConversation(conversationID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListParticipants(conversationID)
}

func (s *chatService) loadConversation(id uint) (*models.Conversation, error) {
	conv, err := s.chatRepo.FindConversationByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (s *chatService) isParticipant(conv *models.Conversation, identity models.Identity) bool {
	for i := range conv.Participants {
		if conv.Participants[i].Matches(identity) {
			return true
		}
	}
	return false
}

func (s *chatService) isAdmin(conv *models.Conversation, identity models.Identity) bool {
	for i := range conv.Participants {
		if conv.Participants[i].Matches(identity) && conv.Participants[i].IsAdmin() {
			return true
		}
	}
	return false
}
