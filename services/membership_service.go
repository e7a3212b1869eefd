package services

import (
	"errors"
	"time"

	"github.com/staffhive/teamchat/db"
	errs "github.com/staffhive/teamchat/errors"
	"github.com/staffhive/teamchat/models"
	"gorm.io/gorm"
)

// MembershipService answers who is in a conversation and with what role, and
// applies the membership mutations. Authorization checks always run before
// any write; a denied request leaves no trace.
type MembershipService interface {
	IsParticipant(conversationID uint, identity models.Identity) (bool, error)
	IsAdmin(conversationID uint, identity models.Identity) (bool, error)
	AddParticipants(conversationID uint, requester models.Identity, newIdentities []models.Identity) ([]models.Identity, error)
	RemoveParticipant(conversationID uint, requester, target models.Identity) error
	Leave(conversationID uint, identity models.Identity) error
	SetAdmin(conversationID uint, requester, target models.Identity, makeAdmin bool) error
}

type membershipService struct {
	chatRepo      db.ChatRepository
	directoryRepo db.DirectoryRepository
}

func NewMembershipService(chatRepo db.ChatRepository, directoryRepo db.DirectoryRepository) MembershipService {
	return &membershipService{
		chatRepo:      chatRepo,
		directoryRepo: directoryRepo,
	}
}

func (s *membershipService) IsParticipant(conversationID uint, identity models.Identity) (bool, error) {
	_, err := s.chatRepo.FindParticipant(conversationID, identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *membershipService) IsAdmin(conversationID uint, identity models.Identity) (bool, error) {
	p, err := s.chatRepo.FindParticipant(conversationID, identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.IsAdmin(), nil
}

// AddParticipants adds identities to a group. Identities already present are
// skipped silently; each genuinely new identity must resolve in the
// directory. Returns the identities actually added.
func (s *membershipService) AddParticipants(conversationID uint, requester models.Identity, newIdentities []models.Identity) ([]models.Identity, error) {
	conv, participants, err := s.loadGroup(conversationID)
	if err != nil {
		return nil, err
	}
	if !anyAdminMatch(participants, requester) {
		return nil, errs.New("only admins can add participants", 403)
	}

	existing := make(map[models.Identity]bool, len(participants))
	for i := range participants {
		existing[participants[i].Identity()] = true
	}

	var toAdd []models.Identity
	for _, identity := range newIdentities {
		if identity.Zero() || existing[identity] {
			continue
		}
		if _, err := s.directoryRepo.ResolveIdentity(identity); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errs.ErrIdentityNotFound
			}
			return nil, err
		}
		existing[identity] = true
		toAdd = append(toAdd, identity)
	}
	if len(toAdd) == 0 {
		return nil, errs.New("no new participants provided", 400)
	}

	rows := make([]models.Participant, 0, len(toAdd))
	now := time.Now().UTC()
	for _, identity := range toAdd {
		rows = append(rows, models.NewParticipant(conv.ID, identity, models.RoleMember, now))
	}
	if err := s.chatRepo.AddParticipants(rows); err != nil {
		return nil, err
	}
	return toAdd, nil
}

// RemoveParticipant removes the target from a group. An admin removing
// themselves goes through Leave so admin succession still runs.
func (s *membershipService) RemoveParticipant(conversationID uint, requester, target models.Identity) error {
	_, participants, err := s.loadGroup(conversationID)
	if err != nil {
		return err
	}
	if !anyAdminMatch(participants, requester) {
		return errs.New("only admins can remove participants", 403)
	}
	if requester == target {
		return s.leaveLoaded(conversationID, target, participants)
	}

	p, err := s.chatRepo.FindParticipant(conversationID, target)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.New("user is not a participant", 404)
		}
		return err
	}
	return s.chatRepo.RemoveParticipant(p.ID)
}

// Leave removes the identity from a group. When the sole admin leaves and
// others remain, succession runs first: the earliest joined participant is
// promoted, ties broken by lowest participant id, so a non-empty group never
// goes admin-less.
func (s *membershipService) Leave(conversationID uint, identity models.Identity) error {
	_, participants, err := s.loadGroup(conversationID)
	if err != nil {
		return err
	}
	return s.leaveLoaded(conversationID, identity, participants)
}

func (s *membershipService) leaveLoaded(conversationID uint, identity models.Identity, participants []models.Participant) error {
	var leaver *models.Participant
	for i := range participants {
		if participants[i].Matches(identity) {
			leaver = &participants[i]
			break
		}
	}
	if leaver == nil {
		return errs.New("you are not in this conversation", 404)
	}

	if leaver.IsAdmin() {
		remaining := make([]models.Participant, 0, len(participants)-1)
		adminRemains := false
		for i := range participants {
			if participants[i].ID == leaver.ID {
				continue
			}
			remaining = append(remaining, participants[i])
			if participants[i].IsAdmin() {
				adminRemains = true
			}
		}
		if !adminRemains && len(remaining) > 0 {
			successor := successorOf(remaining)
			return s.chatRepo.PromoteAndRemove(successor.ID, leaver.ID)
		}
	}
	return s.chatRepo.RemoveParticipant(leaver.ID)
}

// SetAdmin toggles a participant's role. Demoting the last remaining admin
// is refused; the group would be left without one.
func (s *membershipService) SetAdmin(conversationID uint, requester, target models.Identity, makeAdmin bool) error {
	_, participants, err := s.loadGroup(conversationID)
	if err != nil {
		return err
	}
	if !anyAdminMatch(participants, requester) {
		return errs.New("only admins can change roles", 403)
	}

	p, err := s.chatRepo.FindParticipant(conversationID, target)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.New("target user is not a participant", 404)
		}
		return err
	}

	role := models.RoleMember
	if makeAdmin {
		role = models.RoleAdmin
	} else if p.IsAdmin() && countAdmins(participants) == 1 {
		return errs.New("group needs at least one admin", 400)
	}
	return s.chatRepo.UpdateParticipantRole(p.ID, role)
}

func (s *membershipService) loadGroup(conversationID uint) (*models.Conversation, []models.Participant, error) {
	conv, err := s.chatRepo.FindConversationByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errs.ErrConversationNotFound
		}
		return nil, nil, err
	}
	if !conv.IsGroup() {
		return nil, nil, errs.ErrGroupOnly
	}
	return conv, conv.Participants, nil
}

// successorOf picks the next admin: earliest joined_at, then lowest id.
func successorOf(participants []models.Participant) *models.Participant {
	best := &participants[0]
	for i := 1; i < len(participants); i++ {
		p := &participants[i]
		if p.JoinedAt.Before(best.JoinedAt) ||
			(p.JoinedAt.Equal(best.JoinedAt) && p.ID < best.ID) {
			best = p
		}
	}
	return best
}

func anyAdminMatch(participants []models.Participant, identity models.Identity) bool {
	for i := range participants {
		if participants[i].Matches(identity) && participants[i].IsAdmin() {
			return true
		}
	}
	return false
}

func countAdmins(participants []models.Participant) int {
	n := 0
	for i := range participants {
		if participants[i].IsAdmin() {
			n++
		}
	}
	return n
}
