package services

import (
	"sync"

	"github.com/staffhive/teamchat/models"
	"gorm.io/gorm"
)

// memChatRepo is an in-memory ChatRepository with the same observable
// behavior as the GORM implementation: record-not-found and duplicated-key
// come back as the gorm sentinels, ids are assigned in insertion order, and
// the pair-key unique index is enforced.
type memChatRepo struct {
	mu sync.Mutex

	nextConvID        uint
	nextParticipantID uint
	nextMessageID     uint

	conversations map[uint]*models.Conversation
	participants  map[uint]*models.Participant
	messages      []*models.Message
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{
		nextConvID:        1,
		nextParticipantID: 1,
		nextMessageID:     1,
		conversations:     make(map[uint]*models.Conversation),
		participants:      make(map[uint]*models.Participant),
	}
}

func (r *memChatRepo) CreateConversation(conv *models.Conversation, participants []models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conv.PairKey != nil {
		for _, existing := range r.conversations {
			if existing.PairKey != nil && *existing.PairKey == *conv.PairKey {
				return gorm.ErrDuplicatedKey
			}
		}
	}

	conv.ID = r.nextConvID
	r.nextConvID++
	stored := *conv
	stored.Participants = nil
	r.conversations[conv.ID] = &stored

	for i := range participants {
		participants[i].ID = r.nextParticipantID
		r.nextParticipantID++
		participants[i].ConversationID = conv.ID
		p := participants[i]
		r.participants[p.ID] = &p
	}
	conv.Participants = participants
	return nil
}

func (r *memChatRepo) FindConversationByID(id uint) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(id)
}

func (r *memChatRepo) loadLocked(id uint) (*models.Conversation, error) {
	stored, ok := r.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	conv := *stored
	conv.Participants = r.participantsLocked(id)
	return &conv, nil
}

func (r *memChatRepo) FindDirectByPairKey(pairKey string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, conv := range r.conversations {
		if conv.Type == models.ConversationDirect && conv.PairKey != nil && *conv.PairKey == pairKey {
			return r.loadLocked(id)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memChatRepo) ListConversationsForIdentity(identity models.Identity) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var convs []models.Conversation
	for id := range r.conversations {
		for _, p := range r.participantsLocked(id) {
			if p.Matches(identity) {
				conv, _ := r.loadLocked(id)
				convs = append(convs, *conv)
				break
			}
		}
	}
	// last_message_at descending
	for i := 0; i < len(convs); i++ {
		for j := i + 1; j < len(convs); j++ {
			if convs[j].LastMessageAt.After(convs[i].LastMessageAt) {
				convs[i], convs[j] = convs[j], convs[i]
			}
		}
	}
	return convs, nil
}

func (r *memChatRepo) UpdateConversationName(id uint, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	conv.Name = &name
	return nil
}

func (r *memChatRepo) DeleteConversation(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conversations, id)
	for pid, p := range r.participants {
		if p.ConversationID == id {
			delete(r.participants, pid)
		}
	}
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.ConversationID != id {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	return nil
}

func (r *memChatRepo) ListParticipants(conversationID uint) ([]models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantsLocked(conversationID), nil
}

func (r *memChatRepo) participantsLocked(conversationID uint) []models.Participant {
	var out []models.Participant
	for _, p := range r.participants {
		if p.ConversationID == conversationID {
			out = append(out, *p)
		}
	}
	// joined_at then id ascending, matching the SQL ordering
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			a, b := out[i], out[j]
			if b.JoinedAt.Before(a.JoinedAt) || (b.JoinedAt.Equal(a.JoinedAt) && b.ID < a.ID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func (r *memChatRepo) FindParticipant(conversationID uint, identity models.Identity) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.ConversationID == conversationID && p.Matches(identity) {
			found := *p
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memChatRepo) AddParticipants(participants []models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range participants {
		participants[i].ID = r.nextParticipantID
		r.nextParticipantID++
		p := participants[i]
		r.participants[p.ID] = &p
	}
	return nil
}

func (r *memChatRepo) RemoveParticipant(participantID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, participantID)
	return nil
}

func (r *memChatRepo) UpdateParticipantRole(participantID uint, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[participantID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Role = role
	return nil
}

func (r *memChatRepo) PromoteAndRemove(promoteID, removeID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[promoteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Role = models.RoleAdmin
	delete(r.participants, removeID)
	return nil
}

func (r *memChatRepo) CreateMessage(msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[msg.ConversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msg.ID = r.nextMessageID
	r.nextMessageID++
	stored := *msg
	r.messages = append(r.messages, &stored)
	conv.LastMessageAt = msg.CreatedAt
	return nil
}

func (r *memChatRepo) ListMessages(conversationID uint) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	// created_at then id ascending
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			a, b := out[i], out[j]
			if b.CreatedAt.Before(a.CreatedAt) || (b.CreatedAt.Equal(a.CreatedAt) && b.ID < a.ID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

// memDirectory resolves any identity whose id is registered.
type memDirectory struct {
	known map[models.Identity]string
}

func newMemDirectory(identities ...models.Identity) *memDirectory {
	d := &memDirectory{known: make(map[models.Identity]string)}
	for _, identity := range identities {
		d.known[identity] = identity.String()
	}
	return d
}

func (d *memDirectory) ResolveIdentity(identity models.Identity) (*models.DirectoryEntry, error) {
	name, ok := d.known[identity]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.DirectoryEntry{Identity: identity, DisplayName: name}, nil
}

func (d *memDirectory) ListTeam(employeeID uint) ([]models.DirectoryEntry, error) {
	var team []models.DirectoryEntry
	for identity, name := range d.known {
		if identity.Kind == models.IdentityEmployee && identity.ID == employeeID {
			continue
		}
		team = append(team, models.DirectoryEntry{Identity: identity, DisplayName: name})
	}
	return team, nil
}

// spyBroadcaster records publishes so tests can assert the best-effort
// notification fired (or didn't).
type spyBroadcaster struct {
	mu        sync.Mutex
	published []*models.Message
	dropped   []uint
}

func (b *spyBroadcaster) PublishMessage(conversationID uint, msg *models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, msg)
}

func (b *spyBroadcaster) DropConversation(conversationID uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropped = append(b.dropped, conversationID)
}
