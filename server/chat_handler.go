package server

import (
	goerrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	errs "github.com/staffhive/teamchat/errors"
	"github.com/staffhive/teamchat/models"
	"github.com/staffhive/teamchat/server/response"
	"github.com/staffhive/teamchat/services"
	"gorm.io/gorm"
)

// identityRef is how request bodies point at an employee or employer.
type identityRef struct {
	Role string `json:"role" binding:"required,oneof=employee employer"`
	ID   uint   `json:"id" binding:"required"`
}

func (r identityRef) identity() (models.Identity, error) {
	return models.NewIdentity(models.IdentityKind(r.Role), r.ID)
}

func (s *Server) handleCreateDirectConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorIdentity(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		var body struct {
			Peer identityRef `json:"peer" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		peer, err := body.Peer.identity()
		if err != nil {
			response.HandleErrors(c, err)
			return
		}

		conv, err := s.ChatService.CreateDirectConversation(actor, peer)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "conversation ready", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleCreateGroupConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorIdentity(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		var body struct {
			Name    string        `json:"name" binding:"required"`
			Members []identityRef `json:"members" binding:"required,min=2"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		// The creator is the first member, which makes them the admin.
		members := []models.Identity{actor}
		for _, ref := range body.Members {
			identity, err := ref.identity()
			if err != nil {
				response.HandleErrors(c, err)
				return
			}
			members = append(members, identity)
		}

		conv, err := s.ChatService.CreateGroupConversation(body.Name, members)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "group created", http.StatusCreated, conv, nil)
	}
}

func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorIdentity(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		convs, err := s.ChatService.ListConversations(actor)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, convs, nil)
	}
}

func (s *Server) handleListParticipants() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := conversationIDParam(c)
		if !ok {
			return
		}
		participants, err := s.ChatService.ListParticipants(conversationID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, participants, nil)
	}
}

func (s *Server) handleRenameGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, conversationID, ok := actorAndConversation(c)
		if !ok {
			return
		}

		var body struct {
			NewName string `json:"new_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		conv, err := s.ChatService.RenameGroup(conversationID, actor, body.NewName)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "group renamed", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleAddParticipants() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, conversationID, ok := actorAndConversation(c)
		if !ok {
			return
		}

		var body struct {
			Members []identityRef `json:"members" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		identities := make([]models.Identity, 0, len(body.Members))
		for _, ref := range body.Members {
			identity, err := ref.identity()
			if err != nil {
				response.HandleErrors(c, err)
				return
			}
			identities = append(identities, identity)
		}

		added, err := s.MembershipService.AddParticipants(conversationID, actor, identities)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "participants added", http.StatusOK, gin.H{"added": added}, nil)
	}
}

func (s *Server) handleRemoveParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, conversationID, ok := actorAndConversation(c)
		if !ok {
			return
		}

		var body identityRef
		if err := c.ShouldBindJSON(&body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		target, err := body.identity()
		if err != nil {
			response.HandleErrors(c, err)
			return
		}

		if err := s.MembershipService.RemoveParticipant(conversationID, actor, target); err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "participant removed", http.StatusOK, gin.H{"removed": target}, nil)
	}
}

func (s *Server) handleLeaveConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, conversationID, ok := actorAndConversation(c)
		if !ok {
			return
		}
		if err := s.MembershipService.Leave(conversationID, actor); err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "left conversation", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleSetAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, conversationID, ok := actorAndConversation(c)
		if !ok {
			return
		}

		var body struct {
			Target    identityRef `json:"target" binding:"required"`
			MakeAdmin *bool       `json:"make_admin" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		target, err := body.Target.identity()
		if err != nil {
			response.HandleErrors(c, err)
			return
		}

		if err := s.MembershipService.SetAdmin(conversationID, actor, target, *body.MakeAdmin); err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "role updated", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleDeleteConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, conversationID, ok := actorAndConversation(c)
		if !ok {
			return
		}
		if err := s.ChatService.DeleteConversation(conversationID, actor); err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "conversation deleted", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, conversationID, ok := actorAndConversation(c)
		if !ok {
			return
		}

		isParticipant, err := s.MembershipService.IsParticipant(conversationID, actor)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		if !isParticipant {
			response.JSON(c, "", http.StatusForbidden, nil, errs.ErrNotParticipant)
			return
		}

		msgs, err := s.ChatService.ListMessages(conversationID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, msgs, nil)
	}
}

// handleSendMessage accepts multipart form data: conversation_id, optional
// text, optional file. The file goes to the blob store first; the message is
// only persisted when it ends up with text, an attachment, or both.
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorIdentity(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		conversationID, err := strconv.ParseUint(c.PostForm("conversation_id"), 10, 32)
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid conversation_id", http.StatusBadRequest))
			return
		}
		text := c.PostForm("text")

		var attachment *services.Attachment
		if fileHeader, err := c.FormFile("file"); err == nil && fileHeader != nil {
			attachment, err = s.MediaService.UploadAttachment(fileHeader)
			if err != nil {
				response.HandleErrors(c, err)
				return
			}
		}

		msg, err := s.ChatService.AppendMessage(uint(conversationID), actor, text, attachment)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "message sent", http.StatusCreated, gin.H{
			"message":    msg,
			"attachment": attachment,
		}, nil)
	}
}

func (s *Server) handleGetTeam() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorIdentity(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		var excludeEmployee uint
		if actor.Kind == models.IdentityEmployee {
			excludeEmployee = actor.ID
		}
		team, err := s.DirectoryRepository.ListTeam(excludeEmployee)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		for i := range team {
			if team[i].ProfilePicture == "" {
				team[i].ProfilePicture = s.Config.DefaultProfilePicture
			}
		}
		response.JSON(c, "", http.StatusOK, gin.H{"team": team}, nil)
	}
}

func (s *Server) handleResolveIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid identity id", http.StatusBadRequest))
			return
		}
		identity, err := models.NewIdentity(models.IdentityKind(c.Param("role")), uint(id))
		if err != nil {
			response.HandleErrors(c, err)
			return
		}

		entry, err := s.DirectoryRepository.ResolveIdentity(identity)
		if err != nil {
			if goerrors.Is(err, gorm.ErrRecordNotFound) {
				response.JSON(c, "", http.StatusNotFound, nil, errs.ErrIdentityNotFound)
				return
			}
			response.HandleErrors(c, err)
			return
		}
		if entry.ProfilePicture == "" {
			entry.ProfilePicture = s.Config.DefaultProfilePicture
		}
		response.JSON(c, "", http.StatusOK, entry, nil)
	}
}

func conversationIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid conversation id", http.StatusBadRequest))
		return 0, false
	}
	return uint(id), true
}

func actorAndConversation(c *gin.Context) (models.Identity, uint, bool) {
	actor, ok := actorIdentity(c)
	if !ok {
		response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
		return models.Identity{}, 0, false
	}
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return models.Identity{}, 0, false
	}
	return actor, conversationID, true
}
