package server

import (
	"fmt"
	"os"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: 5,
	})
	messageLimiter := limitRateForMessages(store)

	router.GET("/ws/:conversation_id", s.handleWebSocket())

	apirouter := router.Group("/api/v1")
	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())

	authorized.POST("/conversations/direct", s.handleCreateDirectConversation())
	authorized.POST("/conversations/group", s.handleCreateGroupConversation())
	authorized.GET("/conversations", s.handleListConversations())
	authorized.GET("/conversations/:id/participants", s.handleListParticipants())
	authorized.POST("/conversations/:id/rename", s.handleRenameGroup())
	authorized.POST("/conversations/:id/participants/add", s.handleAddParticipants())
	authorized.POST("/conversations/:id/participants/remove", s.handleRemoveParticipant())
	authorized.POST("/conversations/:id/leave", s.handleLeaveConversation())
	authorized.POST("/conversations/:id/admin", s.handleSetAdmin())
	authorized.DELETE("/conversations/:id", s.handleDeleteConversation())
	authorized.GET("/conversations/:id/messages", s.handleListMessages())
	authorized.POST("/messages", messageLimiter, s.handleSendMessage())
	authorized.GET("/team", s.handleGetTeam())
	authorized.GET("/identity/:role/:id", s.handleResolveIdentity())
}
