package server

import (
	goerrors "errors"
	"net/http"
	"strings"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	errs "github.com/staffhive/teamchat/errors"
	"github.com/staffhive/teamchat/models"
	"github.com/staffhive/teamchat/server/response"
	"github.com/staffhive/teamchat/services/jwt"
	"gorm.io/gorm"
)

const identityKey = "identity"

// Authorize validates the bearer token, resolves the identity through the
// directory, and stores it in the request context for the handlers.
func (s *Server) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := getTokenFromHeader(c)
		if accessToken == "" {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		identity, err := s.identityFromToken(accessToken)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		entry, err := s.DirectoryRepository.ResolveIdentity(identity)
		if err != nil {
			if goerrors.Is(err, gorm.ErrRecordNotFound) {
				respondAndAbort(c, "identity not found", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
				return
			}
			respondAndAbort(c, "", http.StatusInternalServerError, nil, errs.ErrInternalServerError)
			return
		}

		c.Set(identityKey, identity)
		c.Set("displayName", entry.DisplayName)
		c.Set("profilePicture", entry.ProfilePicture)
		c.Next()
	}
}

func (s *Server) identityFromToken(accessToken string) (models.Identity, error) {
	claims, err := jwt.ValidateAndGetClaims(accessToken, s.Config.JWTSecret)
	if err != nil {
		return models.Identity{}, err
	}
	return jwt.IdentityFromClaims(claims)
}

func getTokenFromHeader(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return authHeader[7:]
	}
	return ""
}

func actorIdentity(c *gin.Context) (models.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

func respondAndAbort(c *gin.Context, message string, status int, data interface{}, err error) {
	response.JSON(c, message, status, data, err)
	c.Abort()
}

// limitRateForMessages throttles the message-send endpoint per client.
func limitRateForMessages(store ratelimit.Store) gin.HandlerFunc {
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: errs.ErrorHandler,
		KeyFunc:      keyFunc,
	})
}

func keyFunc(c *gin.Context) string {
	if identity, ok := actorIdentity(c); ok {
		return identity.String()
	}
	return c.ClientIP()
}
