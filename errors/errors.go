package errors

import (
	"fmt"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

// Error carries a message and the HTTP status it should translate to at the
// boundary. Services return these; handlers hand them to response helpers.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string {
	return e.Message
}

func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

var (
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrNotFound            = New("not found", http.StatusNotFound)
	ErrForbidden           = New("forbidden", http.StatusForbidden)
	ErrConflict            = New("conflict", http.StatusConflict)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
)

// Domain sentinels for the chat subsystem.
var (
	ErrConversationNotFound = New("conversation not found", http.StatusNotFound)
	ErrIdentityNotFound     = New("identity not found", http.StatusNotFound)
	ErrNotParticipant       = New("not a participant of this conversation", http.StatusForbidden)
	ErrNotAdmin             = New("only a group admin may perform this action", http.StatusForbidden)
	ErrGroupOnly            = New("operation only applies to group conversations", http.StatusBadRequest)
	ErrEmptyMessage         = New("message needs text or an attachment", http.StatusBadRequest)
	ErrDirectPairRaced      = New("direct conversation already created for this pair", http.StatusConflict)
)

// ErrorHandler is plugged into the gin rate limiter for throttled requests.
func ErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"errors": fmt.Sprintf("Too many requests. Try again in %s", time.Until(info.ResetTime).Round(time.Second)),
	})
}
