package response

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/staffhive/teamchat/errors"
)

// JSON writes the uniform response envelope.
func JSON(c *gin.Context, message string, status int, data interface{}, err error) {
	errMessage := ""
	if err != nil {
		errMessage = err.Error()
	}
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
		"errors":  errMessage,
		"status":  http.StatusText(status),
	})
}

// HandleErrors translates service errors into their HTTP shape. Errors that
// don't carry a status are treated as internal.
func HandleErrors(c *gin.Context, err error) {
	var e *errs.Error
	if goerrors.As(err, &e) {
		JSON(c, "", e.Status, nil, e)
		return
	}
	JSON(c, "", http.StatusInternalServerError, nil, errs.ErrInternalServerError)
}
