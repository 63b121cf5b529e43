package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoavatar/internal/utils"
)

type APIError struct {
	Error string     `json:"error"`
	Code  utils.Code `json:"code"`
	Kind  utils.Kind `json:"kind,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Error: ae.Message,
			Code:  ae.Code,
			Kind:  ae.Kind,
		})
		return
	}

	c.JSON(status, APIError{
		Error: http.StatusText(status),
		Code:  utils.CodeInternal,
	})
}

// errorEvent is the realtime form of err.
func errorEvent(err error) any {
	return gin.H{"message": utils.ClientMessage(err), "kind": string(utils.KindOf(err))}
}
