// internal/pkg/response/response.go
package response

import (
	"net/http"

	xerrors "dedupe-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success writes a successful envelope. A zero status means 200.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// Error aborts the chain and writes a failed envelope. An optional payload
// is returned as data, e.g. the partial outcome of a merge.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	body := Response{Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	if len(data) > 0 {
		body.Data = data[0]
	}
	c.JSON(code, body)
}

// FromError picks the status code from the error's sentinel.
func FromError(c *gin.Context, message string, err error, data ...interface{}) {
	Error(c, xerrors.HTTPStatus(err), message, err, data...)
}

// BadRequest reports a malformed body, query or path parameter.
func BadRequest(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}
