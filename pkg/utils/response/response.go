// Package response writes the JSON bodies of the public API.
//
// Success bodies carry {"message": ...}; failures carry {"error": ...} with the
// HTTP status of the matching errno. The errno code travels in the
// X-Error-Code header so clients can branch without parsing text.
package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-assistant/pkg/errors"
)

// HeaderErrorCode carries the numeric errno of a failed request.
const HeaderErrorCode = "X-Error-Code"

// Response is the body of every public endpoint.
type Response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK writes 200 {"message": message}.
func OK(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Message: message})
}

// JSON writes an arbitrary payload with status 200.
func JSON(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Fail maps err to its errno and aborts with {"error": message}.
// Errors without an errno become errors.ErrInternal.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	c.Header(HeaderErrorCode, strconv.Itoa(e.Code))
	c.AbortWithStatusJSON(e.HTTPStatus(), Response{Error: e.Message(lang(c))})
}

func lang(c *gin.Context) string {
	if c.Request == nil {
		return ""
	}
	return c.GetHeader("Accept-Language")
}
