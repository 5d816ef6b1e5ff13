// Package response writes the JSON envelope every endpoint answers with:
// {success, data?, error?{code,message}}.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Problem    `json:"error,omitempty"`
}

// Problem describes a failed request.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var problemCodes = map[int]string{
	http.StatusBadRequest:            "BAD_REQUEST",
	http.StatusUnauthorized:          "UNAUTHORIZED",
	http.StatusForbidden:             "FORBIDDEN",
	http.StatusNotFound:              "NOT_FOUND",
	http.StatusConflict:              "CONFLICT",
	http.StatusRequestEntityTooLarge: "TOO_LARGE",
	http.StatusUnsupportedMediaType:  "UNSUPPORTED_MEDIA_TYPE",
	http.StatusInternalServerError:   "INTERNAL_ERROR",
}

// CodeFor returns the envelope error code used for an HTTP status.
func CodeFor(status int) string {
	if code, ok := problemCodes[status]; ok {
		return code
	}
	if status >= http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return "ERROR"
}

// Data writes a successful envelope with the given status.
func Data(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	Data(c, http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	Data(c, http.StatusCreated, data)
}

// Fail writes an error envelope whose code is derived from status.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{
		Error: &Problem{Code: CodeFor(status), Message: message},
	})
}

func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, message)
}

func InternalError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, message)
}
