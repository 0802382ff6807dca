// Package response writes the JSON envelope every REST and upgrade error
// response shares: {success, message, data, error{code, message}}.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = map[int]string{
	http.StatusBadRequest:          "BAD_REQUEST",
	http.StatusUnauthorized:        "UNAUTHORIZED",
	http.StatusForbidden:           "FORBIDDEN",
	http.StatusNotFound:            "NOT_FOUND",
	http.StatusConflict:            "CONFLICT",
	http.StatusInternalServerError: "INTERNAL_ERROR",
}

// Failure builds the error envelope for status.
func Failure(status int, message string) Response {
	code, ok := errorCodes[status]
	if !ok {
		code = "ERROR"
	}
	return Response{
		Message: message,
		Error:   &ErrorInfo{Code: code, Message: message},
	}
}

// Write sends an error envelope on a plain net/http writer, for routes that
// are served outside gin.
func Write(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Failure(status, message))
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// Success sends a 200 response with data.
func Success(c *gin.Context, data interface{}) {
	ok(c, http.StatusOK, "", data)
}

// SuccessMessage sends a 200 response carrying only a human readable message.
func SuccessMessage(c *gin.Context, message string) {
	ok(c, http.StatusOK, message, nil)
}

// SuccessWithMessage sends a 200 response with a message and data.
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	ok(c, http.StatusOK, message, data)
}

// CreatedMessage sends a 201 response with a message and optional data.
func CreatedMessage(c *gin.Context, message string, data interface{}) {
	ok(c, http.StatusCreated, message, data)
}

// Error sends an error response with the code matching statusCode.
func Error(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Failure(statusCode, message))
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
