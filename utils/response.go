package utils

import "github.com/gin-gonic/gin"

// Business codes carried in JSONResponse.Code. Zero is success.
const (
	CodeOK                  = 0
	CodeBadRequest          = 40000
	CodeValidation          = 40001
	CodeInsufficientBalance = 40002
	CodeAlreadyCheckedIn    = 40003
	CodePredictionClosed    = 40004
	CodeAlreadyProcessed    = 40005
	CodeUsernameTaken       = 40006
	CodeUnauthorized        = 40100
	CodeForbidden           = 40300
	CodeNotFound            = 40400
	CodeTooManyRequests     = 42900
	CodeInternal            = 50000
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page wraps one page of a listing.
type Page struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, CodeOK, "success", data)
}

// Created answers 201 with data.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, 201, CodeOK, "created", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}
