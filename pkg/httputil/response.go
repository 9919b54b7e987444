package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careops-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
	TotalPage int `json:"total_pages"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// Success builds a success envelope
func Success(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Failure builds an error envelope from any error
func Failure(err error) (int, Response) {
	statusCode := http.StatusInternalServerError
	code := string(errors.ErrInternal)
	message := "internal server error"

	if appErr, ok := errors.As(err); ok {
		statusCode = appErr.StatusCode()
		code = string(appErr.Code)
		message = appErr.Message
	}

	return statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Success(data))
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	if _, ok := errors.As(err); !ok {
		// keep unexpected failures visible to the error middleware
		_ = c.Error(err)
	}
	status, resp := Failure(err)
	c.JSON(status, resp)
}

// AbortWithError sends an error response and stops the handler chain
func AbortWithError(c *gin.Context, err error) {
	status, resp := Failure(err)
	c.AbortWithStatusJSON(status, resp)
}

// RespondWithPagination sends a paginated response
func RespondWithPagination(c *gin.Context, data interface{}, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: PaginatedResponse{
			Items: data,
			Pagination: Pagination{
				Page:      page,
				PageSize:  pageSize,
				Total:     total,
				TotalPage: totalPages,
			},
		},
	})
}
