package response

import "github.com/gin-gonic/gin"

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// ErrorCode builds the errors payload for a machine-readable failure code
func ErrorCode(code string) ErrorDetail {
	return ErrorDetail{Code: code}
}

func ErrorWithDetails(code string, details interface{}) ErrorDetail {
	return ErrorDetail{Code: code, Details: details}
}
