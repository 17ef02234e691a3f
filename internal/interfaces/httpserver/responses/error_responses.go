package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jan-server/services/media-ingest/internal/utils/platformerrors"
)

const genericFailure = "something went wrong, please try again"

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code      string `json:"code"` // UUID from PlatformError
	Type      string `json:"type,omitempty"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError renders err. Platform errors carry their own user-facing message
// and status; anything else becomes a generic 500 and the detail stays in the log.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType())

		errorMessage := domainErr.Message
		if errorMessage == "" {
			errorMessage = message
		}

		_ = reqCtx.Error(err)
		reqCtx.AbortWithStatusJSON(statusCode, ErrorResponse{
			Code:      domainErr.GetUUID(),
			Type:      string(domainErr.GetErrorType()),
			Error:     errorMessage,
			RequestID: domainErr.GetRequestID(),
		})
		return
	}

	if message == "" {
		message = genericFailure
	}
	_ = reqCtx.Error(err)
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Type:      string(platformerrors.ErrorTypeInternal),
		Error:     message,
		RequestID: platformerrors.RequestIDFromContext(reqCtx.Request.Context()),
	})
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	err := platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerRoute, errorType, message, nil, uuid)
	HandleError(reqCtx, err, message)
}
