package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/middleware"
)

// Transport-level error codes. Query failures report their own
// errors.ErrorCode name.
const (
	ErrorCodeInvalidRequest = "INVALID_REQUEST"
	ErrorCodeInternalError  = "INTERNAL_ERROR"
	ErrorCodeServiceDown    = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout        = "TIMEOUT"
	ErrorCodeNotFound       = "NOT_FOUND"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string                 `json:"status"`
	ErrorCode string                 `json:"error_code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorRecorder counts errors returned to clients.
type ErrorRecorder interface {
	RecordQueryError(code string)
}

// ErrorHandler writes errors as JSON responses.
type ErrorHandler struct {
	recorder ErrorRecorder
	logger   *zap.Logger
}

// NewErrorHandler creates an error handler. recorder may be nil.
func NewErrorHandler(recorder ErrorRecorder, logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{recorder: recorder, logger: logger}
}

// HandleError processes an error and writes an appropriate HTTP response.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.RequestIDFrom(r.Context())

	var qe *errors.QueryError
	if stderrors.As(err, &qe) {
		h.WriteErrorResponse(w, GRPCToHTTPStatus(err), qe.Code.String(), qe.Message, qe.Details, requestID)
		return
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		h.WriteErrorResponse(w, http.StatusGatewayTimeout, ErrorCodeTimeout, "request timed out", nil, requestID)
	case stderrors.Is(err, context.Canceled):
		h.WriteErrorResponse(w, http.StatusServiceUnavailable, ErrorCodeServiceDown, "request cancelled", nil, requestID)
	default:
		h.logger.Error("unclassified error", zap.Error(err), zap.String("request_id", requestID))
		h.WriteErrorResponse(w, GRPCToHTTPStatus(err), GRPCToErrorCode(err), "internal server error", nil, requestID)
	}
}

// GRPCToHTTPStatus converts an error carrying a gRPC status to an HTTP status code.
func GRPCToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	st, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch st.Code() {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.OutOfRange:
		return http.StatusUnprocessableEntity
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GRPCToErrorCode converts a gRPC status to a transport error code.
func GRPCToErrorCode(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ErrorCodeInternalError
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.OutOfRange:
		return ErrorCodeInvalidRequest
	case codes.NotFound:
		return ErrorCodeNotFound
	case codes.Unavailable:
		return ErrorCodeServiceDown
	case codes.DeadlineExceeded:
		return ErrorCodeTimeout
	default:
		return ErrorCodeInternalError
	}
}

// WriteErrorResponse writes a formatted error response.
func (h *ErrorHandler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, details map[string]interface{}, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", errorCode),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)
	if h.recorder != nil {
		h.recorder.RecordQueryError(errorCode)
	}
	if len(details) == 0 {
		details = nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
		RequestID: requestID,
	})
}

// WriteValidationError writes a bad request response.
func (h *ErrorHandler) WriteValidationError(w http.ResponseWriter, r *http.Request, message string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, nil, middleware.RequestIDFrom(r.Context()))
}
