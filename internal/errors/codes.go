package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode represents internal error codes for query operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Client errors (4xx equivalent)
	ErrCodeInvalidArgument         ErrorCode = 1000
	ErrCodeInvalidFaultName        ErrorCode = 1001
	ErrCodeUnsupportedSetOperation ErrorCode = 1002
	ErrCodeInvalidCursor           ErrorCode = 1003
	ErrCodeUnknownModel            ErrorCode = 1004
	ErrCodeUnknownFaultSystem      ErrorCode = 1005
	ErrCodeUnknownLocation         ErrorCode = 1006
	ErrCodeUnknownRupture          ErrorCode = 1007
	ErrCodeEmptyResult             ErrorCode = 1008
	ErrCodeTooManyResults          ErrorCode = 1009

	// Server errors (5xx equivalent)
	ErrCodeInternal            ErrorCode = 2000
	ErrCodeUnavailable         ErrorCode = 2001
	ErrCodeAmbiguousRuptureSet ErrorCode = 2002
	ErrCodeCatalogueFailed     ErrorCode = 2003
	ErrCodeLookupFailed        ErrorCode = 2004
)

var codeNames = map[ErrorCode]string{
	ErrCodeOK:                      "OK",
	ErrCodeInvalidArgument:         "INVALID_ARGUMENT",
	ErrCodeInvalidFaultName:        "INVALID_FAULT_NAME",
	ErrCodeUnsupportedSetOperation: "UNSUPPORTED_SET_OPERATION",
	ErrCodeInvalidCursor:           "INVALID_CURSOR",
	ErrCodeUnknownModel:            "UNKNOWN_MODEL",
	ErrCodeUnknownFaultSystem:      "UNKNOWN_FAULT_SYSTEM",
	ErrCodeUnknownLocation:         "UNKNOWN_LOCATION",
	ErrCodeUnknownRupture:          "UNKNOWN_RUPTURE",
	ErrCodeEmptyResult:             "EMPTY_RESULT",
	ErrCodeTooManyResults:          "TOO_MANY_RESULTS",
	ErrCodeInternal:                "INTERNAL_ERROR",
	ErrCodeUnavailable:             "SERVICE_UNAVAILABLE",
	ErrCodeAmbiguousRuptureSet:     "AMBIGUOUS_RUPTURE_SET",
	ErrCodeCatalogueFailed:         "CATALOGUE_FAILED",
	ErrCodeLookupFailed:            "LOOKUP_FAILED",
}

// String returns the wire name of the code, e.g. "EMPTY_RESULT".
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// QueryError represents a structured error with code and context
type QueryError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *QueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// GRPCStatus lets status.FromError recognise a QueryError.
func (e *QueryError) GRPCStatus() *status.Status {
	return e.ToGRPCStatus()
}

// ToGRPCStatus converts QueryError to gRPC status
func (e *QueryError) ToGRPCStatus() *status.Status {
	return status.New(e.toGRPCCode(), e.Error())
}

// toGRPCCode maps internal error codes to gRPC codes
func (e *QueryError) toGRPCCode() codes.Code {
	switch e.Code {
	case ErrCodeOK:
		return codes.OK
	case ErrCodeInvalidArgument, ErrCodeInvalidFaultName, ErrCodeUnsupportedSetOperation,
		ErrCodeInvalidCursor:
		return codes.InvalidArgument
	case ErrCodeUnknownModel, ErrCodeUnknownFaultSystem, ErrCodeUnknownLocation,
		ErrCodeUnknownRupture, ErrCodeEmptyResult:
		return codes.NotFound
	case ErrCodeTooManyResults:
		return codes.OutOfRange
	case ErrCodeAmbiguousRuptureSet:
		return codes.FailedPrecondition
	case ErrCodeUnavailable, ErrCodeLookupFailed:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// NewQueryError creates a new QueryError
func NewQueryError(code ErrorCode, message string, cause error) *QueryError {
	return &QueryError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *QueryError) WithDetail(key string, value interface{}) *QueryError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func InvalidArgument(message string, cause error) *QueryError {
	return NewQueryError(ErrCodeInvalidArgument, message, cause)
}

func InvalidFaultName(names []string) *QueryError {
	return NewQueryError(ErrCodeInvalidFaultName,
		fmt.Sprintf("invalid parent fault name(s): %s", strings.Join(names, ", ")), nil).
		WithDetail("fault_names", names)
}

func UnsupportedSetOperation(op string) *QueryError {
	return NewQueryError(ErrCodeUnsupportedSetOperation, fmt.Sprintf("unsupported set operation: %s", op), nil).
		WithDetail("operation", op)
}

func InvalidCursor(cursor string, cause error) *QueryError {
	return NewQueryError(ErrCodeInvalidCursor, fmt.Sprintf("invalid cursor '%s'", cursor), cause).
		WithDetail("cursor", cursor)
}

func UnknownModel(modelID string) *QueryError {
	return NewQueryError(ErrCodeUnknownModel, fmt.Sprintf("unknown model: %s", modelID), nil).
		WithDetail("model_id", modelID)
}

func UnknownFaultSystem(modelID, faultSystem string) *QueryError {
	return NewQueryError(ErrCodeUnknownFaultSystem,
		fmt.Sprintf("fault system %s not found in model %s", faultSystem, modelID), nil).
		WithDetail("model_id", modelID).
		WithDetail("fault_system", faultSystem)
}

func UnknownLocation(locationID string) *QueryError {
	return NewQueryError(ErrCodeUnknownLocation, fmt.Sprintf("unknown location id: %s", locationID), nil).
		WithDetail("location_id", locationID)
}

func UnknownRupture(faultSystem string, index int) *QueryError {
	return NewQueryError(ErrCodeUnknownRupture, fmt.Sprintf("rupture %s:%d not found", faultSystem, index), nil).
		WithDetail("fault_system", faultSystem).
		WithDetail("rupture_index", index)
}

func EmptyResult(message string) *QueryError {
	return NewQueryError(ErrCodeEmptyResult, message, nil)
}

func TooManyResults(message string, count, limit int) *QueryError {
	return NewQueryError(ErrCodeTooManyResults, message, nil).
		WithDetail("count", count).
		WithDetail("limit", limit)
}

func AmbiguousRuptureSet(faultSystem string, ruptureSetIDs []string) *QueryError {
	return NewQueryError(ErrCodeAmbiguousRuptureSet,
		fmt.Sprintf("fault system %s has branches with differing rupture sets: %s",
			faultSystem, strings.Join(ruptureSetIDs, ", ")), nil).
		WithDetail("fault_system", faultSystem).
		WithDetail("rupture_set_ids", ruptureSetIDs)
}

func InternalError(message string, cause error) *QueryError {
	return NewQueryError(ErrCodeInternal, message, cause)
}

func Unavailable(message string, cause error) *QueryError {
	return NewQueryError(ErrCodeUnavailable, message, cause)
}

func CatalogueFailed(message string, cause error) *QueryError {
	return NewQueryError(ErrCodeCatalogueFailed, message, cause)
}

func LookupFailed(message string, cause error) *QueryError {
	return NewQueryError(ErrCodeLookupFailed, message, cause)
}

// IsQueryError checks if an error is, or wraps, a QueryError
func IsQueryError(err error) bool {
	var qe *QueryError
	return stderrors.As(err, &qe)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var qe *QueryError
	if stderrors.As(err, &qe) {
		return qe.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}
