package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQueryError_ToGRPCStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *QueryError
		expected codes.Code
	}{
		{"invalid argument", InvalidArgument("bad", nil), codes.InvalidArgument},
		{"invalid fault name", InvalidFaultName([]string{"Nope"}), codes.InvalidArgument},
		{"unsupported op", UnsupportedSetOperation("XOR"), codes.InvalidArgument},
		{"invalid cursor", InvalidCursor("zzz", nil), codes.InvalidArgument},
		{"unknown model", UnknownModel("M1"), codes.NotFound},
		{"unknown fault system", UnknownFaultSystem("M1", "PUY"), codes.NotFound},
		{"unknown location", UnknownLocation("XXX"), codes.NotFound},
		{"empty result", EmptyResult("No fault sections satisfy the filter."), codes.NotFound},
		{"too many results", TooManyResults("too many", 10001, 10000), codes.OutOfRange},
		{"ambiguous rupture set", AmbiguousRuptureSet("CRU", []string{"a", "b"}), codes.FailedPrecondition},
		{"lookup failed", LookupFailed("down", nil), codes.Unavailable},
		{"internal", InternalError("boom", nil), codes.Internal},
		{"catalogue failed", CatalogueFailed("corrupt", nil), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.err.ToGRPCStatus()
			assert.Equal(t, tt.expected, st.Code())
			assert.Equal(t, tt.err.Error(), st.Message())
		})
	}
}

func TestQueryError_StatusFromError(t *testing.T) {
	err := fmt.Errorf("resolve: %w", EmptyResult("No fault sections satisfy the filter."))

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Contains(t, st.Message(), "No fault sections satisfy the filter.")
}

func TestQueryError_ErrorAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := LookupFailed("lookup query failed", cause)

	assert.Equal(t, "lookup query failed: connection refused", err.Error())
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, "Nope", InvalidFaultName([]string{"Nope"}).Details["fault_names"].([]string)[0])
}

func TestGetCode(t *testing.T) {
	wrapped := fmt.Errorf("query: %w", TooManyResults("too many", 2, 1))

	assert.Equal(t, ErrCodeTooManyResults, GetCode(wrapped))
	assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("plain")))
	assert.True(t, IsQueryError(wrapped))
	assert.False(t, IsQueryError(fmt.Errorf("plain")))
	assert.True(t, HasCode(wrapped, ErrCodeTooManyResults))
	assert.False(t, HasCode(nil, ErrCodeTooManyResults))
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "EMPTY_RESULT", ErrCodeEmptyResult.String())
	assert.Equal(t, "AMBIGUOUS_RUPTURE_SET", ErrCodeAmbiguousRuptureSet.String())
	assert.Equal(t, "CODE_42", ErrorCode(42).String())
}
