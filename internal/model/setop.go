package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/GNS-Science/solvis-query/internal/errors"
)

// SetOperation selects how several rupture-id sets are merged.
// The numeric values match the lookup service's wire representation.
type SetOperation int

const (
	SetOpUnset        SetOperation = 0
	SetOpUnion        SetOperation = 1
	SetOpIntersection SetOperation = 2
	SetOpDifference   SetOperation = 3
)

func (op SetOperation) String() string {
	switch op {
	case SetOpUnion:
		return "UNION"
	case SetOpIntersection:
		return "INTERSECTION"
	case SetOpDifference:
		return "DIFFERENCE"
	case SetOpUnset:
		return "UNSET"
	default:
		return fmt.Sprintf("SetOperation(%d)", int(op))
	}
}

// Valid reports whether op is one of the three supported operations.
func (op SetOperation) Valid() bool {
	return op == SetOpUnion || op == SetOpIntersection || op == SetOpDifference
}

// OrderIndependent is true for operations whose result ignores operand order.
func (op SetOperation) OrderIndependent() bool {
	return op == SetOpUnion || op == SetOpIntersection
}

// UnionFlag is the lookup service's boolean form of op. It is only
// meaningful for UNION and INTERSECTION.
func (op SetOperation) UnionFlag() bool {
	return op == SetOpUnion
}

// ParseSetOperation accepts the operation name in any case.
func ParseSetOperation(s string) (SetOperation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNION":
		return SetOpUnion, nil
	case "INTERSECTION":
		return SetOpIntersection, nil
	case "DIFFERENCE":
		return SetOpDifference, nil
	default:
		return SetOpUnset, errors.UnsupportedSetOperation(s)
	}
}

// SetOperationFromExternal converts the lookup service's numeric value.
func SetOperationFromExternal(v int) (SetOperation, error) {
	op := SetOperation(v)
	if !op.Valid() {
		return SetOpUnset, errors.UnsupportedSetOperation(strconv.Itoa(v))
	}
	return op, nil
}

// External returns the lookup service's numeric value.
func (op SetOperation) External() int {
	return int(op)
}

func (op SetOperation) MarshalJSON() ([]byte, error) {
	if op == SetOpUnset {
		return []byte("null"), nil
	}
	return json.Marshal(op.String())
}

// UnmarshalJSON accepts either the operation name or its numeric value.
// Anything else fails with an UnsupportedSetOperation error.
func (op *SetOperation) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*op = SetOpUnset
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseSetOperation(name)
		if err != nil {
			return err
		}
		*op = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.UnsupportedSetOperation(string(data))
	}
	parsed, err := SetOperationFromExternal(n)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}
