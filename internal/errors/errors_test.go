package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestBurrowError_Error(t *testing.T) {
	err := New(ErrCategoryConflict, CodeTableConflict, "table number in use")
	expected := "[CONFLICT:TableConflict] table number in use"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBurrowError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("disk I/O error")
	err := Wrap(ErrCategoryStorage, CodePersistFailed, "commit failed", cause)
	expected := "[STORAGE:PersistFailed] commit failed: disk I/O error"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBurrowError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryInternal, CodeUnexpected, "unexpected", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestBurrowError_Is(t *testing.T) {
	err1 := New(ErrCategoryConflict, CodeTableConflict, "first")
	err2 := New(ErrCategoryConflict, CodeTableConflict, "second")
	err3 := New(ErrCategoryConflict, CodeTooManyTables, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryConflict, CodeWriteConflict, true},
		{ErrCategoryConflict, CodeTableConflict, false},
		{ErrCategoryConflict, CodeTooManyTables, false},
		{ErrCategoryInvalidState, CodeTableDeleting, false},
		{ErrCategoryNotFound, CodeTableNotFound, false},
		{ErrCategoryArithmetic, CodeCountOverflow, false},
		{ErrCategoryStorage, CodePersistFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestIsUserFacing(t *testing.T) {
	if !IsUserFacing(New(ErrCategoryConflict, CodeTableConflict, "conflict")) {
		t.Error("conflict errors should be user facing")
	}
	if IsUserFacing(New(ErrCategoryNotFound, CodeTableNotFound, "missing")) {
		t.Error("not-found errors should not be user facing")
	}
	if IsUserFacing(fmt.Errorf("plain error")) {
		t.Error("plain errors should not be user facing")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := New(ErrCategoryArithmetic, CodeCountUnderflow, "count underflow")
	if GetCategory(err) != ErrCategoryArithmetic {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryArithmetic)
	}
	if GetCode(err) != CodeCountUnderflow {
		t.Errorf("got %q, want %q", GetCode(err), CodeCountUnderflow)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-BurrowError should return empty category")
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-BurrowError should return empty code")
	}
}

func TestGetCode_Wrapped(t *testing.T) {
	inner := New(ErrCategoryConflict, CodeTableConflict, "conflict")
	wrapped := fmt.Errorf("activating table: %w", inner)
	if GetCode(wrapped) != CodeTableConflict {
		t.Error("GetCode should see through fmt.Errorf wrapping")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryConflict, CodeTableConflict, "conflict")
	detailed := err.WithDetails(map[string]interface{}{"table": "messages"})

	if detailed.Details["table"] != "messages" {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	c := NewConflictError(CodeTableConflict, "number in use")
	if c.Category != ErrCategoryConflict || c.Code != CodeTableConflict {
		t.Error("NewConflictError mismatch")
	}

	s := NewInvalidStateError(CodeTableDeleting, "cannot activate")
	if s.Category != ErrCategoryInvalidState {
		t.Error("NewInvalidStateError mismatch")
	}

	n := NewNotFoundError(CodeTableNotFound, "missing metadata")
	if n.Category != ErrCategoryNotFound {
		t.Error("NewNotFoundError mismatch")
	}

	a := NewArithmeticError(CodeNumberOverflow, "number overflow")
	if a.Category != ErrCategoryArithmetic {
		t.Error("NewArithmeticError mismatch")
	}

	st := NewStorageError(CodePersistFailed, "sqlite down", cause)
	if st.Category != ErrCategoryStorage || !errors.Is(st, cause) {
		t.Error("NewStorageError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
