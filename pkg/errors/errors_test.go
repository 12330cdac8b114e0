// Package errors_test covers AppError, its factories and the chain helpers.
package errors_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.ErrCodeInternal, "unexpected failure"},
		{"invalid parameter", errors.ErrCodeInvalidParameter, "resolution must be positive"},
		{"empty dataset", errors.ErrCodeEmptyDataset, "no points"},
		{"rate limit", errors.ErrCodeTooManyRequests, "too many requests"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.Contains(t, ae.Stack, "errors_test.go")
		})
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	t.Parallel()

	ae := errors.Newf(errors.ErrCodeInvalidParameter, "resolution %d exceeds %d", 900, 500)
	assert.Equal(t, "resolution 900 exceeds 500", ae.Message)
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeInternal, "should not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("root DB error")
	wrapped := errors.Wrap(root, errors.ErrCodeDatabaseError, "connection failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.ErrCodeDatabaseError, wrapped.Code)
	assert.Equal(t, root, wrapped.Cause)
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
}

func TestWrap_PreservesOriginalCodeWhenCodeUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeRunNotFound, "not found")
	outer := errors.Wrap(inner, errors.CodeUnknown, "adding context")

	assert.Equal(t, errors.ErrCodeRunNotFound, outer.Code)
}

func TestWrap_OverridesCodeWhenExplicit(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeRunNotFound, "not found")
	outer := errors.Wrap(inner, errors.ErrCodeInternal, "unexpected state")

	assert.Equal(t, errors.ErrCodeInternal, outer.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Error()
// ─────────────────────────────────────────────────────────────────────────────

func TestError_Format(t *testing.T) {
	t.Parallel()

	plain := errors.New(errors.ErrCodeInvalidParameter, "bad resolution")
	assert.Equal(t, "[PHO_001] bad resolution", plain.Error())

	detailed := plain.WithDetail("resolution=0")
	assert.Equal(t, "[PHO_001] bad resolution: resolution=0", detailed.Error())
	assert.Empty(t, plain.Detail, "WithDetail must not mutate the original")
}

func TestError_EmptyMessageDoesNotPanic(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeOK, "")
	assert.NotPanics(t, func() { _ = ae.Error() })
}

func TestWithDetail_NilReceiverReturnsNil(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

func TestWithCause_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	original := errors.New(errors.ErrCodeInternal, "failure")
	cause := stderrors.New("cause")
	withCause := original.WithCause(cause)

	assert.Nil(t, original.Cause)
	assert.Equal(t, cause, stderrors.Unwrap(withCause))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain helpers
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode(t *testing.T) {
	t.Parallel()

	level0 := errors.New(errors.ErrCodeEmptyDataset, "no points")
	level1 := errors.Wrap(level0, errors.ErrCodeValidation, "statistics failed")
	level2 := fmt.Errorf("handler: %w", errors.Wrap(level1, errors.ErrCodeInternal, "calculation failed"))

	assert.True(t, errors.IsCode(level2, errors.ErrCodeEmptyDataset))
	assert.True(t, errors.IsCode(level2, errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(level2, errors.ErrCodeInternal))
	assert.False(t, errors.IsCode(level2, errors.ErrCodeTimeout))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeInternal))
	assert.False(t, errors.IsCode(stderrors.New("plain"), errors.ErrCodeInternal))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"generic", errors.NotFound("not found"), true},
		{"run", errors.New(errors.ErrCodeRunNotFound, "run not found"), true},
		{"fixture model", errors.New(errors.ErrCodeFixtureModelNotFound, "model not found"), true},
		{"internal", errors.Internal("internal error"), false},
		{"wrapped", errors.Wrap(errors.NotFound("not found"), errors.ErrCodeInternal, "wrapped"), true},
		{"plain", fmt.Errorf("plain error"), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, errors.IsNotFound(tc.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeInvalidParameter, "bad")
	outer := errors.Wrap(inner, errors.ErrCodeInternal, "service failed")

	assert.Equal(t, errors.ErrCodeInternal, errors.GetCode(outer))
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("x")))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(fmt.Errorf("ctx: %w", stderrors.New("cause"))))
}

func TestConvenienceFactories_ReturnCorrectCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      *errors.AppError
		wantCode errors.ErrorCode
	}{
		{"NotFound", errors.NotFound("not found"), errors.ErrCodeNotFound},
		{"InvalidParam", errors.InvalidParam("bad input"), errors.ErrCodeBadRequest},
		{"Internal", errors.Internal("server error"), errors.ErrCodeInternal},
		{"Conflict", errors.Conflict("duplicate resource"), errors.ErrCodeConflict},
		{"RateLimit", errors.RateLimit("slow down"), errors.ErrCodeTooManyRequests},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.NotNil(t, tc.err)
			assert.Equal(t, tc.wantCode, tc.err.Code)
			assert.True(t, strings.HasPrefix(tc.err.Error(), "["+string(tc.wantCode)+"]"))
		})
	}
}

func TestStdlib_ErrorsAs_ExtractsAppError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", errors.New(errors.ErrCodeCalculationCancelled, "cancelled"))

	var ae *errors.AppError
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, errors.ErrCodeCalculationCancelled, ae.Code)
}
