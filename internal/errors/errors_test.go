package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := Validation("Please select a CSV file")
	wrapped := Wrap(base, "select file")

	assert.True(t, IsValidation(wrapped))
	assert.Equal(t, "select file", Message(wrapped))
	assert.ErrorIs(t, wrapped, base)
}

func TestWrapPlainError(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))

	err := Wrap(fmt.Errorf("boom"), "load config")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.Equal(t, "load config: boom", err.Error())
}

func TestRequestCarriesStatus(t *testing.T) {
	err := Request("Failed to analyze file", 502, nil)
	wrapped := fmt.Errorf("submit: %w", err)

	assert.True(t, IsRequest(wrapped))
	assert.False(t, IsValidation(wrapped))

	var appErr *AppError
	assert.True(t, stderrors.As(wrapped, &appErr))
	assert.Equal(t, 502, appErr.Status)
}

func TestGetCodeUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
	assert.False(t, IsAppError(fmt.Errorf("plain")))
	assert.Equal(t, "", Message(nil))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeNoAnalysis, fmt.Errorf("missing"))
	assert.True(t, HasCode(err, CodeNoAnalysis))
	assert.Nil(t, WithCode(CodeNoAnalysis, nil))
}
