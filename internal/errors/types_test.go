package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagesmithError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *PagesmithError
		want string
	}{
		{
			name: "code and message",
			err:  NewValidationError(ErrCodeMissingTarget, "delete requires a key or a path"),
			want: "[ERR_MISSING_TARGET] delete requires a key or a path",
		},
		{
			name: "with page and cause",
			err:  ErrMalformedDocument("about.html", errors.New("unexpected EOF")),
			want: "[ERR_MALFORMED_DOCUMENT] page:about.html document cannot be parsed: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("save: %w", ErrMissingTarget("delete"))
	assert.True(t, IsValidation(wrapped))
	assert.True(t, IsRecoverable(wrapped))
	assert.False(t, IsMalformed(wrapped))

	assert.True(t, IsMalformed(ErrMalformedDocument("x.html", nil)))
	assert.True(t, IsNotFound(ErrPageNotFound("x.html")))
	assert.True(t, IsSecurityError(ErrPathTraversal("../etc")))
	assert.False(t, IsSecurityError(errors.New("plain")))

	published := NewPublishError("a.html", ErrPageNotFound("a.html"))
	assert.True(t, IsNotFound(published))
	assert.False(t, IsMalformed(published))
}

func TestIsComparesTypeAndCode(t *testing.T) {
	a := ErrPageNotFound("a.html")
	b := ErrPageNotFound("b.html")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, ErrInvalidName("x")))

	cause := errors.New("disk full")
	ioErr := NewIOError(ErrCodeStorage, "write failed", cause)
	assert.ErrorIs(t, ioErr, cause)
	assert.Equal(t, "write", ioErr.WithContext("op", "write").Context["op"])
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodePublishFailed, CodeOf(NewPublishError("a.html", ErrPageNotFound("a.html"))))
	assert.Equal(t, ErrCodePageNotFound, CodeOf(fmt.Errorf("read: %w", ErrPageNotFound("a.html"))))
	assert.Equal(t, ErrCodeInternalError, CodeOf(fmt.Errorf("plain")))
}
