package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(ErrConnection, "fetch chunk 3")
	assert.EqualError(t, err, "fetch chunk 3: connection failed")
	assert.ErrorIs(t, err, ErrConnection)

	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestAppErrorUnwrap(t *testing.T) {
	appErr := NewAppError(ErrAuthExpired, "please reconnect your mailbox", CodeAuthExpired)
	assert.EqualError(t, appErr, "please reconnect your mailbox")
	assert.ErrorIs(t, appErr, ErrAuthExpired)
	assert.True(t, IsAuthExpired(appErr))

	bare := &AppError{Err: ErrInternal}
	assert.EqualError(t, bare, "internal server error")
}

func TestIsFatalForTask(t *testing.T) {
	assert.True(t, IsFatalForTask(ErrAuthExpired))
	assert.True(t, IsFatalForTask(ErrScopeMissing))
	assert.True(t, IsFatalForTask(Wrap(ErrStorageWrite, "flush")))

	assert.False(t, IsFatalForTask(ErrConnection), "connection failures degrade to the folder")
	assert.False(t, IsFatalForTask(ErrParse))
	assert.False(t, IsFatalForTask(ErrDNSLookup))
	assert.False(t, IsFatalForTask(stderrors.New("anything else")))
}

func TestIsNotFoundCoversDomainVariants(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(ErrTaskNotFound))
	assert.True(t, IsNotFound(ErrSourceNotFound))
	assert.False(t, IsNotFound(ErrConnection))
}

func TestGetErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{ErrTaskNotFound, CodeNotFound},
		{ErrInvalidInput, CodeInvalidInput},
		{ErrConnection, CodeConnection},
		{ErrAuthExpired, CodeAuthExpired},
		{ErrScopeMissing, CodeScopeMissing},
		{ErrStorageWrite, CodeStorageWrite},
		{fmt.Errorf("wrapped: %w", ErrDNSLookup), CodeDNSLookup},
		{stderrors.New("unknown"), CodeInternalError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, GetErrorCode(tc.err), tc.err.Error())
	}
}
