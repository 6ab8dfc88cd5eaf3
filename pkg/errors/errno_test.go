package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service, category, sequence int
		want                        int
	}{
		{0, 1, 1, 1001},
		{2, 4, 1, 204001},
		{21, 11, 1, 2111001},
		{90, 7, 1, 9007001},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.want), func(t *testing.T) {
			code := MakeCode(tt.service, tt.category, tt.sequence)
			assert.Equal(t, tt.want, code)

			s, c, q := ParseCode(code)
			assert.Equal(t, tt.service, s)
			assert.Equal(t, tt.category, c)
			assert.Equal(t, tt.sequence, q)
			assert.Equal(t, tt.service, GetService(code))
			assert.Equal(t, tt.category, GetCategory(code))
			assert.Equal(t, tt.sequence, GetSequence(code))
		})
	}
}

func TestErrno_WithCauseKeepsIdentity(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := ErrNetwork.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrNetwork))
	assert.False(t, stderrors.Is(err, ErrTimeout))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial tcp: refused")
	assert.Nil(t, ErrNetwork.Cause(), "WithCause must not mutate the registered value")
}

func TestErrno_WithMessage(t *testing.T) {
	err := ErrInvalidParam.WithMessagef("field %s", "sessionId")
	assert.Equal(t, "field sessionId", err.MessageEN)
	assert.Equal(t, "Invalid parameter", ErrInvalidParam.MessageEN)
	assert.Equal(t, "参数无效", err.Message("zh-CN"))
}

func TestErrno_StatusDefaults(t *testing.T) {
	e := &Errno{Code: 1}
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())
	assert.Equal(t, codes.Internal, e.GRPCStatus())
	assert.Equal(t, http.StatusGatewayTimeout, ErrTimeout.HTTPStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("answer: %w", ErrTimeout.WithCause(stderrors.New("deadline")))
	assert.Equal(t, ErrTimeout.Code, FromError(wrapped).Code)
	assert.Equal(t, ErrTimeout.Code, GetCode(wrapped))
	assert.True(t, IsCode(wrapped, ErrTimeout.Code))

	plain := FromError(stderrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, "Server error", plain.MessageEN)
	assert.Equal(t, -1, GetCode(stderrors.New("boom")))
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(&Errno{Code: ErrInternal.Code, MessageEN: "dup"})
	})
	got, ok := Lookup(ErrInternal.Code)
	require.True(t, ok)
	assert.Same(t, ErrInternal, got)
}
