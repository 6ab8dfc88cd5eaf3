package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionRequest struct {
	SessionID string `json:"sessionId" validate:"omitempty,sessionid"`
	Limit     int    `json:"limit" validate:"gte=0,lte=10"`
}

func TestValidate_Valid(t *testing.T) {
	v := New()
	for _, id := range []string{"", "default", "user-42", "tenant:a.b_c"} {
		assert.Nil(t, v.Validate(&sessionRequest{SessionID: id}, LangEN), id)
	}
}

func TestValidate_SessionID(t *testing.T) {
	v := New()
	for _, id := range []string{"has space", "semi;colon", strings.Repeat("a", 129), "你好"} {
		errs := v.Validate(&sessionRequest{SessionID: id}, LangEN)
		require.NotNil(t, errs, id)
		require.Len(t, errs.Errors, 1)
		assert.Equal(t, "sessionId", errs.Errors[0].Field)
		assert.Equal(t, TagSessionID, errs.Errors[0].Tag)
		assert.Contains(t, errs.First(), "sessionId must be 1-128 characters")
	}
}

func TestValidate_Translated(t *testing.T) {
	v := New()

	errs := v.Validate(&sessionRequest{SessionID: "a b"}, LangZH)
	require.NotNil(t, errs)
	assert.Contains(t, errs.First(), "只能包含字母")

	errs = v.Validate(&sessionRequest{Limit: 11}, "fr")
	require.NotNil(t, errs)
	assert.Equal(t, "lte", errs.Errors[0].Tag)
	assert.Contains(t, errs.Error(), "validation failed: limit must be 10 or less")
}

func TestLangFromAcceptLanguage(t *testing.T) {
	assert.Equal(t, LangZH, LangFromAcceptLanguage("zh-CN,zh;q=0.9"))
	assert.Equal(t, LangEN, LangFromAcceptLanguage("en-US"))
	assert.Equal(t, LangEN, LangFromAcceptLanguage(""))
	assert.Same(t, Global(), Global())
}
