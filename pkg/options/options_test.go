package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, "", Join())
	assert.Equal(t, "chat.", Join("chat"))
	assert.Equal(t, "assistant.chat.", Join("assistant", "chat"))
}
