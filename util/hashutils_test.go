package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashCodeIsDeterministic(t *testing.T) {
	a := HashCode([]byte("788788"))
	b := HashCode([]byte("788788"))
	assert.Equal(t, a, b)
}

func TestHashCodeDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t, HashCode([]byte{0, 0, 0, 1}), HashCode([]byte{0, 0, 0, 2}))
}
