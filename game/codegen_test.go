package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRoomCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := newRoomCode()
		assert.Len(t, code, roomCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(roomCodeAlphabet, r),
				"code %q contains %q outside the alphabet", code, r)
		}
	}
}
