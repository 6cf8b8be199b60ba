package game

import (
	"crypto/rand"
	"time"
)

// Room codes are short enough to read off a screen and type on a phone, so
// the alphabet drops lookalike characters (I/L/O/0/1).
const (
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 5
)

func newRoomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[randInt(len(roomCodeAlphabet))]
	}
	return string(b)
}

func randInt(max int) int {
	b := make([]byte, 1)
	if _, err := rand.Read(b); err != nil {
		return int(time.Now().UnixNano()) % max
	}
	return int(b[0]) % max
}
