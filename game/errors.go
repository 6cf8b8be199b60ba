package game

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUnknownCommand = errors.New("unknown command")
)
