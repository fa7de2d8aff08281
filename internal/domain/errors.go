package domain

import "errors"

// Room and session errors are surfaced synchronously to the requesting
// connection only.
var (
	ErrRoomNotFound      = errors.New("room does not exist")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomIDTooLong     = errors.New("room id too long")
	ErrInvalidPassphrase = errors.New("invalid room password")
	ErrNoSpeechDetected  = errors.New("no speech detected")
)
