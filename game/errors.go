package game

import "errors"

var (
	ErrRoomNotRunning = errors.New("room-not-running")
	ErrNotYourInvite  = errors.New("not-your-invite")
	ErrUnknownMode    = errors.New("unknown-mode")
	ErrRoomClosed     = errors.New("room-closed")
)
