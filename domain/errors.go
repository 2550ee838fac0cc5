package domain

import "errors"

var (
	DatabaseError            = errors.New("database-error")
	ErrProfileNotFound       = errors.New("profile-not-found")
	ErrDuplicateUsername     = errors.New("duplicate-username")
	ErrDuplicatePlayerCode   = errors.New("duplicate-player-code")
	ErrRoomNotFound          = errors.New("room-not-found")
	ErrRoomFull              = errors.New("room-full")
	ErrRoomAlreadyStarted    = errors.New("room-already-started")
	ErrInviteNotFound        = errors.New("invite-not-found")
	ErrInviteAlreadyAnswered = errors.New("invite-already-answered")
	ErrInsufficientBalance   = errors.New("insufficient-balance")
)

var (
	TokenError               = errors.New("token-error")
	ErrInvalidSigningMethod  = errors.New("invalid-signing-method")
	ErrExpiredToken          = errors.New("expired-token")
	ErrInvalidTokenSignature = errors.New("invalid-token-signature")
	ErrCorruptedToken        = errors.New("corrupted-token")
)
