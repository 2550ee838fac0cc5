package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"quizroyale/domain"
)

// Directory is the storage-backed room index: it creates room rows,
// seats players into them and fans out invites. Live sessions are the
// lobby's business; the directory only touches rows.
type Directory struct {
	rooms    RoomStore
	profiles ProfileStore
	invites  InviteStore
	idgen    UniqueIdGenerator
}

func NewDirectory(rooms RoomStore, profiles ProfileStore, invites InviteStore, idgen UniqueIdGenerator) *Directory {
	return &Directory{rooms: rooms, profiles: profiles, invites: invites, idgen: idgen}
}

// FindOrCreateRoom seats the player into the oldest joinable open room
// of the mode, creating a fresh one when none exists. The stake is
// taken up front; a player who cannot cover it never reaches a seat.
func (d *Directory) FindOrCreateRoom(ctx context.Context, userId string, mode domain.GameMode) (string, error) {
	stake := StakeForMode(mode)
	if err := d.profiles.DeductStake(ctx, userId, stake); err != nil {
		return "", err
	}

	room, err := d.rooms.OldestJoinableRoom(ctx, mode, MAX_PLAYERS)
	if err == nil {
		if joinErr := d.rooms.JoinRoom(ctx, room.Id, userId); joinErr == nil {
			return room.Id, nil
		} else {
			log.Warn().Err(joinErr).Str("room", room.Id).Msg("join raced, creating fresh room")
		}
	} else if !errors.Is(err, domain.ErrRoomNotFound) {
		return "", err
	}

	return d.createAndSeat(ctx, userId, mode, stake)
}

// CreateGameRoom always opens a fresh room and invites the named
// friends into it.
func (d *Directory) CreateGameRoom(ctx context.Context, hostId string, mode domain.GameMode, invitees []string) (string, error) {
	stake := StakeForMode(mode)
	if err := d.profiles.DeductStake(ctx, hostId, stake); err != nil {
		return "", err
	}

	roomId, err := d.createAndSeat(ctx, hostId, mode, stake)
	if err != nil {
		return "", err
	}

	for _, toUserId := range invitees {
		if toUserId == hostId {
			continue
		}
		if _, err := d.invites.CreateInvite(ctx, roomId, hostId, toUserId); err != nil {
			log.Warn().Err(err).Str("room", roomId).Str("to", toUserId).Msg("invite write failed")
		}
	}
	return roomId, nil
}

// StartBotSession opens a solo room. No stake, no opponents to wait
// for.
func (d *Directory) StartBotSession(ctx context.Context, userId string) (string, error) {
	return d.createAndSeat(ctx, userId, domain.ModeBot, 0)
}

func (d *Directory) createAndSeat(ctx context.Context, hostId string, mode domain.GameMode, stake int) (string, error) {
	room := domain.Room{
		Id:        d.idgen.Generate(),
		HostId:    hostId,
		Mode:      mode,
		Status:    domain.RoomWaiting,
		Stake:     stake,
		CreatedAt: time.Now(),
	}
	if err := d.rooms.CreateRoom(ctx, room); err != nil {
		d.idgen.Dispose(room.Id)
		return "", err
	}
	if err := d.rooms.JoinRoom(ctx, room.Id, hostId); err != nil {
		return "", err
	}
	return room.Id, nil
}

func (d *Directory) RoomPlayers(ctx context.Context, roomId string) ([]domain.Profile, error) {
	return d.rooms.RoomPlayers(ctx, roomId)
}

func (d *Directory) GetRoom(ctx context.Context, roomId string) (domain.Room, error) {
	return d.rooms.GetRoom(ctx, roomId)
}

func (d *Directory) PendingInvites(ctx context.Context, userId string) ([]domain.Invite, error) {
	return d.invites.PendingInvites(ctx, userId)
}

// AcceptInvite charges the stake, marks the invite answered and seats
// the player. A player who cannot cover the stake keeps the invite
// pending.
func (d *Directory) AcceptInvite(ctx context.Context, inviteId, userId string) (string, error) {
	invite, err := d.invites.GetInvite(ctx, inviteId)
	if err != nil {
		return "", err
	}
	if invite.ToUserId != userId {
		return "", ErrNotYourInvite
	}

	room, err := d.rooms.GetRoom(ctx, invite.RoomId)
	if err != nil {
		return "", err
	}
	if room.Status != domain.RoomWaiting {
		return "", domain.ErrRoomAlreadyStarted
	}

	if err := d.profiles.DeductStake(ctx, userId, room.Stake); err != nil {
		return "", err
	}
	if err := d.invites.AnswerInvite(ctx, inviteId, domain.InviteAccepted); err != nil {
		return "", err
	}
	if err := d.rooms.JoinRoom(ctx, invite.RoomId, userId); err != nil {
		return "", err
	}
	return invite.RoomId, nil
}

func (d *Directory) DeclineInvite(ctx context.Context, inviteId, userId string) error {
	invite, err := d.invites.GetInvite(ctx, inviteId)
	if err != nil {
		return err
	}
	if invite.ToUserId != userId {
		return ErrNotYourInvite
	}
	return d.invites.AnswerInvite(ctx, inviteId, domain.InviteDeclined)
}
