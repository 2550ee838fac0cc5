package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quizroyale/domain"
)

type directoryFixture struct {
	dir      *Directory
	rooms    *MockRoomStore
	profiles *MockProfileStore
	invites  *MockInviteStore
	idgen    *MockUniqueIdGenerator
}

func newDirectoryFixture() *directoryFixture {
	rooms := &MockRoomStore{}
	profiles := &MockProfileStore{}
	invites := &MockInviteStore{}
	idgen := &MockUniqueIdGenerator{}
	return &directoryFixture{
		dir:      NewDirectory(rooms, profiles, invites, idgen),
		rooms:    rooms,
		profiles: profiles,
		invites:  invites,
		idgen:    idgen,
	}
}

func TestDirectory_FindOrCreateRoom_JoinsOldestOpenRoom(t *testing.T) {
	t.Parallel()
	fx := newDirectoryFixture()
	ctx := context.Background()

	fx.profiles.On("DeductStake", ctx, "alice", 10).Return(nil).Once()
	fx.rooms.On("OldestJoinableRoom", ctx, domain.ModeRandom, MAX_PLAYERS).
		Return(domain.Room{Id: "room-old"}, nil).Once()
	fx.rooms.On("JoinRoom", ctx, "room-old", "alice").Return(nil).Once()

	roomId, err := fx.dir.FindOrCreateRoom(ctx, "alice", domain.ModeRandom)
	require.NoError(t, err)
	assert.Equal(t, "room-old", roomId)
	fx.rooms.AssertExpectations(t)
	fx.profiles.AssertExpectations(t)
}

func TestDirectory_FindOrCreateRoom_CreatesWhenNoneOpen(t *testing.T) {
	t.Parallel()
	fx := newDirectoryFixture()
	ctx := context.Background()

	fx.profiles.On("DeductStake", ctx, "alice", 10).Return(nil).Once()
	fx.rooms.On("OldestJoinableRoom", ctx, domain.ModeRandom, MAX_PLAYERS).
		Return(domain.Room{}, domain.ErrRoomNotFound).Once()
	fx.idgen.On("Generate").Return("room-new").Once()
	fx.rooms.On("CreateRoom", ctx, mock.MatchedBy(func(room domain.Room) bool {
		return room.Id == "room-new" &&
			room.HostId == "alice" &&
			room.Mode == domain.ModeRandom &&
			room.Stake == 10 &&
			room.Status == domain.RoomWaiting
	})).Return(nil).Once()
	fx.rooms.On("JoinRoom", ctx, "room-new", "alice").Return(nil).Once()

	roomId, err := fx.dir.FindOrCreateRoom(ctx, "alice", domain.ModeRandom)
	require.NoError(t, err)
	assert.Equal(t, "room-new", roomId)
	fx.rooms.AssertExpectations(t)
}

func TestDirectory_FindOrCreateRoom_BrokePlayerStopsAtStake(t *testing.T) {
	t.Parallel()
	fx := newDirectoryFixture()
	ctx := context.Background()

	fx.profiles.On("DeductStake", ctx, "alice", 10).Return(domain.ErrInsufficientBalance).Once()

	_, err := fx.dir.FindOrCreateRoom(ctx, "alice", domain.ModeRandom)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	fx.rooms.AssertNotCalled(t, "OldestJoinableRoom", mock.Anything, mock.Anything, mock.Anything)
	fx.rooms.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything)
}

func TestDirectory_CreateGameRoom_FansOutInvites(t *testing.T) {
	t.Parallel()
	fx := newDirectoryFixture()
	ctx := context.Background()

	fx.profiles.On("DeductStake", ctx, "alice", 5).Return(nil).Once()
	fx.idgen.On("Generate").Return("room-f").Once()
	fx.rooms.On("CreateRoom", ctx, mock.Anything).Return(nil).Once()
	fx.rooms.On("JoinRoom", ctx, "room-f", "alice").Return(nil).Once()
	fx.invites.On("CreateInvite", ctx, "room-f", "alice", "bob").Return("inv-1", nil).Once()
	fx.invites.On("CreateInvite", ctx, "room-f", "alice", "carol").Return("inv-2", nil).Once()

	roomId, err := fx.dir.CreateGameRoom(ctx, "alice", domain.ModeFriends, []string{"bob", "carol", "alice"})
	require.NoError(t, err)
	assert.Equal(t, "room-f", roomId)
	// the host never invites themselves
	fx.invites.AssertNumberOfCalls(t, "CreateInvite", 2)
}

func TestDirectory_StartBotSession(t *testing.T) {
	t.Parallel()
	fx := newDirectoryFixture()
	ctx := context.Background()

	fx.idgen.On("Generate").Return("room-solo").Once()
	fx.rooms.On("CreateRoom", ctx, mock.MatchedBy(func(room domain.Room) bool {
		return room.Mode == domain.ModeBot && room.Stake == 0
	})).Return(nil).Once()
	fx.rooms.On("JoinRoom", ctx, "room-solo", "alice").Return(nil).Once()

	roomId, err := fx.dir.StartBotSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "room-solo", roomId)
	// no stake taken for solo play
	fx.profiles.AssertNotCalled(t, "DeductStake", mock.Anything, mock.Anything, mock.Anything)
}

func TestDirectory_AcceptInvite(t *testing.T) {
	t.Parallel()
	fx := newDirectoryFixture()
	ctx := context.Background()

	invite := domain.Invite{Id: "inv-1", RoomId: "room-f", FromUserId: "alice", ToUserId: "bob", Status: domain.InvitePending}
	fx.invites.On("GetInvite", ctx, "inv-1").Return(invite, nil).Once()
	fx.rooms.On("GetRoom", ctx, "room-f").
		Return(domain.Room{Id: "room-f", Status: domain.RoomWaiting, Stake: 5}, nil).Once()
	fx.profiles.On("DeductStake", ctx, "bob", 5).Return(nil).Once()
	fx.invites.On("AnswerInvite", ctx, "inv-1", domain.InviteAccepted).Return(nil).Once()
	fx.rooms.On("JoinRoom", ctx, "room-f", "bob").Return(nil).Once()

	roomId, err := fx.dir.AcceptInvite(ctx, "inv-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "room-f", roomId)
	fx.invites.AssertExpectations(t)
}

func TestDirectory_AcceptInvite_Guards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("someone else's invite", func(t *testing.T) {
		fx := newDirectoryFixture()
		invite := domain.Invite{Id: "inv-1", RoomId: "room-f", ToUserId: "bob"}
		fx.invites.On("GetInvite", ctx, "inv-1").Return(invite, nil).Once()

		_, err := fx.dir.AcceptInvite(ctx, "inv-1", "mallory")
		assert.ErrorIs(t, err, ErrNotYourInvite)
	})

	t.Run("room already started", func(t *testing.T) {
		fx := newDirectoryFixture()
		invite := domain.Invite{Id: "inv-1", RoomId: "room-f", ToUserId: "bob"}
		fx.invites.On("GetInvite", ctx, "inv-1").Return(invite, nil).Once()
		fx.rooms.On("GetRoom", ctx, "room-f").
			Return(domain.Room{Id: "room-f", Status: domain.RoomPlaying}, nil).Once()

		_, err := fx.dir.AcceptInvite(ctx, "inv-1", "bob")
		assert.ErrorIs(t, err, domain.ErrRoomAlreadyStarted)
	})

	t.Run("broke invitee keeps invite pending", func(t *testing.T) {
		fx := newDirectoryFixture()
		invite := domain.Invite{Id: "inv-1", RoomId: "room-f", ToUserId: "bob"}
		fx.invites.On("GetInvite", ctx, "inv-1").Return(invite, nil).Once()
		fx.rooms.On("GetRoom", ctx, "room-f").
			Return(domain.Room{Id: "room-f", Status: domain.RoomWaiting, Stake: 5}, nil).Once()
		fx.profiles.On("DeductStake", ctx, "bob", 5).Return(domain.ErrInsufficientBalance).Once()

		_, err := fx.dir.AcceptInvite(ctx, "inv-1", "bob")
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		fx.invites.AssertNotCalled(t, "AnswerInvite", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDirectory_DeclineInvite(t *testing.T) {
	t.Parallel()
	fx := newDirectoryFixture()
	ctx := context.Background()

	invite := domain.Invite{Id: "inv-1", RoomId: "room-f", ToUserId: "bob"}
	fx.invites.On("GetInvite", ctx, "inv-1").Return(invite, nil).Once()
	fx.invites.On("AnswerInvite", ctx, "inv-1", domain.InviteDeclined).Return(nil).Once()

	assert.NoError(t, fx.dir.DeclineInvite(ctx, "inv-1", "bob"))
	fx.invites.AssertExpectations(t)
	// declining costs nothing
	fx.profiles.AssertNotCalled(t, "DeductStake", mock.Anything, mock.Anything, mock.Anything)
}
