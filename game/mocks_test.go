package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"quizroyale/domain"
)

// --- RoomStore ---

type MockRoomStore struct {
	mock.Mock
}

func (m *MockRoomStore) CreateRoom(ctx context.Context, room domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomStore) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Room), args.Error(1)
}

func (m *MockRoomStore) OldestJoinableRoom(ctx context.Context, mode domain.GameMode, maxPlayers int) (domain.Room, error) {
	args := m.Called(ctx, mode, maxPlayers)
	return args.Get(0).(domain.Room), args.Error(1)
}

func (m *MockRoomStore) ClaimStart(ctx context.Context, roomId string, questions []domain.Question, startedAt time.Time) (bool, error) {
	args := m.Called(ctx, roomId, questions, startedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomStore) FinishRoom(ctx context.Context, roomId string) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}

func (m *MockRoomStore) JoinRoom(ctx context.Context, roomId, userId string) error {
	args := m.Called(ctx, roomId, userId)
	return args.Error(0)
}

func (m *MockRoomStore) LeaveRoom(ctx context.Context, roomId, userId string) error {
	args := m.Called(ctx, roomId, userId)
	return args.Error(0)
}

func (m *MockRoomStore) RoomPlayers(ctx context.Context, roomId string) ([]domain.Profile, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).([]domain.Profile), args.Error(1)
}

// --- ProfileStore ---

type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *MockProfileStore) DeductStake(ctx context.Context, userId string, amount int) error {
	args := m.Called(ctx, userId, amount)
	return args.Error(0)
}

func (m *MockProfileStore) CreditWinnings(ctx context.Context, userId string, amount int) error {
	args := m.Called(ctx, userId, amount)
	return args.Error(0)
}

func (m *MockProfileStore) BumpStats(ctx context.Context, userId string, won bool) error {
	args := m.Called(ctx, userId, won)
	return args.Error(0)
}

// --- HistoryStore ---

type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) AppendHistory(ctx context.Context, rec domain.HistoryRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// --- InviteStore ---

type MockInviteStore struct {
	mock.Mock
}

func (m *MockInviteStore) CreateInvite(ctx context.Context, roomId, fromUserId, toUserId string) (string, error) {
	args := m.Called(ctx, roomId, fromUserId, toUserId)
	return args.String(0), args.Error(1)
}

func (m *MockInviteStore) GetInvite(ctx context.Context, id string) (domain.Invite, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Invite), args.Error(1)
}

func (m *MockInviteStore) PendingInvites(ctx context.Context, userId string) ([]domain.Invite, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]domain.Invite), args.Error(1)
}

func (m *MockInviteStore) AnswerInvite(ctx context.Context, id string, status domain.InviteStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// --- QuestionSource ---

type MockQuestionSource struct {
	mock.Mock
}

func (m *MockQuestionSource) Generate(ctx context.Context, count int) ([]domain.Question, error) {
	args := m.Called(ctx, count)
	return args.Get(0).([]domain.Question), args.Error(1)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUniqueIdGenerator) Dispose(id string) {
	m.Called(id)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}

// --- ChangeFeed ---

type fakeChangeFeed struct {
	kicks chan struct{}
}

func newFakeChangeFeed() *fakeChangeFeed {
	return &fakeChangeFeed{kicks: make(chan struct{}, 1)}
}

func (f *fakeChangeFeed) SubscribeRoomPlayers(roomId string) (<-chan struct{}, func()) {
	return f.kicks, func() {}
}

func (f *fakeChangeFeed) SubscribeInvites(userId string) (<-chan struct{}, func()) {
	return f.kicks, func() {}
}

// --- Client ---

// fakeClient records everything a room sends it so tests can decode
// the snapshot stream.
type fakeClient struct {
	userId   string
	sent     [][]byte
	released bool
}

func (f *fakeClient) UserId() string { return f.userId }

func (f *fakeClient) Send(data []byte) {
	f.sent = append(f.sent, data)
}

func (f *fakeClient) CancelAndRelease() {
	f.released = true
}

func (f *fakeClient) lastSnapshot() *RoomSnapshot {
	if len(f.sent) == 0 {
		return nil
	}
	snap := &RoomSnapshot{}
	if err := json.Unmarshal(f.sent[len(f.sent)-1], snap); err != nil {
		return nil
	}
	return snap
}
