package game

import (
	"context"
	"time"

	"quizroyale/domain"
)

// --- Game constants ---

const TOTAL_QUESTIONS = 30                    // Questions per round.
const QUESTION_DURATION = time.Second * 10    // Answer window per question.
const INTRO_DURATION = time.Second * 2        // Roster render delay before the first question.
const REVEAL_DURATION = time.Second * 2       // How long the correct answer stays highlighted.
const COUNTDOWN_DURATION = time.Second * 10   // Pre-game countdown once enough players joined.
const FORCE_START_DURATION = time.Second * 3  // Countdown remainder after a host force-start.
const MIN_PLAYERS = 2                         // Minimum members before a room may start.
const MAX_PLAYERS = 10                        // Maximum members per room.
const STARTING_BALANCE = 100                  // Balance granted to a fresh profile.
const WAITING_TIMEOUT = time.Hour             // Idle waiting rooms are reaped after this.
const ROSTER_POLL_INTERVAL = time.Second * 2  // Pre-game roster refresh period.

// StakeForMode returns the fixed stake of a game mode.
func StakeForMode(mode domain.GameMode) int {
	switch mode {
	case domain.ModeRandom:
		return 10
	case domain.ModeFriends:
		return 5
	default:
		return 0
	}
}

// Participant is one seat in a round. Correct/Wrong are the live
// authoritative counters; the lagged counters shown during play live in
// the round's display map, never here.
type Participant struct {
	Id            string
	Username      string
	AvatarUrl     string
	Correct       int
	Wrong         int
	CurrentAnswer int // -1 while unanswered
	HasAnswered   bool
	IsBot         bool
	Surrendered   bool
	Connected     bool
}

// Score is a frozen correct/wrong pair used for the lagged display.
type Score struct {
	Correct int
	Wrong   int
}

// --- Collaborator contracts ---

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	DeductStake(ctx context.Context, userId string, amount int) error
	CreditWinnings(ctx context.Context, userId string, amount int) error
	BumpStats(ctx context.Context, userId string, won bool) error
}

type RoomStore interface {
	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, id string) (domain.Room, error)
	OldestJoinableRoom(ctx context.Context, mode domain.GameMode, maxPlayers int) (domain.Room, error)
	ClaimStart(ctx context.Context, roomId string, questions []domain.Question, startedAt time.Time) (bool, error)
	FinishRoom(ctx context.Context, roomId string) error
	JoinRoom(ctx context.Context, roomId, userId string) error
	LeaveRoom(ctx context.Context, roomId, userId string) error
	RoomPlayers(ctx context.Context, roomId string) ([]domain.Profile, error)
}

type InviteStore interface {
	CreateInvite(ctx context.Context, roomId, fromUserId, toUserId string) (string, error)
	GetInvite(ctx context.Context, id string) (domain.Invite, error)
	PendingInvites(ctx context.Context, userId string) ([]domain.Invite, error)
	AnswerInvite(ctx context.Context, id string, status domain.InviteStatus) error
}

type HistoryStore interface {
	AppendHistory(ctx context.Context, rec domain.HistoryRecord) error
}

type QuestionSource interface {
	Generate(ctx context.Context, count int) ([]domain.Question, error)
}

// ChangeFeed delivers at-least-once "state changed, re-fetch" kicks for
// one storage key. Kicks carry no payload; consumers re-fetch.
type ChangeFeed interface {
	SubscribeRoomPlayers(roomId string) (<-chan struct{}, func())
	SubscribeInvites(userId string) (<-chan struct{}, func())
}

type UniqueIdGenerator interface {
	Generate() string
	Dispose(id string)
}

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}

// Client is one connected viewer of a room: a transport session bound
// to a user id.
type Client interface {
	UserId() string
	Send(data []byte)
	CancelAndRelease()
}

type Lobby interface {
	RemoveRoom(roomId string)
}

type roomJoinRequest struct {
	roomId  string
	client  Client
	errChan chan error
}

type clientEnvelope struct {
	packet ClientPacket
	from   Client
}

// ClientPacket is the JSON action frame read from a websocket client.
type ClientPacket struct {
	Type     string `json:"type"`     // "answer" | "start" | "surrender" | "leave"
	Question int    `json:"question"` // 1-based question number, answer only
	Option   int    `json:"option"`   // 0..3, answer only
}

type dataSendTask struct {
	to   Client
	data []byte
}
