package domain

import "time"

type GameMode string

const (
	ModeBot     GameMode = "bot"
	ModeRandom  GameMode = "random"
	ModeFriends GameMode = "friends"
)

// RoomStatus is the persisted status of a room row. The in-memory
// lifecycle has more phases (ready, counting down, starting) but only
// these three ever hit the database.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

type GameResult string

const (
	ResultWin       GameResult = "win"
	ResultLoss      GameResult = "loss"
	ResultSurrender GameResult = "surrender"
)

type Profile struct {
	Id         string    `json:"id"`
	Username   string    `json:"username"`
	AvatarUrl  string    `json:"avatar_url"`
	PlayerCode string    `json:"player_code"`
	Balance    int       `json:"balance"`
	TotalWins  int       `json:"total_wins"`
	TotalGames int       `json:"total_games"`
	Level      int       `json:"level"`
	CreatedAt  time.Time `json:"created_at"`
}

type Question struct {
	Id           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Category     string   `json:"category"`
	Number       int      `json:"number"` // 1-based ordinal, drives difficulty tier
}

type Room struct {
	Id        string     `json:"id"`
	HostId    string     `json:"host_id"`
	Mode      GameMode   `json:"mode"`
	Status    RoomStatus `json:"status"`
	Stake     int        `json:"stake"`
	Questions []Question `json:"questions,omitempty"` // attached once, on start
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

type Invite struct {
	Id           string       `json:"id"`
	RoomId       string       `json:"room_id"`
	FromUserId   string       `json:"from_user_id"`
	ToUserId     string       `json:"to_user_id"`
	Status       InviteStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	FromUsername string       `json:"from_username,omitempty"`
	FromAvatar   string       `json:"from_avatar,omitempty"`
	Stake        int          `json:"stake"`
}

// HistoryRecord is an append-only settlement receipt. Earnings stores
// the net result (payout minus stake), so a plain loss reads -stake.
type HistoryRecord struct {
	Id           string     `json:"id"`
	UserId       string     `json:"user_id"`
	RoomId       string     `json:"room_id"`
	Mode         GameMode   `json:"mode"`
	Result       GameResult `json:"result"`
	Correct      int        `json:"correct_answers"`
	Wrong        int        `json:"wrong_answers"`
	TotalPlayers int        `json:"total_players"`
	Stake        int        `json:"bet_amount"`
	Earnings     int        `json:"earnings"`
	PlayedAt     time.Time  `json:"played_at"`
}
