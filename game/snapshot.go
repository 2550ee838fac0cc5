package game

import "quizroyale/domain"

// Server-to-client frames are JSON snapshots of the whole room. The
// client re-renders from each frame instead of patching deltas, so a
// dropped frame costs nothing.

type PlayerSnapshot struct {
	Id          string `json:"id"`
	Username    string `json:"username"`
	AvatarUrl   string `json:"avatar_url"`
	Correct     int    `json:"correct_answers"`
	Wrong       int    `json:"wrong_answers"`
	HasAnswered bool   `json:"has_answered"`
	IsBot       bool   `json:"is_bot"`
	Surrendered bool   `json:"has_surrendered"`
	Connected   bool   `json:"is_connected"`
	Rank        int    `json:"rank,omitempty"` // 0 for surrendered seats
}

type QuestionSnapshot struct {
	Number       int      `json:"number"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	Category     string   `json:"category"`
	CorrectIndex int      `json:"correct_index"` // -1 until the reveal
}

type ResultSnapshot struct {
	Rank      int    `json:"rank"`
	Id        string `json:"id"`
	Username  string `json:"username"`
	AvatarUrl string `json:"avatar_url"`
	Correct   int    `json:"correct_answers"`
	Wrong     int    `json:"wrong_answers"`
	IsBot     bool   `json:"is_bot"`
}

type RoomSnapshot struct {
	RoomId         string            `json:"room_id"`
	Mode           domain.GameMode   `json:"mode"`
	Stake          int               `json:"stake"`
	Phase          string            `json:"phase"`
	Countdown      int               `json:"countdown,omitempty"` // seconds, counting_down only
	Players        []PlayerSnapshot  `json:"players"`
	Question       *QuestionSnapshot `json:"question,omitempty"`
	QuestionNumber int               `json:"question_number,omitempty"` // 1-based
	TotalQuestions int               `json:"total_questions"`
	TimeLeft       int               `json:"time_left,omitempty"`
	Bank           int               `json:"bank"`
	Results        []ResultSnapshot  `json:"results,omitempty"` // finished only
	Error          string            `json:"error,omitempty"`
}
