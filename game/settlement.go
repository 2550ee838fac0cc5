package game

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"quizroyale/domain"
)

// Tally is everything settlement needs to know about one human
// participant's finished game.
type Tally struct {
	UserId       string
	RoomId       string
	Mode         domain.GameMode
	Result       domain.GameResult
	Correct      int
	Wrong        int
	TotalPlayers int // roster size at start, bots and surrenders included
	Stake        int
}

// Settler writes the money, stats and history consequences of a
// finished game. Solo games against bots never move money: the stake
// there is zero and so is the bank.
type Settler struct {
	profiles ProfileStore
	history  HistoryStore
}

func NewSettler(profiles ProfileStore, history HistoryStore) *Settler {
	return &Settler{profiles: profiles, history: history}
}

func (s *Settler) Settle(ctx context.Context, t Tally) error {
	bank := t.Stake * t.TotalPlayers

	earnings := 0
	if t.Result == domain.ResultWin {
		earnings = bank
	}

	var errs []error

	if err := s.profiles.CreditWinnings(ctx, t.UserId, earnings); err != nil {
		errs = append(errs, err)
	}
	if err := s.profiles.BumpStats(ctx, t.UserId, t.Result == domain.ResultWin); err != nil {
		errs = append(errs, err)
	}

	rec := domain.HistoryRecord{
		UserId:       t.UserId,
		RoomId:       t.RoomId,
		Mode:         t.Mode,
		Result:       t.Result,
		Correct:      t.Correct,
		Wrong:        t.Wrong,
		TotalPlayers: t.TotalPlayers,
		Stake:        t.Stake,
		Earnings:     earnings - t.Stake,
	}
	if err := s.history.AppendHistory(ctx, rec); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		log.Error().
			Str("user", t.UserId).
			Str("room", t.RoomId).
			Errs("errors", errs).
			Msg("settlement incomplete")
		return errors.Join(errs...)
	}
	return nil
}
