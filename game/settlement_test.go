package game

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"quizroyale/domain"
)

func TestSettler_WinnerTakesBank(t *testing.T) {
	t.Parallel()
	profiles := &MockProfileStore{}
	history := &MockHistoryStore{}
	s := NewSettler(profiles, history)

	profiles.On("CreditWinnings", mock.Anything, "alice", 50).Return(nil).Once()
	profiles.On("BumpStats", mock.Anything, "alice", true).Return(nil).Once()
	history.On("AppendHistory", mock.Anything, mock.MatchedBy(func(rec domain.HistoryRecord) bool {
		return rec.UserId == "alice" &&
			rec.Result == domain.ResultWin &&
			rec.Stake == 10 &&
			rec.Earnings == 40 && // bank minus own stake
			rec.TotalPlayers == 5
	})).Return(nil).Once()

	err := s.Settle(context.Background(), Tally{
		UserId:       "alice",
		RoomId:       "room-1",
		Mode:         domain.ModeRandom,
		Result:       domain.ResultWin,
		Correct:      20,
		Wrong:        10,
		TotalPlayers: 5,
		Stake:        10,
	})
	assert.NoError(t, err)
	profiles.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestSettler_LossAndSurrenderPayNothing(t *testing.T) {
	t.Parallel()
	for _, result := range []domain.GameResult{domain.ResultLoss, domain.ResultSurrender} {
		profiles := &MockProfileStore{}
		history := &MockHistoryStore{}
		s := NewSettler(profiles, history)

		profiles.On("CreditWinnings", mock.Anything, "bob", 0).Return(nil).Once()
		profiles.On("BumpStats", mock.Anything, "bob", false).Return(nil).Once()
		history.On("AppendHistory", mock.Anything, mock.MatchedBy(func(rec domain.HistoryRecord) bool {
			return rec.Result == result && rec.Earnings == -5
		})).Return(nil).Once()

		err := s.Settle(context.Background(), Tally{
			UserId:       "bob",
			RoomId:       "room-1",
			Mode:         domain.ModeFriends,
			Result:       result,
			TotalPlayers: 3,
			Stake:        5,
		})
		assert.NoError(t, err)
		profiles.AssertExpectations(t)
		history.AssertExpectations(t)
	}
}

func TestSettler_BotGamesMoveNoMoney(t *testing.T) {
	t.Parallel()
	profiles := &MockProfileStore{}
	history := &MockHistoryStore{}
	s := NewSettler(profiles, history)

	// zero stake means zero bank even for a win
	profiles.On("CreditWinnings", mock.Anything, "alice", 0).Return(nil).Once()
	profiles.On("BumpStats", mock.Anything, "alice", true).Return(nil).Once()
	history.On("AppendHistory", mock.Anything, mock.MatchedBy(func(rec domain.HistoryRecord) bool {
		return rec.Mode == domain.ModeBot && rec.Earnings == 0 && rec.Stake == 0
	})).Return(nil).Once()

	err := s.Settle(context.Background(), Tally{
		UserId:       "alice",
		RoomId:       "room-solo",
		Mode:         domain.ModeBot,
		Result:       domain.ResultWin,
		TotalPlayers: 8,
		Stake:        0,
	})
	assert.NoError(t, err)
	profiles.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestSettler_StatsStillWrittenWhenCreditFails(t *testing.T) {
	t.Parallel()
	profiles := &MockProfileStore{}
	history := &MockHistoryStore{}
	s := NewSettler(profiles, history)

	boom := errors.New("connection reset")
	profiles.On("CreditWinnings", mock.Anything, "alice", 20).Return(boom).Once()
	profiles.On("BumpStats", mock.Anything, "alice", true).Return(nil).Once()
	history.On("AppendHistory", mock.Anything, mock.Anything).Return(nil).Once()

	err := s.Settle(context.Background(), Tally{
		UserId:       "alice",
		RoomId:       "room-1",
		Mode:         domain.ModeRandom,
		Result:       domain.ResultWin,
		TotalPlayers: 2,
		Stake:        10,
	})
	assert.ErrorIs(t, err, boom)
	profiles.AssertExpectations(t)
	history.AssertExpectations(t)
}
