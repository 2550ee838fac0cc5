package game

import (
	"sort"
	"time"

	"quizroyale/domain"
)

type RoundPhase int

const (
	ROUND_INTRO RoundPhase = iota // Roster shown, first question pending.
	ROUND_QUESTION                // Question clock running.
	ROUND_REVEAL                  // Correct answer highlighted.
	ROUND_FINISHED
)

type botTask struct {
	participantId string
	questionIdx   int
	fireAt        time.Time
	correct       bool
}

// Round drives one 30-question game. Participants hold the live
// authoritative counters; display holds the copies opponents actually
// see, refreshed only when the round advances to the next question.
type Round struct {
	questions    []domain.Question
	idx          int
	phase        RoundPhase
	deadline     time.Time
	participants []*Participant
	display      map[string]Score
	botTasks     []botTask
	bots         *BotSimulator
}

func NewRound(questions []domain.Question, participants []*Participant, bots *BotSimulator, now time.Time) *Round {
	display := make(map[string]Score, len(participants))
	for _, p := range participants {
		display[p.Id] = Score{}
	}
	return &Round{
		questions:    questions,
		phase:        ROUND_INTRO,
		deadline:     now.Add(INTRO_DURATION),
		participants: participants,
		display:      display,
		bots:         bots,
	}
}

func (rd *Round) Current() domain.Question {
	return rd.questions[rd.idx]
}

func (rd *Round) Finished() bool {
	return rd.phase == ROUND_FINISHED
}

func (rd *Round) participant(id string) *Participant {
	for _, p := range rd.participants {
		if p.Id == id {
			return p
		}
	}
	return nil
}

// handleTick fires due bot answers, then runs at most one deadline
// transition. The question clock never ends early: even with every
// seat answered the reveal waits for the deadline.
func (rd *Round) handleTick(now time.Time) {
	rd.fireBotTasks(now)

	if rd.phase == ROUND_FINISHED || now.Before(rd.deadline) {
		return
	}

	switch rd.phase {
	case ROUND_INTRO:
		rd.startQuestion(now)
	case ROUND_QUESTION:
		rd.closeQuestion(now)
	case ROUND_REVEAL:
		rd.advance(now)
	}
}

func (rd *Round) fireBotTasks(now time.Time) {
	if len(rd.botTasks) == 0 {
		return
	}
	kept := rd.botTasks[:0]
	for _, task := range rd.botTasks {
		// Tasks scheduled for an earlier question are stale.
		if task.questionIdx != rd.idx {
			continue
		}
		if rd.phase != ROUND_QUESTION || task.fireAt.After(now) {
			kept = append(kept, task)
			continue
		}
		p := rd.participant(task.participantId)
		if p == nil || p.HasAnswered || p.Surrendered {
			continue
		}
		p.HasAnswered = true
		if task.correct {
			p.CurrentAnswer = rd.Current().CorrectIndex
			p.Correct++
		} else {
			p.CurrentAnswer = rd.wrongOption()
			p.Wrong++
		}
	}
	rd.botTasks = kept
}

func (rd *Round) wrongOption() int {
	correct := rd.Current().CorrectIndex
	if correct == 0 {
		return 1
	}
	return 0
}

func (rd *Round) startQuestion(now time.Time) {
	rd.phase = ROUND_QUESTION
	rd.deadline = now.Add(QUESTION_DURATION)

	for _, p := range rd.participants {
		p.HasAnswered = false
		p.CurrentAnswer = -1
	}

	for _, p := range rd.participants {
		if !p.IsBot || p.Surrendered {
			continue
		}
		correct, delay := rd.bots.SimulateAnswer(rd.idx + 1)
		rd.botTasks = append(rd.botTasks, botTask{
			participantId: p.Id,
			questionIdx:   rd.idx,
			fireAt:        now.Add(delay),
			correct:       correct,
		})
	}
}

// closeQuestion ends the clock. Unanswered seats count as wrong.
func (rd *Round) closeQuestion(now time.Time) {
	for _, p := range rd.participants {
		if p.Surrendered || p.HasAnswered {
			continue
		}
		p.HasAnswered = true
		p.Wrong++
	}
	rd.phase = ROUND_REVEAL
	rd.deadline = now.Add(REVEAL_DURATION)
}

// advance refreshes the lagged display scores and moves to the next
// question, or ends the round after the last one.
func (rd *Round) advance(now time.Time) {
	display := make(map[string]Score, len(rd.participants))
	for _, p := range rd.participants {
		display[p.Id] = Score{Correct: p.Correct, Wrong: p.Wrong}
	}
	rd.display = display

	rd.idx++
	if rd.idx >= len(rd.questions) {
		rd.phase = ROUND_FINISHED
		return
	}
	rd.startQuestion(now)
}

// HandleAnswer applies one human answer. Late, duplicate and
// out-of-range submissions are dropped.
func (rd *Round) HandleAnswer(userId string, questionNum, option int, now time.Time) bool {
	if rd.phase != ROUND_QUESTION || questionNum != rd.idx+1 {
		return false
	}
	if option < 0 || option >= len(rd.Current().Options) {
		return false
	}
	if now.After(rd.deadline) {
		return false
	}
	p := rd.participant(userId)
	if p == nil || p.IsBot || p.HasAnswered || p.Surrendered {
		return false
	}
	p.HasAnswered = true
	p.CurrentAnswer = option
	if option == rd.Current().CorrectIndex {
		p.Correct++
	} else {
		p.Wrong++
	}
	return true
}

// HandleSurrender takes a participant out of the running. Their
// counters freeze and pending bot work for them is dropped.
func (rd *Round) HandleSurrender(userId string) *Participant {
	p := rd.participant(userId)
	if p == nil || p.Surrendered {
		return nil
	}
	p.Surrendered = true

	kept := rd.botTasks[:0]
	for _, task := range rd.botTasks {
		if task.participantId != userId {
			kept = append(kept, task)
		}
	}
	rd.botTasks = kept
	return p
}

// AllHumansOut reports whether every human seat has surrendered.
func (rd *Round) AllHumansOut() bool {
	for _, p := range rd.participants {
		if !p.IsBot && !p.Surrendered {
			return false
		}
	}
	return true
}

// RankedLive orders non-surrendered participants by the authoritative
// counters: fewest wrong answers first, most correct answers second,
// seat order breaking ties.
func (rd *Round) RankedLive() []*Participant {
	ranked := make([]*Participant, 0, len(rd.participants))
	for _, p := range rd.participants {
		if !p.Surrendered {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Wrong != ranked[j].Wrong {
			return ranked[i].Wrong < ranked[j].Wrong
		}
		return ranked[i].Correct > ranked[j].Correct
	})
	return ranked
}

// RankedDisplay orders non-surrendered participants by the lagged
// display scores, same tie-breaking as RankedLive.
func (rd *Round) RankedDisplay() []*Participant {
	ranked := make([]*Participant, 0, len(rd.participants))
	for _, p := range rd.participants {
		if !p.Surrendered {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := rd.display[ranked[i].Id], rd.display[ranked[j].Id]
		if si.Wrong != sj.Wrong {
			return si.Wrong < sj.Wrong
		}
		return si.Correct > sj.Correct
	})
	return ranked
}

// DisplayScore returns the lagged score for a seat.
func (rd *Round) DisplayScore(id string) Score {
	return rd.display[id]
}

// TimeLeft is the whole seconds remaining on the current deadline.
func (rd *Round) TimeLeft(now time.Time) int {
	left := rd.deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}
