package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var botNames = []string{
	"Alex", "Maria", "Ivan", "Elena", "Dmitry", "Anna",
	"Sergey", "Olga", "Nikolay", "Tatiana", "Pavel", "Julia",
}

const MIN_BOTS = 5
const EXTRA_BOTS = 5 // up to this many added on top of MIN_BOTS

// BotSimulator fabricates opponents for solo rooms and decides how
// fast and how well they answer. The rng is injected so tests can
// seed it; one simulator serves every room goroutine, so all rng
// access goes through the mutex.
type BotSimulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewBotSimulator(rng *rand.Rand) *BotSimulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &BotSimulator{rng: rng}
}

// GenerateBots samples a bot roster without repeating names. Count is
// capped to the name pool size.
func (b *BotSimulator) GenerateBots(count int) []*Participant {
	if count > len(botNames) {
		count = len(botNames)
	}
	seed := time.Now().UnixMilli()
	b.mu.Lock()
	perm := b.rng.Perm(len(botNames))
	b.mu.Unlock()

	bots := make([]*Participant, 0, count)
	for i := 0; i < count; i++ {
		name := botNames[perm[i]]
		bots = append(bots, &Participant{
			Id:            fmt.Sprintf("bot-%d-%d", i, seed),
			Username:      name,
			AvatarUrl:     fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s%d", name, seed),
			CurrentAnswer: -1,
			IsBot:         true,
			Connected:     true,
		})
	}
	return bots
}

// RosterSize picks how many bots join a solo room.
func (b *BotSimulator) RosterSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return MIN_BOTS + b.rng.Intn(EXTRA_BOTS)
}

// SimulateAnswer rolls one bot answer for the given 1-based question
// number. Bots get weaker as the round progresses, with a small jitter
// on the hit chance. The returned delay always fits the question clock.
func (b *BotSimulator) SimulateAnswer(questionNum int) (correct bool, delay time.Duration) {
	var chance float64
	switch {
	case questionNum <= 5:
		chance = 0.9
	case questionNum <= 15:
		chance = 0.7
	case questionNum <= 25:
		chance = 0.5
	default:
		chance = 0.3
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	chance += (b.rng.Float64() - 0.5) * 0.2

	correct = b.rng.Float64() < chance
	delay = time.Second + time.Duration(b.rng.Float64()*6*float64(time.Second))
	return correct, delay
}
