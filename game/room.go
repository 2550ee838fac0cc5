package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quizroyale/domain"
)

type RoomPhase int

const (
	PHASE_WAITING RoomPhase = iota // Below minimum, seats open.
	PHASE_READY                    // Enough players, countdown about to arm.
	PHASE_COUNTING_DOWN            // Countdown running, seats still open.
	PHASE_STARTING                 // Questions being attached, roster frozen.
	PHASE_PLAYING                  // Round in progress.
	PHASE_FINISHED
)

// RoomDeps are the collaborators every room session needs.
type RoomDeps struct {
	Store   RoomStore
	Settler *Settler
	Source  QuestionSource
	Bots    *BotSimulator
	Feed    ChangeFeed
}

// Room is one live session. A single goroutine (GameLoop) owns all of
// its state; everything else talks to it through channels.
type Room struct {
	// Identity / configuration
	id     string
	mode   domain.GameMode
	stake  int
	hostId string

	// Runtime state
	phase        RoomPhase
	abandonAt    time.Time // waiting rooms are reaped past this
	countdownEnd time.Time
	lastNow      time.Time
	roster       []*Participant
	round        *Round
	bank         int
	settled      map[string]bool

	// Collaborators
	store   RoomStore
	settler *Settler
	source  QuestionSource
	bots    *BotSimulator
	feed    ChangeFeed
	parent  Lobby

	// Clients
	clients       map[string]Client
	dataSendTasks []dataSendTask

	// Communication
	inbox          chan clientEnvelope
	ticks          chan time.Time
	joinRequests   chan roomJoinRequest
	rosterUpdates  chan []domain.Profile
	clientRemovals chan Client
	done           chan struct{}
	started        chan struct{}
	closeOnce      sync.Once
	startOnce      sync.Once
}

func NewRoom(row domain.Room, players []domain.Profile, deps RoomDeps) *Room {
	now := time.Now()
	return &Room{
		id:             row.Id,
		mode:           row.Mode,
		stake:          row.Stake,
		hostId:         row.HostId,
		phase:          PHASE_WAITING,
		abandonAt:      row.CreatedAt.Add(WAITING_TIMEOUT),
		lastNow:        now,
		roster:         participantsFromProfiles(players),
		settled:        make(map[string]bool),
		store:          deps.Store,
		settler:        deps.Settler,
		source:         deps.Source,
		bots:           deps.Bots,
		feed:           deps.Feed,
		clients:        make(map[string]Client),
		inbox:          make(chan clientEnvelope, 1024),
		ticks:          make(chan time.Time, 24),
		joinRequests:   make(chan roomJoinRequest),
		rosterUpdates:  make(chan []domain.Profile, 4),
		clientRemovals: make(chan Client, 64),
		done:           make(chan struct{}),
		started:        make(chan struct{}),
	}
}

// NewBotRoom seats the host against simulated opponents. The roster is
// final from the first tick, so no watcher runs and the game starts
// without a countdown.
func NewBotRoom(row domain.Room, host domain.Profile, deps RoomDeps) *Room {
	r := NewRoom(row, []domain.Profile{host}, deps)
	r.roster = append(r.roster, deps.Bots.GenerateBots(deps.Bots.RosterSize())...)
	return r
}

func participantsFromProfiles(players []domain.Profile) []*Participant {
	roster := make([]*Participant, 0, len(players))
	for _, p := range players {
		roster = append(roster, &Participant{
			Id:            p.Id,
			Username:      p.Username,
			AvatarUrl:     p.AvatarUrl,
			CurrentAnswer: -1,
		})
	}
	return roster
}

func (r *Room) Id() string { return r.id }

func (r *Room) SetParentLobby(l Lobby) { r.parent = l }

func (r *Room) Tick(now time.Time) {
	select {
	case r.ticks <- now:
	default:
	}
}

func (r *Room) RequestJoin(jreq roomJoinRequest) {
	select {
	case r.joinRequests <- jreq:
	case <-r.done:
		jreq.errChan <- ErrRoomClosed
	}
}

func (r *Room) CloseAndRelease() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *Room) GameLoop() {
	if r.mode != domain.ModeBot {
		go r.rosterWatcher()
	}

	for {
		select {
		case <-r.done:
			// The loop owns the client map, so release happens here.
			for _, c := range r.clients {
				c.CancelAndRelease()
			}
			return
		case now := <-r.ticks:
			r.handleTick(now)
		case env := <-r.inbox:
			r.handleEnvelope(env)
		case jreq := <-r.joinRequests:
			r.handleJoinRequest(jreq)
		case players := <-r.rosterUpdates:
			r.handleRosterUpdate(players)
		case c := <-r.clientRemovals:
			r.handleClientGone(c)
		}
		r.flushSendTasks()
	}
}

// rosterWatcher keeps the pre-game roster in sync with storage. It
// re-fetches on a fixed poll and whenever the change feed kicks; the
// kick only ever means "re-fetch", it carries no payload. The watcher
// stops once the roster freezes at start.
func (r *Room) rosterWatcher() {
	kicks, cancel := r.feed.SubscribeRoomPlayers(r.id)
	defer cancel()

	poll := time.NewTicker(ROSTER_POLL_INTERVAL)
	defer poll.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-r.started:
			return
		case <-poll.C:
		case <-kicks:
		}

		ctx, cancelReq := storeCtx()
		players, err := r.store.RoomPlayers(ctx, r.id)
		cancelReq()
		if err != nil {
			log.Warn().Err(err).Str("room", r.id).Msg("roster refresh failed")
			continue
		}

		select {
		case r.rosterUpdates <- players:
		case <-r.done:
			return
		case <-r.started:
			return
		}
	}
}

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Second*10)
}

// --- Tick handling ---

func (r *Room) handleTick(now time.Time) {
	r.lastNow = now
	switch r.phase {
	case PHASE_WAITING, PHASE_READY, PHASE_COUNTING_DOWN:
		r.tickPreGame(now)
	case PHASE_PLAYING:
		r.tickRound(now)
	}
}

func (r *Room) tickPreGame(now time.Time) {
	if r.mode == domain.ModeBot {
		r.enterStarting(now)
		return
	}

	count := len(r.roster)

	if r.phase == PHASE_WAITING {
		if now.After(r.abandonAt) {
			log.Info().Str("room", r.id).Msg("waiting room timed out, reaping")
			r.abandon()
			return
		}
		if count >= MIN_PLAYERS {
			r.phase = PHASE_READY
			log.Debug().Str("room", r.id).Int("players", count).Msg("room ready")
		}
	}

	if r.phase == PHASE_READY {
		if count < MIN_PLAYERS {
			r.phase = PHASE_WAITING
			r.broadcastSnapshot(now)
			return
		}
		r.phase = PHASE_COUNTING_DOWN
		r.countdownEnd = now.Add(COUNTDOWN_DURATION)
		log.Info().Str("room", r.id).Msg("countdown armed")
		r.broadcastSnapshot(now)
		return
	}

	if r.phase == PHASE_COUNTING_DOWN {
		if count < MIN_PLAYERS {
			log.Info().Str("room", r.id).Msg("countdown cancelled, player left")
			r.phase = PHASE_WAITING
			r.broadcastSnapshot(now)
			return
		}
		if !now.Before(r.countdownEnd) {
			r.enterStarting(now)
			return
		}
		r.broadcastSnapshot(now)
	}
}

// enterStarting freezes the roster, attaches questions to the room row
// and opens the round. Exactly one session wins the conditional update;
// a loser adopts the winner's questions so every client plays the same
// set.
func (r *Room) enterStarting(now time.Time) {
	r.phase = PHASE_STARTING
	r.startOnce.Do(func() { close(r.started) })
	r.bank = r.stake * len(r.roster)
	r.broadcastSnapshot(now)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*90)
	defer cancel()

	questions, err := r.source.Generate(ctx, TOTAL_QUESTIONS)
	if err != nil {
		log.Error().Err(err).Str("room", r.id).Msg("no questions available, closing room")
		r.abandon()
		return
	}

	claimed, err := r.store.ClaimStart(ctx, r.id, questions, now)
	if err != nil {
		log.Warn().Err(err).Str("room", r.id).Msg("start claim failed, retrying")
		r.phase = PHASE_COUNTING_DOWN
		r.countdownEnd = now.Add(FORCE_START_DURATION)
		return
	}
	if !claimed {
		row, err := r.store.GetRoom(ctx, r.id)
		if err != nil || len(row.Questions) == 0 {
			log.Warn().Err(err).Str("room", r.id).Msg("start claimed elsewhere but questions missing, retrying")
			r.phase = PHASE_COUNTING_DOWN
			r.countdownEnd = now.Add(FORCE_START_DURATION)
			return
		}
		questions = row.Questions
	}

	r.round = NewRound(questions, r.roster, r.bots, now)
	r.phase = PHASE_PLAYING
	log.Info().Str("room", r.id).Int("players", len(r.roster)).Int("bank", r.bank).Msg("game started")
	r.broadcastSnapshot(now)
}

func (r *Room) tickRound(now time.Time) {
	r.round.handleTick(now)
	if r.round.Finished() || r.round.AllHumansOut() {
		r.finish(now)
		return
	}
	r.broadcastSnapshot(now)
}

// finish settles every human seat, persists the terminal status and
// hands the room back to the lobby for teardown.
func (r *Room) finish(now time.Time) {
	r.phase = PHASE_FINISHED

	winnerId := ""
	if ranked := r.round.RankedLive(); len(ranked) > 0 {
		winnerId = ranked[0].Id
	}

	for _, p := range r.roster {
		if p.IsBot || r.settled[p.Id] {
			continue
		}
		result := domain.ResultLoss
		if p.Id == winnerId {
			result = domain.ResultWin
		}
		r.settleOne(p, result)
	}

	ctx, cancel := storeCtx()
	if err := r.store.FinishRoom(ctx, r.id); err != nil {
		log.Error().Err(err).Str("room", r.id).Msg("finish status write failed")
	}
	cancel()

	log.Info().Str("room", r.id).Str("winner", winnerId).Msg("game finished")
	r.broadcastSnapshot(now)
	if r.parent != nil {
		r.parent.RemoveRoom(r.id)
	}
}

func (r *Room) settleOne(p *Participant, result domain.GameResult) {
	r.settled[p.Id] = true

	ctx, cancel := storeCtx()
	defer cancel()
	err := r.settler.Settle(ctx, Tally{
		UserId:       p.Id,
		RoomId:       r.id,
		Mode:         r.mode,
		Result:       result,
		Correct:      p.Correct,
		Wrong:        p.Wrong,
		TotalPlayers: len(r.roster),
		Stake:        r.stake,
	})
	if err != nil {
		log.Error().Err(err).Str("user", p.Id).Str("room", r.id).Msg("settlement failed")
	}
}

// abandon tears the room down without a round: seats empty too long or
// no questions could be attached.
func (r *Room) abandon() {
	r.phase = PHASE_FINISHED
	ctx, cancel := storeCtx()
	if err := r.store.FinishRoom(ctx, r.id); err != nil {
		log.Error().Err(err).Str("room", r.id).Msg("abandon status write failed")
	}
	cancel()
	if r.parent != nil {
		r.parent.RemoveRoom(r.id)
	}
}

// --- Envelope handling ---

func (r *Room) handleEnvelope(env clientEnvelope) {
	switch env.packet.Type {
	case "answer":
		r.handleAnswerEnvelope(env.from, env.packet)
	case "start":
		r.handleStartEnvelope(env.from)
	case "surrender":
		r.handleSurrenderEnvelope(env.from)
	case "leave":
		r.handleLeaveEnvelope(env.from)
	default:
		log.Debug().Str("type", env.packet.Type).Str("room", r.id).Msg("dropped unknown packet")
	}
}

func (r *Room) handleAnswerEnvelope(from Client, packet ClientPacket) {
	if r.phase != PHASE_PLAYING {
		return
	}
	if r.round.HandleAnswer(from.UserId(), packet.Question, packet.Option, r.lastNow) {
		r.broadcastSnapshot(r.lastNow)
	}
}

// handleStartEnvelope is the host's force-start. It shortens the
// countdown, it never skips the question attachment path.
func (r *Room) handleStartEnvelope(from Client) {
	if from.UserId() != r.hostId {
		return
	}
	if r.phase != PHASE_COUNTING_DOWN {
		return
	}
	forced := r.lastNow.Add(FORCE_START_DURATION)
	if forced.Before(r.countdownEnd) {
		r.countdownEnd = forced
	}
	log.Info().Str("room", r.id).Msg("host forced start")
	r.broadcastSnapshot(r.lastNow)
}

func (r *Room) handleSurrenderEnvelope(from Client) {
	if r.phase != PHASE_PLAYING {
		return
	}
	p := r.round.HandleSurrender(from.UserId())
	if p == nil || p.IsBot {
		return
	}
	log.Info().Str("user", p.Id).Str("room", r.id).Msg("player surrendered")
	r.settleOne(p, domain.ResultSurrender)

	if r.round.AllHumansOut() {
		r.finish(r.lastNow)
		return
	}
	r.broadcastSnapshot(r.lastNow)
}

func (r *Room) handleLeaveEnvelope(from Client) {
	switch r.phase {
	case PHASE_WAITING, PHASE_READY, PHASE_COUNTING_DOWN:
		ctx, cancel := storeCtx()
		if err := r.store.LeaveRoom(ctx, r.id, from.UserId()); err != nil {
			log.Warn().Err(err).Str("user", from.UserId()).Str("room", r.id).Msg("leave write failed")
		}
		cancel()
		r.dropFromRoster(from.UserId())
		r.detachClient(from)
		r.broadcastSnapshot(r.lastNow)
	case PHASE_PLAYING:
		r.handleSurrenderEnvelope(from)
		r.detachClient(from)
	default:
		r.detachClient(from)
	}
}

// --- Roster and clients ---

func (r *Room) handleRosterUpdate(players []domain.Profile) {
	switch r.phase {
	case PHASE_WAITING, PHASE_READY, PHASE_COUNTING_DOWN:
	default:
		return
	}

	changed := len(players) != len(r.roster)
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		seen[p.Id] = true
	}
	for _, p := range r.roster {
		if !seen[p.Id] {
			changed = true
		}
	}
	if !changed {
		return
	}

	roster := participantsFromProfiles(players)
	for _, p := range roster {
		_, p.Connected = r.clients[p.Id]
	}
	r.roster = roster
	r.broadcastSnapshot(r.lastNow)
}

func (r *Room) handleJoinRequest(jreq roomJoinRequest) {
	userId := jreq.client.UserId()

	p := r.findParticipant(userId)
	if p == nil {
		switch r.phase {
		case PHASE_WAITING, PHASE_READY, PHASE_COUNTING_DOWN:
			if len(r.roster) >= MAX_PLAYERS {
				jreq.errChan <- domain.ErrRoomFull
				return
			}
			// Joined through the directory a moment ago; the watcher
			// will confirm shortly.
			ctx, cancel := storeCtx()
			profile, err := r.profileFor(ctx, userId)
			cancel()
			if err != nil {
				jreq.errChan <- err
				return
			}
			p = &Participant{
				Id:            profile.Id,
				Username:      profile.Username,
				AvatarUrl:     profile.AvatarUrl,
				CurrentAnswer: -1,
			}
			r.roster = append(r.roster, p)
		default:
			jreq.errChan <- domain.ErrRoomAlreadyStarted
			return
		}
	}

	if old, ok := r.clients[userId]; ok {
		old.CancelAndRelease()
	}
	r.clients[userId] = jreq.client
	p.Connected = true
	jreq.errChan <- nil

	r.broadcastSnapshot(r.lastNow)
}

// profileFor resolves a joining user through the membership rows: the
// directory wrote them before handing out the room id.
func (r *Room) profileFor(ctx context.Context, userId string) (domain.Profile, error) {
	players, err := r.store.RoomPlayers(ctx, r.id)
	if err != nil {
		return domain.Profile{}, err
	}
	for _, p := range players {
		if p.Id == userId {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrProfileNotFound
}

func (r *Room) handleClientGone(c Client) {
	current, ok := r.clients[c.UserId()]
	if !ok || current != c {
		return
	}
	delete(r.clients, c.UserId())
	if p := r.findParticipant(c.UserId()); p != nil {
		p.Connected = false
	}

	// A pre-game disconnect frees the seat; mid-game the seat stays and
	// keeps timing out until the player reconnects.
	switch r.phase {
	case PHASE_WAITING, PHASE_READY, PHASE_COUNTING_DOWN:
		ctx, cancel := storeCtx()
		if err := r.store.LeaveRoom(ctx, r.id, c.UserId()); err != nil {
			log.Warn().Err(err).Str("user", c.UserId()).Str("room", r.id).Msg("leave write failed")
		}
		cancel()
		r.dropFromRoster(c.UserId())
	}
	r.broadcastSnapshot(r.lastNow)
}

func (r *Room) findParticipant(id string) *Participant {
	for _, p := range r.roster {
		if p.Id == id {
			return p
		}
	}
	return nil
}

func (r *Room) dropFromRoster(id string) {
	for i, p := range r.roster {
		if p.Id == id {
			r.roster = append(r.roster[:i], r.roster[i+1:]...)
			return
		}
	}
}

func (r *Room) detachClient(c Client) {
	if current, ok := r.clients[c.UserId()]; ok && current == c {
		delete(r.clients, c.UserId())
	}
	if p := r.findParticipant(c.UserId()); p != nil {
		p.Connected = false
	}
	c.CancelAndRelease()
}

// --- Broadcasting ---

func (r *Room) broadcastSnapshot(now time.Time) {
	data, err := json.Marshal(r.snapshot(now))
	if err != nil {
		log.Error().Err(err).Str("room", r.id).Msg("snapshot marshal failed")
		return
	}
	for _, c := range r.clients {
		r.dataSendTasks = append(r.dataSendTasks, dataSendTask{to: c, data: data})
	}
}

func (r *Room) flushSendTasks() {
	for _, task := range r.dataSendTasks {
		task.to.Send(task.data)
	}
	r.dataSendTasks = r.dataSendTasks[:0]
}

func (r *Room) phaseName() string {
	switch r.phase {
	case PHASE_WAITING:
		return "waiting"
	case PHASE_READY:
		return "ready"
	case PHASE_COUNTING_DOWN:
		return "counting_down"
	case PHASE_STARTING:
		return "starting"
	case PHASE_PLAYING:
		switch r.round.phase {
		case ROUND_INTRO:
			return "intro"
		case ROUND_QUESTION:
			return "playing"
		case ROUND_REVEAL:
			return "revealing"
		}
		return "playing"
	default:
		return "finished"
	}
}

// snapshot renders the room as clients may see it. During play the
// player scores come from the lagged display copies; the live counters
// surface only in the final results.
func (r *Room) snapshot(now time.Time) RoomSnapshot {
	snap := RoomSnapshot{
		RoomId:         r.id,
		Mode:           r.mode,
		Stake:          r.stake,
		Phase:          r.phaseName(),
		TotalQuestions: TOTAL_QUESTIONS,
		Bank:           r.stake * len(r.roster),
	}

	if r.phase == PHASE_COUNTING_DOWN {
		left := r.countdownEnd.Sub(now)
		if left < 0 {
			left = 0
		}
		snap.Countdown = int((left + time.Second - 1) / time.Second)
	}

	inRound := r.phase == PHASE_PLAYING || (r.phase == PHASE_FINISHED && r.round != nil)

	if !inRound {
		for _, p := range r.roster {
			snap.Players = append(snap.Players, PlayerSnapshot{
				Id:        p.Id,
				Username:  p.Username,
				AvatarUrl: p.AvatarUrl,
				IsBot:     p.IsBot,
				Connected: p.Connected,
			})
		}
		return snap
	}

	snap.Bank = r.bank

	displayRank := make(map[string]int, len(r.roster))
	for i, p := range r.round.RankedDisplay() {
		displayRank[p.Id] = i + 1
	}
	for _, p := range r.roster {
		score := r.round.DisplayScore(p.Id)
		snap.Players = append(snap.Players, PlayerSnapshot{
			Id:          p.Id,
			Username:    p.Username,
			AvatarUrl:   p.AvatarUrl,
			Correct:     score.Correct,
			Wrong:       score.Wrong,
			HasAnswered: p.HasAnswered,
			IsBot:       p.IsBot,
			Surrendered: p.Surrendered,
			Connected:   p.Connected,
			Rank:        displayRank[p.Id],
		})
	}

	switch r.round.phase {
	case ROUND_QUESTION, ROUND_REVEAL:
		q := r.round.Current()
		qs := &QuestionSnapshot{
			Number:       q.Number,
			Text:         q.Text,
			Options:      q.Options,
			Category:     q.Category,
			CorrectIndex: -1,
		}
		if r.round.phase == ROUND_REVEAL {
			qs.CorrectIndex = q.CorrectIndex
		}
		snap.Question = qs
		snap.QuestionNumber = r.round.idx + 1
		if r.round.phase == ROUND_QUESTION {
			snap.TimeLeft = r.round.TimeLeft(now)
		}
	}

	if r.phase == PHASE_FINISHED {
		for i, p := range r.round.RankedLive() {
			snap.Results = append(snap.Results, ResultSnapshot{
				Rank:      i + 1,
				Id:        p.Id,
				Username:  p.Username,
				AvatarUrl: p.AvatarUrl,
				Correct:   p.Correct,
				Wrong:     p.Wrong,
				IsBot:     p.IsBot,
			})
		}
		for _, p := range r.roster {
			if p.Surrendered {
				snap.Results = append(snap.Results, ResultSnapshot{
					Id:        p.Id,
					Username:  p.Username,
					AvatarUrl: p.AvatarUrl,
					Correct:   p.Correct,
					Wrong:     p.Wrong,
					IsBot:     p.IsBot,
				})
			}
		}
	}

	return snap
}
