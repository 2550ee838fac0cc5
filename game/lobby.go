package game

import (
	"context"
	"time"
)

type ensureRoomRequest struct {
	room  *Room
	added chan bool
}

type roomLookupRequest struct {
	roomId string
	resp   chan *Room
}

// lobby owns the set of live room sessions. A single actor goroutine
// ticks every room once a second and serializes session add/remove, so
// the rooms map never needs a lock.
type lobby struct {
	rooms             map[string]*Room
	addAndRunRoomChan chan ensureRoomRequest
	removeRoomChan    chan string
	lookupReqs        chan roomLookupRequest
	tickerCreator     PeriodicTickerChannelCreator
}

func NewLobby(tickerCreator PeriodicTickerChannelCreator) *lobby {
	return &lobby{
		rooms:             map[string]*Room{},
		addAndRunRoomChan: make(chan ensureRoomRequest, 32),
		removeRoomChan:    make(chan string, 32),
		lookupReqs:        make(chan roomLookupRequest, 256),
		tickerCreator:     tickerCreator,
	}
}

// RequestEnsureRoom adds the session and starts its loop unless one
// already runs for that room id; the caller's candidate is discarded
// then. Reports whether the candidate was the one installed.
func (l *lobby) RequestEnsureRoom(ctx context.Context, r *Room) bool {
	req := ensureRoomRequest{room: r, added: make(chan bool, 1)}
	select {
	case l.addAndRunRoomChan <- req:
	case <-ctx.Done():
		return false
	}
	select {
	case added := <-req.added:
		return added
	case <-ctx.Done():
		return false
	}
}

// GetRoom resolves a live session by room id, nil when none runs here.
func (l *lobby) GetRoom(ctx context.Context, roomId string) *Room {
	req := roomLookupRequest{roomId: roomId, resp: make(chan *Room, 1)}
	select {
	case l.lookupReqs <- req:
	case <-ctx.Done():
		return nil
	}
	select {
	case room := <-req.resp:
		return room
	case <-ctx.Done():
		return nil
	}
}

func (l *lobby) RemoveRoom(roomId string) {
	l.removeRoomChan <- roomId
}

func (l *lobby) LobbyActor(started chan struct{}) {
	ticker := l.tickerCreator.Create(time.Second)

	close(started)

	for {
		select {
		case now := <-ticker:
			for _, r := range l.rooms {
				r.Tick(now)
			}

		case req := <-l.addAndRunRoomChan:
			l.handleEnsureRoom(req)

		case roomId := <-l.removeRoomChan:
			l.handleRemoveRoom(roomId)

		case req := <-l.lookupReqs:
			req.resp <- l.rooms[req.roomId]
		}
	}
}

func (l *lobby) handleEnsureRoom(req ensureRoomRequest) {
	if _, exists := l.rooms[req.room.Id()]; exists {
		req.added <- false
		return
	}
	req.room.SetParentLobby(l)
	l.rooms[req.room.Id()] = req.room
	go req.room.GameLoop()
	req.added <- true
}

func (l *lobby) handleRemoveRoom(toRemoveId string) {
	room, ok := l.rooms[toRemoveId]
	if !ok {
		return
	}
	delete(l.rooms, toRemoveId)
	room.CloseAndRelease()
}
