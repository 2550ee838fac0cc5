package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Channel names must match the pg_notify calls in the migrations.
const (
	ChannelRooms       = "room_changes"
	ChannelRoomPlayers = "room_players_changes"
	ChannelInvites     = "invite_changes"
)

// Listener turns postgres LISTEN/NOTIFY traffic into per-key wakeup
// kicks. A kick carries no data: delivery is at least once and possibly
// reordered, so subscribers must re-fetch authoritative state, never
// apply deltas. Kicks are coalesced while a subscriber is slow.
type Listener struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	subs map[subKey]map[chan struct{}]struct{}
}

type subKey struct {
	channel string
	key     string
}

func NewListener(pool *pgxpool.Pool) *Listener {
	return &Listener{
		pool: pool,
		subs: make(map[subKey]map[chan struct{}]struct{}),
	}
}

// Subscribe registers interest in one key of one channel. The returned
// cancel func must be called to release the subscription.
func (l *Listener) Subscribe(channel, key string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	sk := subKey{channel: channel, key: key}

	l.mu.Lock()
	if l.subs[sk] == nil {
		l.subs[sk] = make(map[chan struct{}]struct{})
	}
	l.subs[sk][ch] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		delete(l.subs[sk], ch)
		if len(l.subs[sk]) == 0 {
			delete(l.subs, sk)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeRoomPlayers kicks when a room's membership rows change.
func (l *Listener) SubscribeRoomPlayers(roomId string) (<-chan struct{}, func()) {
	return l.Subscribe(ChannelRoomPlayers, roomId)
}

// SubscribeInvites kicks when a user receives or answers an invite.
func (l *Listener) SubscribeInvites(userId string) (<-chan struct{}, func()) {
	return l.Subscribe(ChannelInvites, userId)
}

func (l *Listener) kick(channel, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs[subKey{channel: channel, key: key}] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// kickAll wakes every subscriber, used after a reconnect when
// notifications may have been missed.
func (l *Listener) kickAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, chans := range l.subs {
		for ch := range chans {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Run holds a dedicated connection and dispatches notifications until
// the context is done. Connection failures are retried with a small
// backoff; background sync failures never surface to callers.
func (l *Listener) Run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("change listener disconnected, retrying")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
		l.kickAll()
	}
}

func (l *Listener) listen(ctx context.Context) error {
	poolConn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer poolConn.Release()

	conn := poolConn.Conn()
	for _, channel := range []string{ChannelRooms, ChannelRoomPlayers, ChannelInvites} {
		if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
			return err
		}
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.kick(notification.Channel, notification.Payload)
	}
}
