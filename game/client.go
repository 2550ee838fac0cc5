package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type NetworkSession interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

// wsClient binds one websocket session to a user and pumps frames in
// and out of the room actor. Send never blocks; a client too slow to
// drain its outbox is cut off.
type wsClient struct {
	userId      string
	socket      NetworkSession
	room        *Room
	rateLimiter *rate.Limiter
	outbox      chan []byte
	mu          sync.Mutex
	closed      bool
}

func NewClient(userId string, socket NetworkSession, room *Room) *wsClient {
	return &wsClient{
		userId:      userId,
		socket:      socket,
		room:        room,
		rateLimiter: rate.NewLimiter(5, 10),
		outbox:      make(chan []byte, 256),
	}
}

func (c *wsClient) UserId() string { return c.userId }

func (c *wsClient) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outbox <- data:
	default:
		// Too far behind to ever catch up.
		c.closed = true
		close(c.outbox)
	}
}

func (c *wsClient) CancelAndRelease() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

func (c *wsClient) ReadPump() {
	defer func() {
		c.socket.Close("")
		select {
		case c.room.clientRemovals <- c:
		case <-c.room.done:
		}
	}()

	for {
		data, err := c.socket.Read()
		if err != nil {
			return
		}
		if !c.rateLimiter.Allow() {
			continue
		}

		var packet ClientPacket
		if err := json.Unmarshal(data, &packet); err != nil {
			continue
		}

		select {
		case c.room.inbox <- clientEnvelope{packet: packet, from: c}:
		case <-c.room.done:
			return
		}
	}
}

func (c *wsClient) WritePump() {
	pingTicker := time.NewTicker(time.Second * 30)
	defer pingTicker.Stop()

	for {
		select {
		case data, ok := <-c.outbox:
			if !ok {
				c.socket.Close("")
				return
			}
			if err := c.socket.Write(data); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := c.socket.Ping(); err != nil {
				return
			}
		}
	}
}

// --- gorilla adapter ---

type websocketConnection struct {
	socket *websocket.Conn
}

func NewWebsocketConnection(conn *websocket.Conn) *websocketConnection {
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(time.Minute))
		return nil
	})
	return &websocketConnection{socket: conn}
}

func (wc *websocketConnection) Write(data []byte) error {
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Close(errCode string) {
	wc.socket.SetWriteDeadline(time.Now().Add(time.Second * 20))
	wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, errCode))
	wc.socket.Close()
}
