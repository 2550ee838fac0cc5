package game

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quizroyale/domain"
)

type HistoryLister interface {
	UserHistory(ctx context.Context, userId string, limit int) ([]domain.HistoryRecord, error)
}

type GameHandler struct {
	directory *Directory
	lobby     *lobby
	history   HistoryLister
	roomDeps  RoomDeps
}

func NewGameHandler(directory *Directory, l *lobby, history HistoryLister, roomDeps RoomDeps) *GameHandler {
	return &GameHandler{directory: directory, lobby: l, history: history, roomDeps: roomDeps}
}

func (h *GameHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/play", h.PlayHandler)
	rg.GET("/ws/:roomid", h.JoinRoomHandler)
	rg.GET("/invites", h.InvitesHandler)
	rg.POST("/invites/:id/respond", h.RespondInviteHandler)
	rg.GET("/history", h.HistoryHandler)
}

type playRequest struct {
	Mode     string   `json:"mode" binding:"required"`
	Invitees []string `json:"invitees"`
}

// PlayHandler seats the caller into a room for the requested mode and
// makes sure a live session runs for it.
func (h *GameHandler) PlayHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	if id == "" {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	var body playRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-request"})
		return
	}

	reqCtx := ctx.Request.Context()

	var roomId string
	var err error
	switch domain.GameMode(body.Mode) {
	case domain.ModeBot:
		roomId, err = h.directory.StartBotSession(reqCtx, id)
	case domain.ModeRandom:
		roomId, err = h.directory.FindOrCreateRoom(reqCtx, id, domain.ModeRandom)
	case domain.ModeFriends:
		roomId, err = h.directory.CreateGameRoom(reqCtx, id, domain.ModeFriends, body.Invitees)
	default:
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrUnknownMode.Error()})
		return
	}
	if err != nil {
		abortWithDomainError(ctx, err)
		return
	}

	if err := h.ensureSession(reqCtx, roomId); err != nil {
		abortWithDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room_id": roomId})
}

// ensureSession builds a session from the stored row when this process
// is not hosting one yet. Rows already playing are left alone: their
// session either runs here or the game is lost to a restart.
func (h *GameHandler) ensureSession(ctx context.Context, roomId string) error {
	row, err := h.directory.GetRoom(ctx, roomId)
	if err != nil {
		return err
	}
	if row.Status != domain.RoomWaiting {
		return nil
	}

	players, err := h.directory.RoomPlayers(ctx, roomId)
	if err != nil {
		return err
	}

	var room *Room
	if row.Mode == domain.ModeBot {
		if len(players) == 0 {
			return domain.ErrRoomNotFound
		}
		room = NewBotRoom(row, players[0], h.roomDeps)
	} else {
		room = NewRoom(row, players, h.roomDeps)
	}

	h.lobby.RequestEnsureRoom(ctx, room)
	return nil
}

// JoinRoomHandler upgrades to a websocket and attaches the caller to
// the room session.
func (h *GameHandler) JoinRoomHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	if id == "" {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}
	roomId := ctx.Param("roomid")

	if err := h.ensureSession(ctx.Request.Context(), roomId); err != nil {
		abortWithDomainError(ctx, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}

	socket := NewWebsocketConnection(conn)

	room := h.lobby.GetRoom(ctx.Request.Context(), roomId)
	if room == nil {
		socket.Close(ErrRoomNotRunning.Error())
		return
	}

	client := NewClient(id, socket, room)
	jreq := roomJoinRequest{roomId: roomId, client: client, errChan: make(chan error, 1)}
	room.RequestJoin(jreq)

	if joinErr := <-jreq.errChan; joinErr != nil {
		socket.Close(joinErr.Error())
		return
	}

	go client.WritePump()
	client.ReadPump()
}

func (h *GameHandler) InvitesHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	invites, err := h.directory.PendingInvites(ctx.Request.Context(), id)
	if err != nil {
		abortWithDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"invites": invites})
}

type respondInviteRequest struct {
	Accept bool `json:"accept"`
}

func (h *GameHandler) RespondInviteHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	inviteId := ctx.Param("id")

	var body respondInviteRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-request"})
		return
	}

	reqCtx := ctx.Request.Context()

	if !body.Accept {
		if err := h.directory.DeclineInvite(reqCtx, inviteId, id); err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "declined"})
		return
	}

	roomId, err := h.directory.AcceptInvite(reqCtx, inviteId, id)
	if err != nil {
		abortWithDomainError(ctx, err)
		return
	}
	if err := h.ensureSession(reqCtx, roomId); err != nil {
		abortWithDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "accepted", "room_id": roomId})
}

func (h *GameHandler) HistoryHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	records, err := h.history.UserHistory(ctx.Request.Context(), id, 50)
	if err != nil {
		abortWithDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"history": records})
}

func abortWithDomainError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		ctx.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "insufficient-balance"})
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrInviteNotFound):
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrRoomAlreadyStarted),
		errors.Is(err, domain.ErrInviteAlreadyAnswered),
		errors.Is(err, ErrNotYourInvite):
		ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("request failed")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
	}
}
