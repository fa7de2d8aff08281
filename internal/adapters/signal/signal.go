package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/app/orch"
	"github.com/babelroom/babelroom/internal/config"
	"github.com/babelroom/babelroom/internal/core"
	"github.com/babelroom/babelroom/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller owns the WebSocket side of the protocol: one connection per
// session, a JSON envelope with a "type" discriminator, fan-out through the
// room's membership set.
type Controller struct {
	Orch    *orch.Orchestrator
	limiter *RateLimiter

	readLimit  int64
	pingPeriod time.Duration
}

func NewController(o *orch.Orchestrator, cfg *config.Config) *Controller {
	pingPeriod := cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &Controller{
		Orch:       o,
		limiter:    NewRateLimiter(cfg.AudioRateLimit, cfg.AudioRateInterval),
		readLimit:  cfg.ReadLimit,
		pingPeriod: pingPeriod,
	}
}

// pongWait is the read deadline; it must outlast one ping interval.
func (ctl *Controller) pongWait() time.Duration {
	return ctl.pingPeriod * 10 / 9
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	// Identity and language stay placeholders until join-room declares them.
	meta := domain.NewMember(&domain.User{ID: domain.UserID(sid), Username: "guest"}, "")
	sess := core.NewMemberSession(meta, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn, cancel)
}

// MemberJoined and MemberLeft implement orch.Notifier: the orchestrator
// decides who changed, this layer shapes the wire message.
func (ctl *Controller) MemberJoined(room core.RoomService, exclude core.SessionID, user domain.User, language string) {
	ctl.broadcast(room, exclude, "", struct {
		Type     string        `json:"type"`
		UserID   domain.UserID `json:"userId"`
		UserName string        `json:"userName"`
		Language string        `json:"language"`
	}{"user-joined", user.ID, user.Username, language})
}

func (ctl *Controller) MemberLeft(room core.RoomService, exclude core.SessionID, user domain.User) {
	ctl.broadcast(room, exclude, "", struct {
		Type     string        `json:"type"`
		UserID   domain.UserID `json:"userId"`
		UserName string        `json:"userName"`
	}{"user-left", user.ID, user.Username})
}
