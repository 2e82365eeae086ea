package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// conn binds one websocket to one player identity for its lifetime.
// Every field below roomRef is owned by the read loop goroutine; only
// sendRaw is safe to call from elsewhere.
type conn struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
	limiter *rate.Limiter
	logger  zerolog.Logger

	name string
	room *Room
}

// sendRaw writes one frame under the connection's write mutex with a
// deadline. Failures are logged and otherwise ignored; the read loop
// notices a dead socket on its own.
func (c *conn) sendRaw(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debug().Err(err).Msg("write failed")
	}
}

func (c *conn) send(msgType string, payload any) {
	data, err := encodeEnvelope(msgType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msgType).Msg("marshal send")
		return
	}
	c.sendRaw(data)
}

// sendError delivers a fault to the offending connection only; one
// player's mistake never touches the rest of the room.
func (c *conn) sendError(err error) {
	c.send(MsgRoomError, ErrorMessage{Code: errorCode(err), Message: err.Error()})
}

func (c *conn) close() {
	c.ws.Close()
}

func encodeEnvelope(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}

func sendToAll(conns []*conn, msgType string, payload any, logger zerolog.Logger) {
	data, err := encodeEnvelope(msgType, payload)
	if err != nil {
		logger.Error().Err(err).Str("type", msgType).Msg("marshal broadcast")
		return
	}
	for _, c := range conns {
		c.sendRaw(data)
	}
}

// Router upgrades websockets and dispatches inbound envelopes to the
// lobby (pre-match) or the room's session (in-match).
type Router struct {
	lobby     *Lobby
	cfg       Config
	logger    zerolog.Logger
	telemetry *Telemetry
	upgrader  websocket.Upgrader
}

func NewRouter(lobby *Lobby, cfg Config, logger zerolog.Logger, telemetry *Telemetry) *Router {
	return &Router{
		lobby:     lobby,
		cfg:       cfg,
		logger:    logger.With().Str("component", "router").Logger(),
		telemetry: telemetry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeWS upgrades the request and runs the connection's read loop
// until the socket dies or the client leaves.
func (rt *Router) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := rt.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rt.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &conn{
		id:      uuid.NewString(),
		ws:      ws,
		limiter: rate.NewLimiter(rate.Limit(rt.cfg.MessageRate), rt.cfg.MessageBurst),
	}
	c.logger = rt.logger.With().Str("conn", c.id).Logger()
	c.logger.Debug().Msg("connected")

	rt.readLoop(c)

	rt.handleDrop(c)
	ws.Close()
	c.logger.Debug().Msg("disconnected")
}

func (rt *Router) readLoop(c *conn) {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			rt.telemetry.RecordInputDropped()
			continue
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.Debug().Err(err).Msg("discarding malformed frame")
			continue
		}
		rt.dispatch(c, env)
	}
}

func (rt *Router) dispatch(c *conn, env Envelope) {
	switch env.Type {
	case MsgRoomCreate:
		var req CreateRoomRequest
		if !decode(c, env.Data, &req) {
			return
		}
		rt.handleCreate(c, req)
	case MsgRoomJoin:
		var req JoinRoomRequest
		if !decode(c, env.Data, &req) {
			return
		}
		rt.handleJoin(c, req)
	case MsgRoomRejoin:
		var req RejoinRequest
		if !decode(c, env.Data, &req) {
			return
		}
		rt.handleRejoin(c, req)
	case MsgRoomLeave:
		rt.handleLeave(c)
	case MsgRoomReady:
		var req ReadyRequest
		if !decode(c, env.Data, &req) {
			return
		}
		rt.handleReady(c, req)
	case MsgRoomList:
		var req ListRoomsRequest
		if len(env.Data) > 0 && !decode(c, env.Data, &req) {
			return
		}
		c.send(MsgRoomRooms, RoomListMessage{Rooms: rt.lobby.ListRooms(req.GameType)})
	case MsgGameStart:
		rt.handleStart(c)
	case MsgGameInput:
		var msg InputMessage
		if !decode(c, env.Data, &msg) {
			return
		}
		rt.handleInput(c, msg)
	case MsgGameAction:
		var msg ActionMessage
		if !decode(c, env.Data, &msg) {
			return
		}
		rt.handleAction(c, msg)
	case MsgPing:
		var msg PingMessage
		if len(env.Data) > 0 && !decode(c, env.Data, &msg) {
			return
		}
		c.send(MsgPong, PongMessage{Timestamp: msg.Timestamp, ServerTime: time.Now().UnixMilli()})
	default:
		c.logger.Debug().Str("type", env.Type).Msg("unknown message type")
	}
}

func decode(c *conn, data json.RawMessage, into any) bool {
	if err := json.Unmarshal(data, into); err != nil {
		c.logger.Debug().Err(err).Msg("discarding malformed payload")
		return false
	}
	return true
}

func (rt *Router) handleCreate(c *conn, req CreateRoomRequest) {
	if c.room != nil {
		rt.leaveCurrent(c)
	}
	room, player, err := rt.lobby.CreateRoom(c, req.GameType, req.PlayerName)
	if err != nil {
		c.sendError(err)
		return
	}
	c.room = room
	c.name = req.PlayerName
	c.send(MsgRoomCreated, RoomAck{Room: room.Info(), PlayerID: player.ID})
}

func (rt *Router) handleJoin(c *conn, req JoinRoomRequest) {
	if c.room != nil {
		rt.leaveCurrent(c)
	}
	room, player, err := rt.lobby.JoinRoom(req.Code, c, req.PlayerName)
	if err != nil {
		c.sendError(err)
		return
	}
	c.room = room
	c.name = req.PlayerName
	c.send(MsgRoomJoined, RoomAck{Room: room.Info(), PlayerID: player.ID})
	room.BroadcastUpdate()
}

func (rt *Router) handleRejoin(c *conn, req RejoinRequest) {
	room, player, err := rt.lobby.Rejoin(req.Code, req.PlayerID, c)
	if err != nil {
		c.sendError(err)
		return
	}
	// The connection adopts the original player identity.
	c.id = player.ID
	c.name = player.Name
	c.room = room
	c.send(MsgRoomJoined, RoomAck{Room: room.Info(), PlayerID: player.ID})
	room.BroadcastUpdate()
}

func (rt *Router) handleLeave(c *conn) {
	if c.room == nil {
		c.sendError(ErrNotInRoom)
		return
	}
	rt.leaveCurrent(c)
}

func (rt *Router) leaveCurrent(c *conn) {
	room := c.room
	c.room = nil
	rt.lobby.LeavePlayer(room, c.id)
}

func (rt *Router) handleReady(c *conn, req ReadyRequest) {
	if c.room == nil {
		c.sendError(ErrNotInRoom)
		return
	}
	if !c.room.SetReady(c.id, req.Ready) {
		c.sendError(ErrUnknownPlayer)
		return
	}
	c.room.BroadcastUpdate()
}

func (rt *Router) handleStart(c *conn) {
	if c.room == nil {
		c.sendError(ErrNotInRoom)
		return
	}
	if err := rt.lobby.StartGame(c.room, c.id); err != nil {
		c.sendError(err)
	}
}

func (rt *Router) handleInput(c *conn, msg InputMessage) {
	if c.room == nil {
		return
	}
	if s := c.room.Session(); s != nil {
		s.HandleInput(c.id, msg)
	}
}

func (rt *Router) handleAction(c *conn, msg ActionMessage) {
	if c.room == nil {
		return
	}
	if s := c.room.Session(); s != nil {
		s.HandleAction(c.id, msg.Type, msg.Data)
	}
}

// handleDrop runs after the read loop exits. Pre-match drops free the
// slot; mid-match drops keep it for the grace window.
func (rt *Router) handleDrop(c *conn) {
	if c.room == nil {
		return
	}
	room := c.room
	c.room = nil
	if room.State() == RoomWaiting {
		rt.lobby.LeavePlayer(room, c.id)
		return
	}
	rt.lobby.DisconnectPlayer(room, c.id)
}
