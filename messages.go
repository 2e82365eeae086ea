package server

import "encoding/json"

// Envelope is the single frame format on the wire. Type selects the
// handler; Data carries the type-specific payload, left raw so the
// router can defer decoding to the component that owns the message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client -> server message types.
const (
	MsgRoomCreate = "room:create"
	MsgRoomJoin   = "room:join"
	MsgRoomRejoin = "room:rejoin"
	MsgRoomLeave  = "room:leave"
	MsgRoomReady  = "room:ready"
	MsgRoomList   = "room:list"
	MsgGameStart  = "game:start"
	MsgGameInput  = "game:input"
	MsgGameAction = "game:action"
	MsgPing       = "ping"
)

// Server -> client message types.
const (
	MsgRoomCreated   = "room:created"
	MsgRoomJoined    = "room:joined"
	MsgRoomUpdate    = "room:update"
	MsgRoomError     = "room:error"
	MsgRoomRooms     = "room:rooms"
	MsgGameCountdown = "game:countdown"
	MsgGameState     = "game:state"
	MsgGameEvent     = "game:event"
	MsgGameEnd       = "game:end"
	MsgPong          = "pong"
)

type CreateRoomRequest struct {
	GameType   string `json:"gameType"`
	PlayerName string `json:"playerName"`
}

type JoinRoomRequest struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
}

// RejoinRequest rebinds a fresh connection to a player slot that is
// still inside its reconnect grace window.
type RejoinRequest struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
}

type ReadyRequest struct {
	Ready bool `json:"ready"`
}

type ListRoomsRequest struct {
	GameType string `json:"gameType,omitempty"`
}

type RoomPlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Color     string `json:"color"`
	Connected bool   `json:"connected"`
}

type RoomInfo struct {
	Code     string           `json:"code"`
	GameType GameType         `json:"gameType"`
	State    RoomState        `json:"state"`
	HostID   string           `json:"hostId"`
	Players  []RoomPlayerInfo `json:"players"`
}

type RoomAck struct {
	Room     RoomInfo `json:"room"`
	PlayerID string   `json:"playerId"`
}

type RoomUpdateMessage struct {
	Room RoomInfo `json:"room"`
}

type RoomListMessage struct {
	Rooms []RoomInfo `json:"rooms"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CountdownMessage struct {
	Seconds int `json:"seconds"`
}

// InputMessage is the continuous per-tick intent channel. Seq feeds the
// client's reconciliation buffer; the newest acked value is echoed back
// inside each variant's snapshot.
type InputMessage struct {
	Seq       uint64          `json:"seq"`
	Input     json.RawMessage `json:"input"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// ActionMessage is the discrete event channel (checkpoints, shots,
// mode switches).
type ActionMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type PingMessage struct {
	Timestamp int64 `json:"timestamp"`
}

type PongMessage struct {
	Timestamp  int64 `json:"timestamp"`
	ServerTime int64 `json:"serverTime"`
}

// GameEventMessage covers every discrete game:event notification;
// fields beyond Type are variant-specific and omitted when empty.
type GameEventMessage struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId,omitempty"`
	Killer     string `json:"killer,omitempty"`
	Reason     string `json:"reason,omitempty"`
	EnemyID    string `json:"enemyId,omitempty"`
	Checkpoint int    `json:"checkpoint,omitempty"`
	Points     int    `json:"points,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

type GameEndMessage struct {
	Winner   string         `json:"winner,omitempty"`
	Survived float64        `json:"survived,omitempty"`
	Scores   map[string]int `json:"scores"`
}

// WireCatalog exists for cmd/schema: reflecting it yields a JSON Schema
// covering every payload that crosses the wire.
type WireCatalog struct {
	Envelope       Envelope          `json:"envelope"`
	CreateRoom     CreateRoomRequest `json:"room_create"`
	JoinRoom       JoinRoomRequest   `json:"room_join"`
	Rejoin         RejoinRequest     `json:"room_rejoin"`
	Ready          ReadyRequest      `json:"room_ready"`
	ListRooms      ListRoomsRequest  `json:"room_list"`
	RoomAck        RoomAck           `json:"room_ack"`
	RoomUpdate     RoomUpdateMessage `json:"room_update"`
	RoomList       RoomListMessage   `json:"room_rooms"`
	Error          ErrorMessage      `json:"room_error"`
	Countdown      CountdownMessage  `json:"game_countdown"`
	Input          InputMessage      `json:"game_input"`
	Action         ActionMessage     `json:"game_action"`
	Event          GameEventMessage  `json:"game_event"`
	End            GameEndMessage    `json:"game_end"`
	Ping           PingMessage       `json:"ping"`
	Pong           PongMessage       `json:"pong"`
	GridSnapshot   GridChaseSnapshot `json:"grid_chase_state"`
	FlightSnapshot FlightSnapshot    `json:"flight_race_state"`
	HordeSnapshot  HordeSnapshot     `json:"survival_horde_state"`
}
