package gateway

import (
	"sync"

	redisc "github.com/tubelens/core/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	RoomAdmin  = "admin"
	RoomPublic = "public"

	namespaceAdmin = "/admin"
	namespaceWeb   = "/web"

	redisChanAdmin  = "tubelens:gateway:admin"
	redisChanPublic = "tubelens:gateway:public"

	videoRoomPrefix = "video:"

	messageJoin  = "join"
	messageLeave = "leave"

	nativeLogSnapshotChunkSize = 32 * 1024
)

// Events pushed to connected clients.
const (
	// EventAnalysisComplete lands in the video room of the analyzed
	// content and in the admin namespace.
	EventAnalysisComplete = "ANALYSIS_COMPLETE"
	// EventSettingsUpdate goes to every connected client so open pages
	// pick up the new record without polling.
	EventSettingsUpdate = "SETTINGS_UPDATE"
	// EventHealthChange reaches the admin namespace when the remote
	// analysis agent flips between reachable and unreachable.
	EventHealthChange = "HEALTH_CHANGE"
)

// VideoRoom names the room that receives events for one content id.
func VideoRoom(contentID string) string { return videoRoomPrefix + contentID }

// Message is the envelope used by hub broadcasts and Redis fan-out.
// Origin carries the publishing instance id; the subscriber drops its own
// echoes so local clients get each event once.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Code    *int        `json:"code,omitempty"`
	Room    string      `json:"room,omitempty"`
	Origin  string      `json:"origin,omitempty"`
}

type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Code *int        `json:"code,omitempty"`
}

type clientMeta struct {
	sid  string
	room string
}

// emitter is the slice of *socketio.Socket the hub needs for room
// delivery.
type emitter interface {
	Emit(event string, args ...any) error
}

type adminLogSubscription struct {
	streamID int
	stopCh   chan struct{}
}

// Hub manages socket.io namespaces, video rooms and cluster fan-out.
type Hub struct {
	instanceID string

	mu sync.RWMutex

	sidRoom   map[string]string
	roomCount map[string]int

	videoRooms map[string]map[string]emitter
	sidVideos  map[string]map[string]struct{}

	logSubMu sync.Mutex
	logSubs  map[string]adminLogSubscription

	broadcast  chan Message
	register   chan clientMeta
	unregister chan clientMeta

	rc                  *redisc.Client
	logger              *zap.Logger
	sio                 *socketio.Server
	adminTokenValidator func(string) bool
}
