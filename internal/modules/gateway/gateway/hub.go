package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	redisc "github.com/tubelens/core/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

func NewHub(rc *redisc.Client, logger *zap.Logger, adminTokenValidator func(string) bool) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	sio := socketio.NewServer(nil, nil)
	h := &Hub{
		instanceID:          uuid.New().String(),
		sidRoom:             make(map[string]string),
		roomCount:           make(map[string]int),
		videoRooms:          make(map[string]map[string]emitter),
		sidVideos:           make(map[string]map[string]struct{}),
		logSubs:             make(map[string]adminLogSubscription),
		broadcast:           make(chan Message, 256),
		register:            make(chan clientMeta, 256),
		unregister:          make(chan clientMeta, 256),
		rc:                  rc,
		logger:              logger,
		sio:                 sio,
		adminTokenValidator: adminTokenValidator,
	}
	h.registerNamespaces()
	return h
}

// Run starts the hub loop and, when Redis is configured, the cross-instance
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	if h.rc != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg := <-h.broadcast:
			h.deliver(msg)

			if h.rc == nil {
				continue
			}
			channel := redisChanPublic
			if msg.Room == RoomAdmin {
				channel = redisChanAdmin
			}
			msg.Origin = h.instanceID
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := h.rc.Publish(ctx, channel, string(data)); err != nil {
				h.logger.Warn("gateway publish failed", zap.String("channel", channel), zap.Error(err))
			}
		}
	}
}

func (h *Hub) registerClient(c clientMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if oldRoom, ok := h.sidRoom[c.sid]; ok {
		if oldRoom == c.room {
			return
		}
		if h.roomCount[oldRoom] > 0 {
			h.roomCount[oldRoom]--
		}
	}

	h.sidRoom[c.sid] = c.room
	h.roomCount[c.room]++
}

func (h *Hub) unregisterClient(c clientMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.sidRoom[c.sid]
	if !ok {
		return
	}

	delete(h.sidRoom, c.sid)
	if h.roomCount[room] > 0 {
		h.roomCount[room]--
	}
	h.dropAllVideoRoomsLocked(c.sid)
}

func (h *Hub) joinVideoRoom(room, sid string, client emitter) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.videoRooms[room] == nil {
		h.videoRooms[room] = make(map[string]emitter)
	}
	h.videoRooms[room][sid] = client

	if h.sidVideos[sid] == nil {
		h.sidVideos[sid] = make(map[string]struct{})
	}
	h.sidVideos[sid][room] = struct{}{}
}

func (h *Hub) leaveVideoRoom(room, sid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropVideoMembershipLocked(room, sid)
}

func (h *Hub) dropAllVideoRoomsLocked(sid string) {
	for room := range h.sidVideos[sid] {
		h.dropVideoMembershipLocked(room, sid)
	}
}

func (h *Hub) dropVideoMembershipLocked(room, sid string) {
	if members, ok := h.videoRooms[room]; ok {
		delete(members, sid)
		if len(members) == 0 {
			delete(h.videoRooms, room)
		}
	}
	if rooms, ok := h.sidVideos[sid]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.sidVideos, sid)
		}
	}
}

// Broadcast sends an event to the given room, or to every client when
// room is empty.
func (h *Hub) Broadcast(event string, payload interface{}, room string) {
	h.broadcast <- Message{Event: event, Payload: payload, Room: room}
}

// BroadcastAdmin sends to the admin namespace only.
func (h *Hub) BroadcastAdmin(event string, payload interface{}) {
	h.Broadcast(event, payload, RoomAdmin)
}

// BroadcastPublic sends to every web client.
func (h *Hub) BroadcastPublic(event string, payload interface{}) {
	h.Broadcast(event, payload, RoomPublic)
}

// BroadcastVideo sends to the clients watching one content id.
func (h *Hub) BroadcastVideo(contentID, event string, payload interface{}) {
	h.Broadcast(event, payload, VideoRoom(contentID))
}

// ClientCount returns the number of connected clients (optionally filtered
// by room).
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room == "" {
		return len(h.sidRoom)
	}
	return h.roomCount[room]
}

// VideoRoomCount returns the number of video rooms with at least one
// watcher.
func (h *Hub) VideoRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.videoRooms)
}

// WatcherCount returns the number of clients in the room of one content id.
func (h *Hub) WatcherCount(contentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.videoRooms[VideoRoom(contentID)])
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}
