package gateway

import (
	"context"
	"encoding/json"
	"strings"
)

func (h *Hub) gatewayMessageFormat(event string, payload interface{}, code *int) gatewayPayload {
	return gatewayPayload{
		Type: event,
		Data: payload,
		Code: code,
	}
}

func (h *Hub) emitNamespace(nsp string, msg Message) {
	h.sio.Of(nsp, nil).Emit("message", h.gatewayMessageFormat(msg.Event, msg.Payload, msg.Code))
}

func (h *Hub) emitVideoRoom(room string, msg Message) {
	h.mu.RLock()
	members := make([]emitter, 0, len(h.videoRooms[room]))
	for _, sock := range h.videoRooms[room] {
		members = append(members, sock)
	}
	h.mu.RUnlock()

	payload := h.gatewayMessageFormat(msg.Event, msg.Payload, msg.Code)
	for _, sock := range members {
		_ = sock.Emit("message", payload)
	}
}

func (h *Hub) deliver(msg Message) {
	switch {
	case msg.Room == RoomAdmin:
		h.emitNamespace(namespaceAdmin, msg)
	case msg.Room == RoomPublic:
		h.emitNamespace(namespaceWeb, msg)
	case strings.HasPrefix(msg.Room, videoRoomPrefix):
		h.emitVideoRoom(msg.Room, msg)
	case msg.Room == "":
		h.emitNamespace(namespaceAdmin, msg)
		h.emitNamespace(namespaceWeb, msg)
	}
}

// subscribeRedis listens for broadcasts from other server instances.
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rc.Subscribe(ctx, redisChanAdmin, redisChanPublic)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
				continue
			}
			if msg.Origin == h.instanceID {
				continue
			}
			h.deliver(msg)
		}
	}
}
