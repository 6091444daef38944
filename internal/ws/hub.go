package ws

import (
	"sync"

	"github.com/kannan2410/saashrm/internal/metrics"
)

// 逻辑房间名：每个频道一间，每个公司一间（承载上下线与状态广播）。
func ChannelRoom(channelID string) string { return "channel:" + channelID }
func CompanyRoom(companyID string) string { return "company:" + companyID }

// Hub 维护房间到订阅连接的映射，广播是 fire-and-forget 的显式扇出。
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	conns map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		conns: make(map[*Client]map[string]struct{}),
	}
}

// Subscribe 把连接加入房间，重复订阅是幂等的。
func (h *Hub) Subscribe(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	subs := h.conns[c]
	if subs == nil {
		subs = make(map[string]struct{})
		h.conns[c] = subs
	}
	subs[room] = struct{}{}
}

// Unsubscribe 把连接移出单个房间，只影响本地订阅。
func (h *Hub) Unsubscribe(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// Drop 在断连时摘除该连接的全部订阅。
func (h *Hub) Drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.conns[c] {
		h.leaveLocked(c, room)
	}
	delete(h.conns, c)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if subs, ok := h.conns[c]; ok {
		delete(subs, room)
	}
}

// Broadcast 把 payload 发给房间内所有连接，返回投递份数。
func (h *Hub) Broadcast(room string, payload []byte) int {
	return h.BroadcastExcept(room, payload, nil)
}

// BroadcastExcept 同 Broadcast，但跳过 except 对应的连接。
// 投递不等待、不确认；写缓冲打满的慢消费者由 Client.Send 关闭。
func (h *Hub) BroadcastExcept(room string, payload []byte, except *Client) int {
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for c := range members {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.Send(payload) == nil {
			n++
		}
	}
	if n > 0 {
		metrics.BroadcastsTotal.Inc()
	}
	return n
}

// Occupancy 返回房间当前订阅数。
func (h *Hub) Occupancy(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms 返回连接当前订阅的房间，测试用。
func (h *Hub) Rooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.conns[c]))
	for room := range h.conns[c] {
		out = append(out, room)
	}
	return out
}
