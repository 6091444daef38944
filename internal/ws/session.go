package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kannan2410/saashrm/internal/auth"
	"github.com/kannan2410/saashrm/internal/config"
	"github.com/kannan2410/saashrm/internal/metrics"
	"github.com/kannan2410/saashrm/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway 承接 websocket 握手，按事件类型分发到对应 handler。
// 同一连接的事件在读循环里顺序处理，跨连接之间不保证顺序。
type Gateway struct {
	cfg      config.Config
	hub      *Hub
	presence *Presence
	channels *service.ChannelService
	messages *service.MessageService
}

func NewGateway(cfg config.Config, hub *Hub, presence *Presence, channels *service.ChannelService, messages *service.MessageService) *Gateway {
	return &Gateway{cfg: cfg, hub: hub, presence: presence, channels: channels, messages: messages}
}

// Serve 处理 /ws 握手：凭证无效直接 401，不进入任何房间。
func (g *Gateway) Serve() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseToken(token, g.cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := NewClient(auth.Identity{
			UserID:    claims.UserID,
			Email:     claims.Email,
			Role:      claims.Role,
			CompanyID: claims.CompanyID,
		}, conn)
		client.Start()
		g.run(client, conn)
	}
}

// run 完成连接级生命周期：注册在线状态、自动订阅、读循环、注销。
func (g *Gateway) run(client *Client, conn *websocket.Conn) {
	id := client.Identity
	log.Info().Str("user_id", id.UserID).Str("conn_id", client.ID).Msg("ws connected")
	metrics.WsConnections.Inc()

	g.hub.Subscribe(client, CompanyRoom(id.CompanyID))
	if first := g.presence.Register(id.UserID, client.ID); first {
		g.emit(CompanyRoom(id.CompanyID), EvtPresenceOnline, PresencePayload{UserID: id.UserID})
	}
	metrics.OnlineUsers.Set(float64(g.presence.Count()))

	g.send(client, EvtPresenceList, g.presence.Snapshot())

	// 订阅自己所属的全部频道房间，保证能收到 message:new
	if channelIDs, err := g.channels.UserChannelIDs(id.UserID); err != nil {
		log.Error().Err(err).Str("user_id", id.UserID).Msg("auto-join channels")
	} else {
		for _, channelID := range channelIDs {
			g.hub.Subscribe(client, ChannelRoom(channelID))
		}
	}

	defer func() {
		g.hub.Drop(client)
		if last := g.presence.Deregister(id.UserID, client.ID); last {
			g.emit(CompanyRoom(id.CompanyID), EvtPresenceOffline, PresencePayload{UserID: id.UserID})
		}
		metrics.WsConnections.Dec()
		metrics.OnlineUsers.Set(float64(g.presence.Count()))
		client.Close(websocket.CloseNormalClosure, "")
		log.Info().Str("user_id", id.UserID).Str("conn_id", client.ID).Msg("ws disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			g.sendError(client, "malformed event")
			continue
		}
		metrics.WsEventsTotal.WithLabelValues(env.Event).Inc()
		g.dispatch(client, env)
	}
}

// dispatch 是每事件类型一个 handler 的分发点。handler 内的业务失败
// 只私发 error 事件给来源连接，不影响其他客户端。
func (g *Gateway) dispatch(client *Client, env Envelope) {
	switch env.Event {
	case EvtJoinChannel:
		g.onJoinChannel(client, env.Data)
	case EvtLeaveChannel:
		g.onLeaveChannel(client, env.Data)
	case EvtMessageSend:
		g.onMessageSend(client, env.Data)
	case EvtMessageDelete:
		g.onMessageDelete(client, env.Data)
	case EvtMessagePin:
		g.onMessagePin(client, env.Data)
	case EvtMessageRead:
		g.onMessageRead(client, env.Data)
	case EvtTypingStart:
		g.onTyping(client, env.Data, EvtTypingStart)
	case EvtTypingStop:
		g.onTyping(client, env.Data, EvtTypingStop)
	case EvtStatusUpdate:
		g.onStatusUpdate(client, env.Data)
	default:
		g.sendError(client, "unknown event")
	}
}

func (g *Gateway) onJoinChannel(client *Client, data json.RawMessage) {
	var p ChannelPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		g.sendError(client, "malformed event")
		return
	}
	_, created, err := g.channels.Join(p.ChannelID, client.Identity.UserID)
	if err != nil {
		log.Warn().Err(err).Str("channel_id", p.ChannelID).Msg("join channel")
		g.sendError(client, "Failed to join channel")
		return
	}
	g.hub.Subscribe(client, ChannelRoom(p.ChannelID))
	if created {
		g.emitExcept(ChannelRoom(p.ChannelID), EvtUserJoined, UserJoinedPayload{
			UserID:    client.Identity.UserID,
			ChannelID: p.ChannelID,
		}, client)
	}
}

func (g *Gateway) onLeaveChannel(client *Client, data json.RawMessage) {
	var p ChannelPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		g.sendError(client, "malformed event")
		return
	}
	// 只解除本地订阅，成员关系不动
	g.hub.Unsubscribe(client, ChannelRoom(p.ChannelID))
}

func (g *Gateway) onMessageSend(client *Client, data json.RawMessage) {
	var p SendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(client, "malformed event")
		return
	}
	msg, err := g.messages.Send(p.ChannelID, client.Identity.UserID, p.Content, p.ReplyToID)
	if err != nil {
		log.Warn().Err(err).Str("channel_id", p.ChannelID).Msg("send message")
		g.sendError(client, "Failed to send message")
		return
	}
	if p.FileData != nil {
		if err := g.messages.AddFile(msg.ID, *p.FileData); err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("attach file")
			g.sendError(client, "Failed to send message")
			return
		}
		if updated, err := g.messages.GetByID(msg.ID); err == nil {
			msg = updated
		}
	}
	metrics.MessagesTotal.Inc()
	g.emit(ChannelRoom(p.ChannelID), EvtMessageNew, msg)
}

func (g *Gateway) onMessageDelete(client *Client, data json.RawMessage) {
	var p MessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		g.sendError(client, "malformed event")
		return
	}
	res, err := g.messages.Delete(p.MessageID, client.Identity.UserID)
	if err != nil {
		log.Warn().Err(err).Str("message_id", p.MessageID).Msg("delete message")
		g.sendError(client, "Failed to delete message")
		return
	}
	g.emit(ChannelRoom(res.ChannelID), EvtMessageDeleted, DeletedPayload{ID: res.ID})
}

func (g *Gateway) onMessagePin(client *Client, data json.RawMessage) {
	var p MessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		g.sendError(client, "malformed event")
		return
	}
	msg, err := g.messages.Pin(p.MessageID)
	if err != nil {
		log.Warn().Err(err).Str("message_id", p.MessageID).Msg("pin message")
		g.sendError(client, "Failed to pin message")
		return
	}
	g.emit(ChannelRoom(msg.ChannelID), EvtMessagePinned, msg)
}

func (g *Gateway) onMessageRead(client *Client, data json.RawMessage) {
	var p ChannelPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		g.sendError(client, "malformed event")
		return
	}
	lastReadAt, err := g.messages.MarkRead(p.ChannelID, client.Identity.UserID)
	if err != nil {
		log.Warn().Err(err).Str("channel_id", p.ChannelID).Msg("mark channel read")
		return
	}
	// 已读是对其他人的提示，不回发给自己
	g.emitExcept(ChannelRoom(p.ChannelID), EvtMessageSeen, SeenPayload{
		ChannelID:  p.ChannelID,
		UserID:     client.Identity.UserID,
		LastReadAt: lastReadAt,
	}, client)
}

func (g *Gateway) onTyping(client *Client, data json.RawMessage, event string) {
	var p ChannelPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		return
	}
	// 纯瞬态转发，不落库
	g.emitExcept(ChannelRoom(p.ChannelID), event, TypingPayload{
		UserID:    client.Identity.UserID,
		ChannelID: p.ChannelID,
	}, client)
}

func (g *Gateway) onStatusUpdate(client *Client, data json.RawMessage) {
	var p StatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(client, "malformed event")
		return
	}
	customStatus, err := g.messages.UpdateStatus(client.Identity.UserID, p.Status)
	if err != nil {
		log.Warn().Err(err).Str("user_id", client.Identity.UserID).Msg("update status")
		g.sendError(client, "Failed to update status")
		return
	}
	g.emit(CompanyRoom(client.Identity.CompanyID), EvtStatusChanged, StatusChangedPayload{
		UserID:       client.Identity.UserID,
		CustomStatus: customStatus,
	})
}

func (g *Gateway) emit(room, event string, data interface{}) {
	payload, err := Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	g.hub.Broadcast(room, payload)
}

func (g *Gateway) emitExcept(room, event string, data interface{}, except *Client) {
	payload, err := Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	g.hub.BroadcastExcept(room, payload, except)
}

func (g *Gateway) send(client *Client, event string, data interface{}) {
	payload, err := Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	_ = client.Send(payload)
}

func (g *Gateway) sendError(client *Client, message string) {
	g.send(client, EvtError, ErrorPayload{Message: message})
}
