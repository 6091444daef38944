package ws

import (
	"encoding/json"
	"time"

	"github.com/kannan2410/saashrm/internal/service"
)

// 客户端 -> 服务端事件。
const (
	EvtJoinChannel   = "join:channel"
	EvtLeaveChannel  = "leave:channel"
	EvtMessageSend   = "message:send"
	EvtMessageDelete = "message:delete"
	EvtMessagePin    = "message:pin"
	EvtMessageRead   = "message:read"
	EvtStatusUpdate  = "status:update"
	EvtTypingStart   = "typing:start"
	EvtTypingStop    = "typing:stop"
)

// 服务端 -> 客户端事件。
const (
	EvtPresenceList    = "presence:list"
	EvtPresenceOnline  = "presence:online"
	EvtPresenceOffline = "presence:offline"
	EvtUserJoined      = "user:joined"
	EvtMessageNew      = "message:new"
	EvtMessageDeleted  = "message:deleted"
	EvtMessagePinned   = "message:pinned"
	EvtMessageSeen     = "message:seen"
	EvtStatusChanged   = "status:changed"
	EvtError           = "error"
)

// Envelope 是双向统一的线缆格式：{"event": ..., "data": ...}。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode 组装一条出站事件。
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// ChannelPayload 用于 join/leave/read/typing 这类只带频道 id 的事件。
type ChannelPayload struct {
	ChannelID string `json:"channelId"`
}

// SendPayload 是 message:send 的入参。
type SendPayload struct {
	ChannelID string            `json:"channelId"`
	Content   string            `json:"content"`
	ReplyToID *string           `json:"replyToId"`
	FileData  *service.FileData `json:"fileData"`
}

// MessagePayload 用于 delete/pin 这类只带消息 id 的事件。
type MessagePayload struct {
	MessageID string `json:"messageId"`
}

// StatusPayload 是 status:update 的入参。
type StatusPayload struct {
	Status string `json:"status"`
}

// 出站事件载荷。
type (
	PresencePayload struct {
		UserID string `json:"userId"`
	}
	UserJoinedPayload struct {
		UserID    string `json:"userId"`
		ChannelID string `json:"channelId"`
	}
	TypingPayload struct {
		UserID    string `json:"userId"`
		ChannelID string `json:"channelId"`
	}
	SeenPayload struct {
		ChannelID  string    `json:"channelId"`
		UserID     string    `json:"userId"`
		LastReadAt time.Time `json:"lastReadAt"`
	}
	StatusChangedPayload struct {
		UserID       string  `json:"userId"`
		CustomStatus *string `json:"customStatus"`
	}
	DeletedPayload struct {
		ID string `json:"id"`
	}
	ErrorPayload struct {
		Message string `json:"message"`
	}
)
