package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kannan2410/saashrm/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // 1MB
	sendBuffer     = 256
)

var errClientClosed = errors.New("ws: client closed")

// Client 包装一条 websocket 连接：出站走缓冲 channel 由写循环串行消费，
// 入站由 Gateway 的读循环逐事件处理。
type Client struct {
	ID       string
	Identity auth.Identity

	ws   *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func NewClient(identity auth.Identity, ws *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Start 启动写循环，每条连接恰好调用一次。
func (c *Client) Start() {
	go c.writeLoop()
}

// Send 把 payload 排入发送队列。客户端消费过慢导致缓冲打满时
// 直接关闭连接，把背压挡在有界范围内。
func (c *Client) Send(payload []byte) error {
	// done 关闭后 send 仍可写入，必须先单独判掉，
	// 否则 select 会随机把 payload 排给已死的写循环
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case <-c.done:
		return errClientClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errClientClosed
	}
}

// Close 幂等关闭连接并终止写循环。
func (c *Client) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		if c.ws == nil {
			return
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
