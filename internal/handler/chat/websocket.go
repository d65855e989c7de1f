package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatService "github.com/lumi-ajolote/lumi/backend/internal/service/chat"
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn 串行化写操作，gorilla 连接只允许一个并发写者。
type wsConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *zap.Logger
}

func (c *wsConn) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (c *wsConn) sendError(message string) {
	if err := c.send("error", map[string]string{"message": message}); err != nil {
		c.logger.Debug("write error frame failed", zap.Error(err))
	}
}

// handleWebSocket 处理WebSocket连接，同一连接上的消息按顺序处理。
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer raw.Close()

	conn := &wsConn{conn: raw, logger: h.logger}

	ctx, cancel := context.WithCancel(r.Context())

	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(h.pingWait))
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, conn)
	}()
	defer wg.Wait()
	defer cancel()

	if err := conn.send("connected", map[string]string{
		"persona":     h.persona.Name,
		"openingLine": h.persona.OpeningLine,
	}); err != nil {
		return
	}

	for {
		// 一轮对话可能超过 pingWait，期间到达的 pong 要等到下一次读取才会处理。
		raw.SetReadDeadline(time.Now().Add(h.pingWait))
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "chat":
			if err := h.handleSocketChat(ctx, conn, msg.Data); err != nil {
				return
			}
		case "ping":
			if err := conn.send("pong", nil); err != nil {
				return
			}
		default:
			conn.sendError("Tipo de mensaje no soportado.")
		}
	}
}

// handleSocketChat 处理一条聊天消息。只有写失败会返回错误并结束连接。
func (h *Handler) handleSocketChat(ctx context.Context, conn *wsConn, data json.RawMessage) error {
	var payload chatRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		conn.sendError(chatService.ErrMissingMessage.Error())
		return nil
	}
	turn := payload.turn()
	if err := turn.Validate(); err != nil {
		conn.sendError(err.Error())
		return nil
	}

	if err := conn.send("typing", map[string]bool{"active": true}); err != nil {
		return err
	}

	result, err := h.chatSvc.StreamReply(ctx, turn, func(delta string) error {
		return conn.send("delta", map[string]string{"content": delta})
	})

	if stopErr := conn.send("typing", map[string]bool{"active": false}); stopErr != nil {
		return stopErr
	}
	if err != nil {
		h.logger.Error("websocket turn failed", zap.Error(err), zap.Bool("guest", turn.IsGuest))
		conn.sendError(msgInternal)
		return nil
	}
	return conn.send("reply", result)
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(h.pingWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
