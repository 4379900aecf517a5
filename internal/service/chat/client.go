package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"moment_social_server/pkg/constants"
	"moment_social_server/pkg/errorx"
)

// UserConn 一条已认证的 WebSocket 连接
// 同一用户可以同时持有多条连接（多端登录）
type UserConn struct {
	ConnId string
	UserId string
	Conn   *websocket.Conn

	// SendBack 给前端的发送通道，广播统一走这里
	SendBack chan []byte

	svc *ChatService

	mu     sync.Mutex
	closed bool
}

// NewUserConn 创建连接对象，认证在 handler 层完成
func NewUserConn(conn *websocket.Conn, userId string, svc *ChatService) *UserConn {
	return &UserConn{
		ConnId:   uuid.NewString(),
		UserId:   userId,
		Conn:     conn,
		SendBack: make(chan []byte, constants.CHANNEL_SIZE),
		svc:      svc,
	}
}

// Start 注册到 Hub 并启动读写协程
func (c *UserConn) Start(ctx context.Context) {
	c.svc.Hub().Register(ctx, c)
	go c.readPump(ctx)
	go c.writePump()
	zap.L().Info("ws连接成功", zap.String("user_id", c.UserId), zap.String("conn_id", c.ConnId))
}

// readPump 读取 websocket 消息并分发
func (c *UserConn) readPump(ctx context.Context) {
	defer c.shutdown(ctx)
	for {
		_, raw, err := c.Conn.ReadMessage() // 阻塞状态
		if err != nil {
			zap.L().Info("ws read closed", zap.String("user_id", c.UserId), zap.Error(err))
			return
		}
		ev, err := DecodeInbound(raw)
		if err != nil {
			zap.L().Warn("decode inbound event failed", zap.String("user_id", c.UserId), zap.Error(err))
			c.sendError(err, "")
			continue
		}
		// 每个事件独立协程处理，事件内部的存储调用不阻塞读循环
		go c.svc.Dispatch(ctx, c, ev)
	}
}

// writePump 从 SendBack 通道读取消息发送给 websocket
func (c *UserConn) writePump() {
	for message := range c.SendBack { // 阻塞状态
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			zap.L().Error("ws write failed", zap.String("user_id", c.UserId), zap.Error(err))
			return
		}
	}
}

// send 投递一帧出站消息，连接已关闭或通道已满时丢弃
func (c *UserConn) send(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.SendBack <- message:
	default:
		zap.L().Warn("send channel full, dropping frame",
			zap.String("user_id", c.UserId), zap.String("conn_id", c.ConnId))
	}
}

// sendError 向本连接下发 error 事件，错误绝不广播给其他人
func (c *UserConn) sendError(err error, conversationId string) {
	payload := ErrorPayload{
		Code:           errorx.GetCode(err),
		Message:        err.Error(),
		ConversationId: conversationId,
	}
	frame, encErr := encodeOutbound(EventError, payload)
	if encErr != nil {
		zap.L().Error("encode error event failed", zap.Error(encErr))
		return
	}
	c.send(frame)
}

// shutdown 注销连接并释放资源
func (c *UserConn) shutdown(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.svc.Hub().Unregister(ctx, c)
	close(c.SendBack)
	if err := c.Conn.Close(); err != nil {
		zap.L().Debug("close ws conn", zap.Error(err))
	}
}
