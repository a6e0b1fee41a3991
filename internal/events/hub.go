// Package events 提供集成事件的 websocket 推送通道。
// Hub 只做在线广播，不做补发：掉线期间的事件由事件日志接口回查。
package events

import (
	"net/http"
	"sync"

	"treehub/internal/model"
	"treehub/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 订阅端可能来自管理前端的任意源，这里不做 Origin 白名单，鉴权交给上层中间件
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub 维护在线订阅连接，按租户过滤广播集成事件。
type Hub struct {
	mu    sync.RWMutex
	conns map[*subscriber]struct{}
}

type subscriber struct {
	tenantID string
	conn     *websocket.Conn
	sendMu   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*subscriber]struct{})}
}

// HandleWS 把 HTTP 请求升级成 websocket 订阅连接。
// 连接生命周期内只读不写（读循环用于感知对端关闭），事件由 Broadcast 推送。
func (h *Hub) HandleWS(c *gin.Context, tenantID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("Hub: websocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{tenantID: tenantID, conn: conn}
	h.mu.Lock()
	h.conns[sub] = struct{}{}
	h.mu.Unlock()

	log.Infow("event subscriber connected", "tenant", tenantID, "remote", conn.RemoteAddr().String())

	// 读循环：丢弃入站消息，对端关闭或出错时摘除连接
	go func() {
		defer h.remove(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast 把事件推送给同租户的全部在线订阅者。
// 单个连接写失败视为已断开，摘除后继续推送其余连接。
func (h *Hub) Broadcast(event *model.IntegrationEventLog) {
	if event == nil {
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.conns))
	for sub := range h.conns {
		if sub.tenantID == event.TenantID {
			subs = append(subs, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.sendMu.Lock()
		err := sub.conn.WriteJSON(event)
		sub.sendMu.Unlock()
		if err != nil {
			log.Warnf("Hub: failed to push event %s: %v", event.EventID, err)
			h.remove(sub)
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.conns[sub]
	delete(h.conns, sub)
	h.mu.Unlock()

	if ok {
		_ = sub.conn.Close()
	}
}
