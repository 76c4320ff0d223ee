package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// defaultWatchInterval 没有配置帧间隔时的轮询间隔
const defaultWatchInterval = 70 * time.Millisecond

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// WatchHandler 把会话的快照推送给外部显示端，只读。
// 连上先发一帧，之后每当帧数变化再发；会话被删除时发送关闭消息。
func WatchHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := lookup(c, svc)
		if !ok {
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("watch %s: upgrade failed: %v", sess.ID, err)
			return
		}
		defer conn.Close()

		svc.metrics.watchers.Inc()
		defer svc.metrics.watchers.Dec()

		// 读循环只用来发现客户端断开
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		interval := svc.opts.AgentTick
		if interval <= 0 {
			interval = defaultWatchInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sent := false
		var last uint64
		for {
			if _, err := svc.sessions.Get(sess.ID); err != nil {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session deleted"))
				return
			}
			snap := sess.Snapshot()
			if !sent || snap.Ticks != last {
				if err := conn.WriteJSON(snap); err != nil {
					return
				}
				sent, last = true, snap.Ticks
			}

			select {
			case <-closed:
				return
			case <-svc.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
