package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-in-led/agent"
	"github.com/hoshinonyaruko/snake-in-led/session"
	"github.com/hoshinonyaruko/snake-in-led/snake"
	"github.com/hoshinonyaruko/snake-in-led/structs"
)

// MaxTicksPerRequest 单次 /tick 最多推进的帧数
const MaxTicksPerRequest = 1000

// Register 挂载所有路由
func Register(router gin.IRoutes, svc *Service) {
	// 棋盘列表
	router.GET("/boards", ListBoardsHandler(svc))
	// 开新局
	router.GET("/new-game", NewGameHandler(svc))
	// 查询局面
	router.GET("/game-state", GameStateHandler(svc))
	// 处理玩家改变方向
	router.GET("/update-direction", UpdateDirection(svc))
	// 手动推进
	router.GET("/tick", TickHandler(svc))
	router.GET("/reset-game", ResetGameHandler(svc))
	router.GET("/switch-mode", SwitchModeHandler(svc))
	// 删除会话
	router.GET("/delete-game", DeleteGameHandler(svc))
	// 给外部显示端推送帧
	router.GET("/watch", WatchHandler(svc))
	router.GET("/metrics", MetricsHandler(svc))
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, ErrBoardNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, session.ErrMode),
		errors.Is(err, agent.ErrUnknownAgent), errors.Is(err, snake.ErrPlacement):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// lookup 取出 id 参数对应的会话
func lookup(c *gin.Context, svc *Service) (*session.Session, bool) {
	id := c.Query("id")
	if id == "" {
		writeError(c, badRequest("missing required query parameter: id"))
		return nil, false
	}
	sess, err := svc.sessions.Get(id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return sess, true
}

// respond 持久化后返回最新快照
func respond(c *gin.Context, svc *Service, sess *session.Session, extra gin.H) {
	snap, err := svc.persist(sess)
	if err != nil {
		log.Printf("persist session %s: %v", sess.ID, err)
		writeError(c, err)
		return
	}
	body := gin.H{"state": snap, "live": svc.IsLive(sess.ID)}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

type boardInfo struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	OpenCells int    `json:"open_cells"`
	Portals   int    `json:"portals"`
}

func ListBoardsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var boards []boardInfo
		for _, name := range svc.boards.Names() {
			topo, ok := svc.boards.Get(name)
			if !ok {
				continue
			}
			boards = append(boards, boardInfo{
				Name:      name,
				Width:     topo.Width(),
				Height:    topo.Height(),
				OpenCells: topo.OpenCount(),
				Portals:   len(topo.Portals()),
			})
		}
		c.JSON(http.StatusOK, gin.H{"boards": boards})
	}
}

// NewGameHandler 参数 board、mode、agent 可省略；live=true 时由服务器按帧间隔自动推进。
func NewGameHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var mode session.Mode
		if m := c.Query("mode"); m != "" {
			parsed, err := session.ParseMode(m)
			if err != nil {
				writeError(c, err)
				return
			}
			mode = parsed
		}
		live, _ := strconv.ParseBool(c.DefaultQuery("live", "false"))

		sess, err := svc.CreateSession(session.NewID(), c.Query("board"), mode, c.Query("agent"))
		if err != nil {
			writeError(c, err)
			return
		}
		if live {
			svc.StartLive(sess)
		}
		respond(c, svc, sess, nil)
	}
}

func GameStateHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := lookup(c, svc)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": sess.Snapshot(), "live": svc.IsLive(sess.ID)})
	}
}

// UpdateDirection 缓冲玩家输入。掉头或非玩家模式时 accepted 为 false。
func UpdateDirection(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		newDirection := c.Query("direction")
		if newDirection == "" {
			writeError(c, badRequest("missing required query parameter: direction"))
			return
		}
		dir, err := structs.ParseDirection(newDirection)
		if err != nil {
			writeError(c, badRequest("%v", err))
			return
		}
		sess, ok := lookup(c, svc)
		if !ok {
			return
		}
		accepted := sess.Input(dir)
		respond(c, svc, sess, gin.H{"accepted": accepted})
	}
}

func TickHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.Atoi(c.DefaultQuery("n", "1"))
		if err != nil || n < 1 || n > MaxTicksPerRequest {
			writeError(c, badRequest("n must be between 1 and %d", MaxTicksPerRequest))
			return
		}
		sess, ok := lookup(c, svc)
		if !ok {
			return
		}
		svc.Advance(sess, n)
		respond(c, svc, sess, nil)
	}
}

func ResetGameHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := lookup(c, svc)
		if !ok {
			return
		}
		sess.Reset()
		respond(c, svc, sess, nil)
	}
}

// SwitchModeHandler 切换模式会重新开局，后台运行的会话按新模式的帧间隔重启。
func SwitchModeHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode, err := session.ParseMode(c.Query("mode"))
		if err != nil {
			writeError(c, err)
			return
		}
		sess, ok := lookup(c, svc)
		if !ok {
			return
		}
		if err := sess.SetMode(mode); err != nil {
			writeError(c, err)
			return
		}
		sess.SetEndTicks(svc.endTicks(mode))
		if svc.IsLive(sess.ID) {
			svc.StartLive(sess)
		}
		respond(c, svc, sess, nil)
	}
}

func DeleteGameHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			writeError(c, badRequest("missing required query parameter: id"))
			return
		}
		if err := svc.Remove(id); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Game deleted successfully"})
	}
}
