package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hoshinonyaruko/snake-in-led/board"
	"github.com/hoshinonyaruko/snake-in-led/memboard"
	"github.com/hoshinonyaruko/snake-in-led/session"
	"github.com/hoshinonyaruko/snake-in-led/snake"
	"github.com/hoshinonyaruko/snake-in-led/sqlite"
	"github.com/hoshinonyaruko/snake-in-led/structs"
)

var (
	ErrBoardNotFound = errors.New("board not found")
	errBadRequest    = errors.New("bad request")
)

// Options 来自配置文件的游戏参数
type Options struct {
	DefaultBoard  string
	DefaultAgent  string
	InitialLength int
	AgentTick     time.Duration
	PlayerTick    time.Duration
	EndSequence   time.Duration
	Seed          uint64 // 0 表示按时间取种子
	PersistEvery  uint64 // 后台运行的会话每隔多少帧存一次档，0 不存
}

// Service 把棋盘目录、会话表和存档连在一起，供 HTTP 处理函数使用。
type Service struct {
	db       *sql.DB
	boards   *memboard.Catalog
	sessions *session.Manager
	opts     Options
	ctx      context.Context
	metrics  *Metrics

	mu   sync.Mutex
	live map[string]*runner
	seq  atomic.Uint64

	// 快照和写库在同一把锁里完成，删除会话也要拿这把锁
	saveMu sync.Mutex
}

// runner 一个后台推进的会话，done 在 Run 返回后关闭
type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *runner) stop() {
	r.cancel()
	<-r.done
}

// NewService 的 db 可以为 nil，此时不做持久化。ctx 取消时所有后台会话停止。
func NewService(ctx context.Context, db *sql.DB, boards *memboard.Catalog, sessions *session.Manager, opts Options) *Service {
	if opts.InitialLength < 1 {
		opts.InitialLength = snake.DefaultInitialLength
	}
	if opts.DefaultBoard == "" {
		opts.DefaultBoard = memboard.DefaultName
	}
	if opts.DefaultAgent == "" {
		opts.DefaultAgent = "bfs"
	}
	return &Service{
		db:       db,
		boards:   boards,
		sessions: sessions,
		opts:     opts,
		ctx:      ctx,
		metrics:  newMetrics(),
		live:     make(map[string]*runner),
	}
}

func (s *Service) nextSeed() uint64 {
	n := s.seq.Add(1)
	if s.opts.Seed != 0 {
		return s.opts.Seed + n - 1
	}
	return uint64(time.Now().UnixNano()) + n
}

func (s *Service) interval(mode session.Mode) time.Duration {
	if mode == session.ModePlayer {
		return s.opts.PlayerTick
	}
	return s.opts.AgentTick
}

func (s *Service) endTicks(mode session.Mode) int {
	return session.EndTicks(s.opts.EndSequence, s.interval(mode))
}

// CreateSession 在指定棋盘上开一局新游戏并登记。空参数使用默认值。
func (s *Service) CreateSession(id, boardName string, mode session.Mode, agentName string) (*session.Session, error) {
	if boardName == "" {
		boardName = s.opts.DefaultBoard
	}
	if agentName == "" {
		agentName = s.opts.DefaultAgent
	}
	if mode == "" {
		mode = session.ModeAgent
	}
	topo, ok := s.boards.Get(boardName)
	if !ok {
		return nil, fmt.Errorf("'%s': %w", boardName, ErrBoardNotFound)
	}
	return s.start(id, topo, mode, agentName)
}

func (s *Service) start(id string, topo *board.Topology, mode session.Mode, agentName string) (*session.Session, error) {
	g, err := snake.New(topo, snake.WithInitialLength(s.opts.InitialLength), snake.WithSeed(s.nextSeed()))
	if err != nil {
		return nil, err
	}
	sess, err := session.New(id, g, mode, agentName, s.endTicks(mode))
	if err != nil {
		return nil, err
	}
	s.sessions.Add(sess)
	s.metrics.gamesStarted.Inc()
	s.metrics.sessions.Set(float64(len(s.sessions.List())))
	return sess, nil
}

func (s *Service) Session(id string) (*session.Session, error) {
	return s.sessions.Get(id)
}

// RestoreSessions 从数据库恢复所有存档。
// 优先使用存档里的棋盘定义，保证蛇身和食物的位置在那张棋盘上合法。
func (s *Service) RestoreSessions() (int, error) {
	if s.db == nil {
		return 0, nil
	}
	recs, err := sqlite.LoadSessions(s.db)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range recs {
		if _, err := s.adopt(rec); err != nil {
			log.Printf("skip stored session %s: %v", rec.Snapshot.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) adopt(rec sqlite.Record) (*session.Session, error) {
	var topo *board.Topology
	if rec.Board.Name != "" {
		t, err := board.New(rec.Board)
		if err != nil {
			return nil, err
		}
		topo = t
	} else if t, ok := s.boards.Get(rec.Snapshot.Board); ok {
		topo = t
	} else {
		return nil, fmt.Errorf("'%s': %w", rec.Snapshot.Board, ErrBoardNotFound)
	}

	mode, err := session.ParseMode(rec.Snapshot.Mode)
	if err != nil {
		return nil, err
	}
	agentName := rec.Snapshot.Agent
	if agentName == "" {
		agentName = s.opts.DefaultAgent
	}
	sess, err := s.start(rec.Snapshot.ID, topo, mode, agentName)
	if err != nil {
		return nil, err
	}
	if err := sess.Restore(rec.Snapshot); err != nil {
		s.sessions.Delete(sess.ID)
		s.metrics.sessions.Set(float64(len(s.sessions.List())))
		return nil, err
	}
	return sess, nil
}

// Persist 保存会话快照，没有数据库时什么也不做。
func (s *Service) Persist(sess *session.Session) error {
	_, err := s.persist(sess)
	return err
}

// persist 取快照并写库，返回写入的快照。已经被删除的会话只取快照不写库。
func (s *Service) persist(sess *session.Session) (structs.Snapshot, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	snap := sess.Snapshot()
	if s.db == nil {
		return snap, nil
	}
	if cur, err := s.sessions.Get(sess.ID); err != nil || cur != sess {
		return snap, nil
	}
	return snap, sqlite.SaveSession(s.db, snap, sess.BoardDef())
}

// StartLive 让会话按模式对应的帧间隔在后台自己推进。已经在跑的会先停掉。
func (s *Service) StartLive(sess *session.Session) {
	ctx, cancel := context.WithCancel(s.ctx)
	r := &runner{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	old := s.live[sess.ID]
	s.live[sess.ID] = r
	s.metrics.live.Set(float64(len(s.live)))
	s.mu.Unlock()

	if old != nil {
		old.stop()
	}
	go func() {
		defer close(r.done)
		sess.Run(ctx, s.interval(sess.Mode()), s.onLiveTick)
	}()
}

// Advance 推进 n 帧，并统计结束的局数。
func (s *Service) Advance(sess *session.Session, n int) {
	for i := 0; i < n; i++ {
		s.observeTick(sess, sess.Tick())
	}
}

func (s *Service) observeTick(sess *session.Session, ended bool) {
	s.metrics.ticks.Inc()
	if ended {
		s.metrics.ended(sess.Snapshot().Length)
	}
}

func (s *Service) onLiveTick(sess *session.Session, ended bool) {
	s.observeTick(sess, ended)
	if s.opts.PersistEvery == 0 {
		return
	}
	if !ended && sess.Snapshot().Ticks%s.opts.PersistEvery != 0 {
		return
	}
	if _, err := s.persist(sess); err != nil {
		log.Printf("persist session %s: %v", sess.ID, err)
	}
}

// StopLive 停止后台推进，等正在进行的那一帧（包括存档）结束后才返回。
func (s *Service) StopLive(id string) bool {
	s.mu.Lock()
	r, ok := s.live[id]
	if ok {
		delete(s.live, id)
		s.metrics.live.Set(float64(len(s.live)))
	}
	s.mu.Unlock()
	if ok {
		r.stop()
	}
	return ok
}

func (s *Service) IsLive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[id]
	return ok
}

// Remove 停止并删除会话及其存档。
func (s *Service) Remove(id string) error {
	s.StopLive(id)
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.sessions.Delete(id); err != nil {
		return err
	}
	s.metrics.sessions.Set(float64(len(s.sessions.List())))
	if s.db == nil {
		return nil
	}
	if err := sqlite.DeleteSession(s.db, id); err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		return err
	}
	return nil
}
