// 会话：一局游戏加上玩法模式、输入缓冲和结束动画计时
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hoshinonyaruko/snake-in-led/agent"
	"github.com/hoshinonyaruko/snake-in-led/snake"
	"github.com/hoshinonyaruko/snake-in-led/structs"
)

type Mode string

const (
	ModeAgent  Mode = "agent"
	ModePlayer Mode = "player"
)

var (
	ErrMode     = errors.New("unknown game mode")
	ErrNotFound = errors.New("session not found")
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeAgent:
		return ModeAgent, nil
	case ModePlayer:
		return ModePlayer, nil
	}
	return "", fmt.Errorf("'%s': %w", s, ErrMode)
}

// Session 串行化对 Game 的所有访问。Game 本身不加锁。
type Session struct {
	ID    string
	Board string

	mu        sync.Mutex
	game      *snake.Game
	mode      Mode
	agentName string
	mover     agent.Mover
	pending   *structs.Direction
	endTicks  int
	endLeft   int
	ticks     uint64
}

// New 创建会话。endTicks 是游戏结束后等待多少帧再自动重开。
func New(id string, game *snake.Game, mode Mode, agentName string, endTicks int) (*Session, error) {
	mover, err := agent.New(agentName)
	if err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Board:     game.Topology().Name(),
		game:      game,
		mode:      mode,
		agentName: strings.ToLower(agentName),
		mover:     mover,
		endTicks:  endTicks,
	}, nil
}

// SetMover 替换自动驾驶策略，例如接入外部学习得到的策略。
func (s *Session) SetMover(name string, m agent.Mover) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentName = name
	s.mover = m
}

// Tick 推进一帧，返回这一帧是否让游戏结束。
// 游戏结束后先播放结束动画，倒数归零后重新开局。
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++

	if s.game.IsGameOver() {
		if s.endLeft <= 0 {
			s.endLeft = s.endTicks
		}
		s.endLeft--
		if s.endLeft <= 0 {
			s.game.Reset()
			s.pending = nil
		}
		return false
	}

	switch s.mode {
	case ModeAgent:
		if dir, ok := s.mover.ComputeMove(s.game); ok {
			s.game.SetNextDirection(dir)
		}
	case ModePlayer:
		if s.pending != nil {
			s.game.SetNextDirection(*s.pending)
			s.pending = nil
		}
	}
	s.game.Update()
	return s.game.IsGameOver()
}

// Input 缓冲玩家输入，下一帧生效。掉头的输入直接丢弃。
func (s *Session) Input(dir structs.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModePlayer || s.game.IsGameOver() {
		return false
	}
	if dir.IsReverseOf(s.game.Direction()) {
		return false
	}
	s.pending = &dir
	return true
}

// SetMode 切换模式会重新开局。
func (s *Session) SetMode(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == s.mode {
		return nil
	}
	s.mode = mode
	s.resetLocked()
	return nil
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.game.Reset()
	s.pending = nil
	s.endLeft = 0
}

// SetEndTicks 帧间隔变化后重新换算结束动画长度。
func (s *Session) SetEndTicks(n int) {
	s.mu.Lock()
	s.endTicks = n
	s.mu.Unlock()
}

// BoardDef 棋盘只读，不需要加锁。
func (s *Session) BoardDef() structs.BoardDef {
	return s.game.Topology().Def()
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Restore 用持久化的快照恢复局面。
func (s *Session) Restore(snap structs.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.game.Restore(snap.Snake, snap.Food, snap.Direction, snap.GameOver); err != nil {
		return err
	}
	s.ticks = snap.Ticks
	s.endLeft = snap.EndSequence
	return nil
}

func (s *Session) Snapshot() structs.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.game.Snapshot()
	snap.ID = s.ID
	snap.Mode = string(s.mode)
	snap.Agent = s.agentName
	snap.Ticks = s.ticks
	snap.EndSequence = s.endLeft
	return snap
}

// Run 以固定间隔推进，直到 ctx 取消。onTick 在每帧之后调用，ended 为 Tick 的返回值，可以为 nil。
func (s *Session) Run(ctx context.Context, interval time.Duration, onTick func(s *Session, ended bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ended := s.Tick()
			if onTick != nil {
				onTick(s, ended)
			}
		}
	}
}

// EndTicks 把结束动画时长换算成帧数，至少一帧。
func EndTicks(endSequence, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int(endSequence / interval)
	if n < 1 {
		n = 1
	}
	return n
}
