package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoshinonyaruko/snake-in-led/agent"
	"github.com/hoshinonyaruko/snake-in-led/board"
	"github.com/hoshinonyaruko/snake-in-led/snake"
	"github.com/hoshinonyaruko/snake-in-led/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(x, y int) structs.Point { return structs.Point{X: x, Y: y} }

func newSession(t *testing.T, mode Mode, endTicks int) (*Session, *snake.Game) {
	t.Helper()
	topo := board.MustNew(structs.BoardDef{Name: "open", Width: 10, Height: 10})
	g, err := snake.New(topo, snake.WithSeed(3))
	require.NoError(t, err)
	require.NoError(t, g.Restore([]structs.Point{pt(5, 5), pt(4, 5), pt(3, 5)}, pt(7, 5), structs.Right, false))
	s, err := New("s1", g, mode, "bfs", endTicks)
	require.NoError(t, err)
	return s, g
}

// crash drives the snake into its own body.
func crash(t *testing.T, g *snake.Game) {
	t.Helper()
	body := []structs.Point{pt(5, 5), pt(6, 5), pt(6, 6), pt(5, 6), pt(4, 6)}
	require.NoError(t, g.Restore(body, pt(0, 0), structs.Down, false))
	g.Update()
	require.True(t, g.IsGameOver())
}

func TestAgentModeFollowsMover(t *testing.T) {
	s, g := newSession(t, ModeAgent, 5)
	s.Tick()
	assert.Equal(t, pt(6, 5), g.SnakeHead())
	s.Tick()
	assert.Equal(t, 4, g.Len(), "food eaten on second tick")
	assert.Equal(t, uint64(2), s.Snapshot().Ticks)
}

func TestPlayerInputIsBufferedUntilTick(t *testing.T) {
	s, g := newSession(t, ModePlayer, 5)

	assert.False(t, s.Input(structs.Left), "reversal dropped")
	assert.True(t, s.Input(structs.Up))
	assert.Equal(t, structs.Right, g.Direction())

	s.Tick()
	assert.Equal(t, structs.Up, g.Direction())
	assert.Equal(t, pt(5, 4), g.SnakeHead())

	s.Tick()
	assert.Equal(t, pt(5, 3), g.SnakeHead(), "input consumed once")
}

func TestInputIgnoredInAgentMode(t *testing.T) {
	s, _ := newSession(t, ModeAgent, 5)
	assert.False(t, s.Input(structs.Up))
}

func TestTickReportsGameOver(t *testing.T) {
	s, g := newSession(t, ModePlayer, 3)
	require.NoError(t, g.Restore([]structs.Point{pt(5, 5), pt(6, 5), pt(6, 6), pt(5, 6), pt(4, 6)}, pt(0, 0), structs.Down, false))
	assert.True(t, s.Tick(), "head runs into its own body")
	assert.False(t, s.Tick(), "countdown ticks do not report again")
}

func TestEndSequenceResetsAfterCountdown(t *testing.T) {
	s, g := newSession(t, ModeAgent, 3)
	crash(t, g)

	s.Tick()
	assert.True(t, g.IsGameOver())
	assert.Equal(t, 2, s.Snapshot().EndSequence)
	s.Tick()
	assert.True(t, g.IsGameOver())

	s.Tick()
	assert.False(t, g.IsGameOver())
	assert.Equal(t, 3, g.Len())
}

func TestSetModeResetsGame(t *testing.T) {
	s, g := newSession(t, ModeAgent, 3)
	crash(t, g)

	require.NoError(t, s.SetMode(ModePlayer))
	assert.False(t, g.IsGameOver())
	assert.Equal(t, ModePlayer, s.Mode())

	assert.ErrorIs(t, s.SetMode("joystick"), ErrMode)
}

func TestSetEndTicksShortensCountdown(t *testing.T) {
	s, g := newSession(t, ModeAgent, 10)
	s.SetEndTicks(1)
	crash(t, g)
	s.Tick()
	assert.False(t, g.IsGameOver())
	assert.Equal(t, "open", s.BoardDef().Name)
}

func TestSnapshotCarriesSessionFields(t *testing.T) {
	s, _ := newSession(t, ModePlayer, 3)
	snap := s.Snapshot()
	assert.Equal(t, "s1", snap.ID)
	assert.Equal(t, "open", snap.Board)
	assert.Equal(t, "player", snap.Mode)
	assert.Equal(t, "bfs", snap.Agent)
	assert.Equal(t, pt(5, 5), snap.Head)
	assert.Equal(t, 3, snap.Length)
}

func TestRestoreFromSnapshot(t *testing.T) {
	s, g := newSession(t, ModeAgent, 3)
	snap := s.Snapshot()
	snap.Snake = []structs.Point{pt(1, 1), pt(1, 2)}
	snap.Food = pt(8, 8)
	snap.Direction = structs.Up
	snap.Ticks = 40

	require.NoError(t, s.Restore(snap))
	assert.Equal(t, pt(1, 1), g.SnakeHead())
	assert.Equal(t, structs.Up, g.Direction())
	assert.Equal(t, uint64(40), s.Snapshot().Ticks)
}

func TestSetMoverSwapsStrategy(t *testing.T) {
	s, g := newSession(t, ModeAgent, 3)
	s.SetMover("always-down", agent.MoverFunc(func(*snake.Game) (structs.Direction, bool) {
		return structs.Down, true
	}))
	s.Tick()
	assert.Equal(t, pt(5, 6), g.SnakeHead())
	assert.Equal(t, "always-down", s.Snapshot().Agent)
}

func TestNewRejectsUnknownAgentAndMode(t *testing.T) {
	topo := board.MustNew(structs.BoardDef{Name: "open", Width: 10, Height: 10})
	g, err := snake.New(topo)
	require.NoError(t, err)

	_, err = New("x", g, ModeAgent, "dqn", 1)
	assert.Error(t, err)
	_, err = New("x", g, "joystick", "bfs", 1)
	assert.ErrorIs(t, err, ErrMode)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newSession(t, ModeAgent, 3)
	ctx, cancel := context.WithCancel(context.Background())

	var n atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond, func(*Session, bool) {
			if n.Add(1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.GreaterOrEqual(t, n.Load(), int32(3))
}

func TestEndTicks(t *testing.T) {
	assert.Equal(t, 71, EndTicks(5*time.Second, 70*time.Millisecond))
	assert.Equal(t, 1, EndTicks(10*time.Millisecond, time.Second))
	assert.Equal(t, 1, EndTicks(time.Second, 0))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("AGENT")
	require.NoError(t, err)
	assert.Equal(t, ModeAgent, m)
	_, err = ParseMode("")
	assert.ErrorIs(t, err, ErrMode)
}

func TestManager(t *testing.T) {
	m := NewManager()
	a, _ := newSession(t, ModeAgent, 1)
	a.ID = "b"
	c, _ := newSession(t, ModeAgent, 1)
	c.ID = "a"
	m.Add(a)
	m.Add(c)

	assert.Equal(t, []string{"a", "b"}, m.List())

	got, err := m.Get("b")
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, m.Delete("b"))
	_, err = m.Get("b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete("b"), ErrNotFound)

	assert.NotEqual(t, NewID(), NewID())
}
