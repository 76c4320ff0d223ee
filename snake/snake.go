// 贪食蛇的单局状态与逐帧推进
package snake

import (
	"errors"
	"fmt"
	"time"

	"github.com/hoshinonyaruko/snake-in-led/board"
	"github.com/hoshinonyaruko/snake-in-led/structs"
	"golang.org/x/exp/rand"
)

// DefaultInitialLength 开局时蛇的长度
const DefaultInitialLength = 3

var (
	ErrPlacement = errors.New("initial snake placement is not playable")
	ErrRestore   = errors.New("invalid saved game state")
)

// Rand 随机源。方向恢复和食物生成都只用到 Intn，测试可以注入固定序列。
type Rand interface {
	Intn(n int) int
}

// Game 拥有蛇身、食物、方向与结束标记。Topology 只读共享。
// Game 不加锁，调用方必须串行调用 Update 和 SetNextDirection。
type Game struct {
	topo          *board.Topology
	rng           Rand
	initialLength int

	body      []structs.Point // body[0] 为蛇头
	food      structs.Point
	direction structs.Direction
	gameOver  bool
	cleared   bool
}

type Option func(*Game)

func WithRand(r Rand) Option {
	return func(g *Game) { g.rng = r }
}

func WithSeed(seed uint64) Option {
	return func(g *Game) { g.rng = rand.New(rand.NewSource(seed)) }
}

func WithInitialLength(n int) Option {
	return func(g *Game) { g.initialLength = n }
}

// New 创建一局新游戏并立即 Reset。
func New(topo *board.Topology, opts ...Option) (*Game, error) {
	g := &Game{
		topo:          topo,
		initialLength: DefaultInitialLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}

	if g.initialLength < 1 {
		return nil, fmt.Errorf("initial length %d: %w", g.initialLength, ErrPlacement)
	}
	for _, p := range g.initialBody() {
		if topo.IsBlocked(p) {
			return nil, fmt.Errorf("board %q: start cell %v is blocked: %w", topo.Name(), p, ErrPlacement)
		}
	}
	if topo.OpenCount() <= g.initialLength {
		return nil, fmt.Errorf("board %q: no room left for food: %w", topo.Name(), ErrPlacement)
	}

	g.Reset()
	return g, nil
}

// initialBody 蛇放在棋盘中间一行，头朝右，身体向左延伸。
func (g *Game) initialBody() []structs.Point {
	body := make([]structs.Point, 0, g.initialLength)
	for i := 0; i < g.initialLength; i++ {
		body = append(body, structs.Point{X: g.topo.Width()/2 - i, Y: g.topo.Height() / 2})
	}
	return body
}

// Reset 重新开局：放置蛇、方向向右、生成食物并清除结束标记。
func (g *Game) Reset() {
	g.body = g.initialBody()
	g.direction = structs.Right
	g.gameOver = false
	g.cleared = false
	g.placeFood()
}

// placeFood 拒绝采样：随机选格子，直到它既不阻挡也不在蛇身上。
// 蛇已经铺满所有空格时没有可放的位置，本局以清盘结束。
func (g *Game) placeFood() {
	if len(g.body) >= g.topo.OpenCount() {
		g.cleared = true
		g.gameOver = true
		return
	}
	for {
		p := structs.Point{
			X: g.rng.Intn(g.topo.Width()),
			Y: g.rng.Intn(g.topo.Height()),
		}
		if !g.topo.IsBlocked(p) && !g.occupied(p, len(g.body)) {
			g.food = p
			return
		}
	}
}

// occupied 检查 p 是否在 body[0:n) 中
func (g *Game) occupied(p structs.Point, n int) bool {
	for _, s := range g.body[:n] {
		if s == p {
			return true
		}
	}
	return false
}

// IsSafe 判断格子在 step 帧之后是否可以进入。
// 走 step 步后，蛇尾的最后 step 格已经让出，所以只和 body[0:len-step) 比较。
func (g *Game) IsSafe(p structs.Point, step int) bool {
	if g.topo.IsBlocked(p) {
		return false
	}
	if step < len(g.body) && g.occupied(p, len(g.body)-step) {
		return false
	}
	return true
}

// SetNextDirection 保存下一帧要使用的方向，直接掉头的请求会被拒绝。
func (g *Game) SetNextDirection(dir structs.Direction) bool {
	if dir.IsReverseOf(g.direction) {
		return false
	}
	g.direction = dir
	return true
}

// Update 推进一帧。游戏已结束时什么也不做。
func (g *Game) Update() {
	if g.gameOver {
		return
	}

	head := g.body[0]
	dir := g.direction

	if g.topo.IsBlocked(g.topo.NextHead(head, dir)) {
		pool := make([]structs.Direction, 0, 3)
		for _, d := range structs.Directions {
			if d == dir || d.IsReverseOf(dir) {
				continue
			}
			if g.IsSafe(g.topo.NextHead(head, d), 0) {
				pool = append(pool, d)
			}
		}
		for g.topo.IsBlocked(g.topo.NextHead(head, dir)) {
			if len(pool) == 0 {
				g.gameOver = true
				return
			}
			i := g.rng.Intn(len(pool))
			dir = pool[i]
			pool = append(pool[:i], pool[i+1:]...)
		}
	}

	newHead := g.topo.NextHead(head, dir)
	// 从传送门进入另一个传送门时，纵向方向翻转
	if g.topo.IsPortal(head) && g.topo.IsPortal(newHead) {
		dir = structs.Direction{DX: dir.DX, DY: -dir.DY}
	}
	g.direction = dir

	if g.occupied(newHead, len(g.body)) {
		g.gameOver = true
		return
	}

	g.body = append(g.body, structs.Point{})
	copy(g.body[1:], g.body)
	g.body[0] = newHead

	if newHead == g.food {
		g.placeFood()
	} else {
		g.body = g.body[:len(g.body)-1]
	}
}

// Restore 用持久化的数据恢复一局游戏。
func (g *Game) Restore(body []structs.Point, food structs.Point, dir structs.Direction, over bool) error {
	if len(body) == 0 {
		return fmt.Errorf("empty snake: %w", ErrRestore)
	}
	seen := make(map[structs.Point]bool, len(body))
	for _, p := range body {
		if g.topo.IsBlocked(p) {
			return fmt.Errorf("snake cell %v is blocked: %w", p, ErrRestore)
		}
		if seen[p] {
			return fmt.Errorf("snake cell %v repeated: %w", p, ErrRestore)
		}
		seen[p] = true
	}
	if !over && (g.topo.IsBlocked(food) || seen[food]) {
		return fmt.Errorf("food %v is not placeable: %w", food, ErrRestore)
	}
	if dir.IsZero() {
		dir = structs.Right
	}

	g.body = append(g.body[:0:0], body...)
	g.food = food
	g.direction = dir
	g.gameOver = over
	g.cleared = over && len(body) >= g.topo.OpenCount()
	return nil
}

func (g *Game) Topology() *board.Topology { return g.topo }
func (g *Game) SnakeHead() structs.Point { return g.body[0] }
func (g *Game) Len() int { return len(g.body) }
func (g *Game) Food() structs.Point { return g.food }
func (g *Game) Direction() structs.Direction { return g.direction }
func (g *Game) IsGameOver() bool { return g.gameOver }
func (g *Game) IsCleared() bool { return g.cleared }

// SnakeBody 返回蛇身副本，头在前。
func (g *Game) SnakeBody() []structs.Point {
	out := make([]structs.Point, len(g.body))
	copy(out, g.body)
	return out
}

// Segment 返回第 i 节，不复制整条蛇。
func (g *Game) Segment(i int) structs.Point { return g.body[i] }

func (g *Game) Snapshot() structs.Snapshot {
	return structs.Snapshot{
		Board:     g.topo.Name(),
		Snake:     g.SnakeBody(),
		Head:      g.body[0],
		Food:      g.food,
		Direction: g.direction,
		Length:    len(g.body),
		GameOver:  g.gameOver,
		Cleared:   g.cleared,
	}
}
